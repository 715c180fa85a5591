package storage

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"kanban-board/domain"
)

// DefaultUsersTable is the collection that holds one board document per user.
const DefaultUsersTable = "users"

type tableClient interface {
	GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
}

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// Storage provides access to the board documents and the session events queue.
type Storage struct {
	usersTable  tableClient
	eventsQueue queueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, usersTable, eventsQueue string) (*Storage, error) {
	if usersTable == "" {
		usersTable = DefaultUsersTable
	}
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{usersTable: svc.NewClient(usersTable), eventsQueue: eq}, nil
}

// userEntity is the table row for a board. Azure Tables has no array type, so
// the lists are stored as JSON-encoded string columns.
type userEntity struct {
	PartitionKey    string `json:"PartitionKey"`
	RowKey          string `json:"RowKey"`
	Username        string `json:"Username"`
	Tasks           string `json:"Tasks"`
	InProgressTasks string `json:"InProgressTasks"`
	CompletedTasks  string `json:"CompletedTasks"`
	IsLight         bool   `json:"IsLight"`
}

// GetDocument retrieves the board document for the user. It returns nil
// without an error when the user has never saved a board.
func (s *Storage) GetDocument(ctx context.Context, userID string) (*domain.Document, error) {
	resp, err := s.usersTable.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	doc, err := decodeUserEntity(resp.Value)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// SetDocument replaces the user's board document.
func (s *Storage) SetDocument(ctx context.Context, userID string, doc domain.Document) error {
	payload, err := encodeUserEntity(userID, doc)
	if err != nil {
		return err
	}
	_, err = s.usersTable.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

// EnqueueSessionEvent sends a session event to the events queue.
func (s *Storage) EnqueueSessionEvent(ctx context.Context, ev domain.SessionEvent) error {
	data, err := sonic.MarshalString(ev)
	if err != nil {
		return err
	}
	_, err = s.eventsQueue.EnqueueMessage(ctx, data, nil)
	return err
}

func encodeUserEntity(userID string, doc domain.Document) ([]byte, error) {
	doc = doc.Normalized()
	ent := userEntity{
		PartitionKey: userID,
		RowKey:       userID,
		Username:     doc.Username,
		IsLight:      doc.IsLight,
	}
	var err error
	if ent.Tasks, err = sonic.MarshalString(doc.Tasks); err != nil {
		return nil, err
	}
	if ent.InProgressTasks, err = sonic.MarshalString(doc.InProgressTasks); err != nil {
		return nil, err
	}
	if ent.CompletedTasks, err = sonic.MarshalString(doc.CompletedTasks); err != nil {
		return nil, err
	}
	return sonic.Marshal(ent)
}

func decodeUserEntity(data []byte) (domain.Document, error) {
	var ent userEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Document{}, err
	}
	doc := domain.Document{Username: ent.Username, IsLight: ent.IsLight}
	for _, col := range []struct {
		raw string
		dst *[]string
	}{
		{ent.Tasks, &doc.Tasks},
		{ent.InProgressTasks, &doc.InProgressTasks},
		{ent.CompletedTasks, &doc.CompletedTasks},
	} {
		if col.raw == "" {
			continue
		}
		if err := sonic.UnmarshalString(col.raw, col.dst); err != nil {
			return domain.Document{}, err
		}
	}
	return doc.Normalized(), nil
}
