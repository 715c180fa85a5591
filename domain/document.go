package domain

import "github.com/bytedance/sonic"

// Document is the persisted form of a board, stored once per identity.
type Document struct {
	Username        string   `json:"username"`
	Tasks           []string `json:"tasks"`
	InProgressTasks []string `json:"inProgressTasks"`
	CompletedTasks  []string `json:"completedTasks"`
	IsLight         bool     `json:"isLight"`
}

// NewDocument builds a document whose lists are independent, non-nil copies.
func NewDocument(username string, todo, inProgress, completed []string, isLight bool) Document {
	return Document{
		Username:        username,
		Tasks:           TaskList(todo).Clone(),
		InProgressTasks: TaskList(inProgress).Clone(),
		CompletedTasks:  TaskList(completed).Clone(),
		IsLight:         isLight,
	}
}

// Normalized replaces absent lists with empty ones.
func (d Document) Normalized() Document {
	return NewDocument(d.Username, d.Tasks, d.InProgressTasks, d.CompletedTasks, d.IsLight)
}

// EncodeDocument serialises a document to JSON.
func EncodeDocument(d Document) ([]byte, error) {
	return sonic.Marshal(d.Normalized())
}

// DecodeDocument parses a JSON document. Fields missing from the payload take
// their default values.
func DecodeDocument(data []byte) (Document, error) {
	var d Document
	if err := sonic.Unmarshal(data, &d); err != nil {
		return Document{}, err
	}
	return d.Normalized(), nil
}
