package boardsync

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"kanban-board/domain"
)

func newTestSyncer(store DocumentStore) *Syncer {
	logger, _ := test.NewNullLogger()
	return New(store, logger, time.Second)
}

func TestLoadFreshIdentityYieldsDefaults(t *testing.T) {
	s := newTestSyncer(newFakeStore())

	doc, found, err := s.Load(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Fatalf("expected no stored document")
	}
	if doc.Username != "" || doc.IsLight || len(doc.Tasks)+len(doc.InProgressTasks)+len(doc.CompletedTasks) != 0 {
		t.Fatalf("expected default document, got %+v", doc)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newFakeStore()
	s := newTestSyncer(store)
	ctx := context.Background()

	b := domain.NewBoard()
	b.SetUsername("sam")
	b.AddTask("a")
	b.AddTask("b")
	b.MoveTask("b", domain.Completed)
	b.ToggleTheme()
	want := b.Snapshot()

	if err := s.Save(ctx, "u1", want.Document()); err != nil {
		t.Fatalf("save: %v", err)
	}
	doc, found, err := s.Load(ctx, "u1")
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	restored := domain.NewBoard()
	restored.Restore(doc)
	if !reflect.DeepEqual(restored.Snapshot(), want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", restored.Snapshot(), want)
	}
}

func TestLoadWrapsStoreError(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("network down")
	s := newTestSyncer(store)

	_, _, err := s.Load(context.Background(), "u1")
	var storeErr *domain.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if storeErr.Op != "load" || storeErr.Identity != "u1" || !errors.Is(err, store.getErr) {
		t.Fatalf("unexpected store error: %+v", storeErr)
	}
}

func TestSaveWrapsStoreError(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("permission denied")
	s := newTestSyncer(store)

	err := s.Save(context.Background(), "u1", domain.Document{})
	var storeErr *domain.StoreError
	if !errors.As(err, &storeErr) || storeErr.Op != "save" {
		t.Fatalf("expected save StoreError, got %v", err)
	}
}

func TestSyncerTracesOperations(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	store := newFakeStore()
	store.getErr = errors.New("boom")
	s := newTestSyncer(store)
	_, _, _ = s.Load(context.Background(), "u1")

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != spanNamePrefix+"load" {
		t.Fatalf("unexpected span name %q", span.Name)
	}
	if span.Status.Code != codes.Error {
		t.Fatalf("expected error status, got %v", span.Status.Code)
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes {
		attrs[kv.Key] = kv.Value
	}
	if attrs["kanban.user_id"].AsString() != "u1" {
		t.Fatalf("missing user attribute: %#v", attrs)
	}
}

func TestSyncerLogsFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	store := newFakeStore()
	store.setErr = errors.New("boom")
	s := New(store, logger, time.Second)

	_ = s.Save(context.Background(), "u1", domain.Document{})

	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.WarnLevel {
		t.Fatalf("expected warning entry, got %#v", entry)
	}
	if entry.Data["op"] != "save" || entry.Data["user"] != "u1" {
		t.Fatalf("unexpected fields: %#v", entry.Data)
	}
}
