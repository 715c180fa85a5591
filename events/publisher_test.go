package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"kanban-board/domain"
)

type recordingSink struct {
	mu     sync.Mutex
	events []domain.SessionEvent
	err    error
	block  chan struct{}
}

func (s *recordingSink) EnqueueSessionEvent(ctx context.Context, ev domain.SessionEvent) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) Events() []domain.SessionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SessionEvent, len(s.events))
	copy(out, s.events)
	return out
}

func TestPublisherDeliversEvents(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sink := &recordingSink{}
	p := NewPublisher(sink, Config{Workers: 2, Buffer: 8}, logger)

	p.Publish(domain.UserLoggedIn, "u1", "s1")
	p.Publish(domain.UserLoggedOut, "u1", "s1")
	p.Close()

	got := sink.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	for _, ev := range got {
		if ev.ID == "" || ev.Timestamp == 0 || ev.UserID != "u1" || ev.SessionID != "s1" {
			t.Fatalf("incomplete event: %+v", ev)
		}
	}
}

func TestPublisherFallsBackInlineWhenSaturated(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := &recordingSink{block: make(chan struct{})}
	p := &Publisher{
		sink:   sink,
		cfg:    Config{EnqueueTimeout: time.Second}.withDefaults(),
		logger: logger,
		jobs:   make(chan domain.SessionEvent, 1),
	}
	p.jobs <- domain.SessionEvent{}
	close(sink.block)

	p.Publish(domain.UserSignedUp, "u2", "s2")

	got := sink.Events()
	if len(got) != 1 || got[0].Type != domain.UserSignedUp {
		t.Fatalf("expected inline delivery, got %+v", got)
	}
	if entry := hook.LastEntry(); entry == nil || entry.Message != "event buffer saturated; publishing inline" {
		t.Fatalf("expected saturation warning, got %#v", entry)
	}
}

func TestPublisherLogsSinkErrors(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := &recordingSink{err: errors.New("queue unavailable")}
	p := NewPublisher(sink, Config{Workers: 1, Buffer: 1}, logger)

	p.Publish(domain.UserLoggedIn, "u1", "s1")
	p.Close()

	entry := hook.LastEntry()
	if entry == nil || entry.Level.String() != "error" {
		t.Fatalf("expected error log, got %#v", entry)
	}
}

func TestTryEnqueueWaitsForCapacity(t *testing.T) {
	p := &Publisher{
		cfg:  Config{HandoffTimeout: 50 * time.Millisecond},
		jobs: make(chan domain.SessionEvent, 1),
	}
	p.jobs <- domain.SessionEvent{}

	done := make(chan bool, 1)
	go func() {
		done <- p.tryEnqueue(domain.SessionEvent{})
	}()

	select {
	case <-done:
		t.Fatal("tryEnqueue returned before capacity was freed")
	case <-time.After(20 * time.Millisecond):
	}

	<-p.jobs

	select {
	case ok := <-done:
		if !ok {
			t.Fatal("expected successful enqueue after capacity freed")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for enqueue completion")
	}
}

func TestTryEnqueueTimesOut(t *testing.T) {
	p := &Publisher{
		cfg:  Config{HandoffTimeout: 30 * time.Millisecond},
		jobs: make(chan domain.SessionEvent, 1),
	}
	p.jobs <- domain.SessionEvent{}

	if p.tryEnqueue(domain.SessionEvent{}) {
		t.Fatal("expected enqueue to fail when timeout elapsed")
	}

	select {
	case <-p.jobs:
	default:
		t.Fatal("expected channel to remain full after timeout")
	}
}

func TestTryEnqueueReturnsFalseWhenClosed(t *testing.T) {
	p := &Publisher{
		cfg:  Config{HandoffTimeout: 30 * time.Millisecond},
		jobs: make(chan domain.SessionEvent),
	}
	close(p.jobs)

	if p.tryEnqueue(domain.SessionEvent{}) {
		t.Fatal("expected enqueue to fail when channel is closed")
	}
}

func TestTryEnqueueNoWaitWhenZeroTimeout(t *testing.T) {
	p := &Publisher{jobs: make(chan domain.SessionEvent, 1)}
	p.jobs <- domain.SessionEvent{}

	if p.tryEnqueue(domain.SessionEvent{}) {
		t.Fatal("expected enqueue to fail when buffer full and no timeout")
	}

	<-p.jobs

	if !p.tryEnqueue(domain.SessionEvent{}) {
		t.Fatal("expected enqueue to succeed when buffer has capacity")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{HandoffTimeout: -time.Second}.withDefaults()
	if cfg.Workers != 4 || cfg.Buffer != 256 || cfg.EnqueueTimeout != 30*time.Second || cfg.HandoffTimeout != 0 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
