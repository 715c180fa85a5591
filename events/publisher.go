// Package events delivers session events to the audit queue without blocking
// the session that produced them.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"kanban-board/domain"
)

// Sink receives session events.
type Sink interface {
	EnqueueSessionEvent(ctx context.Context, ev domain.SessionEvent) error
}

// Config controls the publisher's worker pool.
type Config struct {
	Workers        int
	Buffer         int
	EnqueueTimeout time.Duration
	HandoffTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Buffer <= 0 {
		c.Buffer = 256
	}
	if c.EnqueueTimeout <= 0 {
		c.EnqueueTimeout = 30 * time.Second
	}
	if c.HandoffTimeout < 0 {
		c.HandoffTimeout = 0
	}
	return c
}

// Publisher hands events to a pool of workers. When the buffer stays full past
// the handoff timeout the event is sent inline instead.
type Publisher struct {
	sink   Sink
	cfg    Config
	logger *log.Logger

	jobs     chan domain.SessionEvent
	workerWG sync.WaitGroup
	once     sync.Once
}

// NewPublisher starts the worker pool.
func NewPublisher(sink Sink, cfg Config, logger *log.Logger) *Publisher {
	if sink == nil {
		panic("events.NewPublisher: sink is nil")
	}
	if logger == nil {
		panic("Logger is not initialized")
	}
	cfg = cfg.withDefaults()
	p := &Publisher{
		sink:   sink,
		cfg:    cfg,
		logger: logger,
		jobs:   make(chan domain.SessionEvent, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.workerWG.Add(1)
		go p.worker(i)
	}
	logger.Infof("session event publisher started, workers: %d, buffer: %d, timeout: %v, handoff: %v", cfg.Workers, cfg.Buffer, cfg.EnqueueTimeout, cfg.HandoffTimeout)
	return p
}

// Publish records an event of the given type for userID. It fills in the
// event id and timestamp.
func (p *Publisher) Publish(eventType, userID, sessionID string) {
	ev := domain.SessionEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		SessionID: sessionID,
		Timestamp: nextTimestamp(),
	}
	if p.tryEnqueue(ev) {
		return
	}

	p.logger.Warn("event buffer saturated; publishing inline")
	p.send(-1, ev)
}

// Close stops accepting events and waits for queued ones to be sent.
func (p *Publisher) Close() {
	p.once.Do(func() {
		close(p.jobs)
	})
	p.workerWG.Wait()
}

func (p *Publisher) worker(id int) {
	defer p.workerWG.Done()
	for ev := range p.jobs {
		p.send(id, ev)
	}
}

func (p *Publisher) send(worker int, ev domain.SessionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.EnqueueTimeout)
	err := p.sink.EnqueueSessionEvent(ctx, ev)
	cancel()
	if err != nil {
		p.logger.Errorf("session event enqueue failed, err: %v, user: %s, type: %s, worker: %d", err, ev.UserID, ev.Type, worker)
	}
}

func (p *Publisher) tryEnqueue(ev domain.SessionEvent) bool {
	if ok, closed := trySendNonBlocking(p.jobs, ev); closed {
		return false
	} else if ok {
		return true
	}

	if p.cfg.HandoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(p.cfg.HandoffTimeout)
	defer timer.Stop()

	ok, closed := sendWithTimer(p.jobs, ev, timer.C)
	if closed {
		return false
	}
	return ok
}

func trySendNonBlocking(ch chan domain.SessionEvent, ev domain.SessionEvent) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- ev:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan domain.SessionEvent, ev domain.SessionEvent, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- ev:
		return true, false
	case <-timer:
		return false, false
	}
}
