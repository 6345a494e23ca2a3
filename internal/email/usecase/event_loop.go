package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultEventWorkers   = 4
	DefaultEventQueueSize = 500
)

var ErrLoopClosed = errors.New("event loop is closed")

// Event is one decoded mailbox notification.
type Event struct {
	AccountEmail  string
	HistoryMarker string
	ReceivedAt    time.Time
}

// EventLoop runs events on a fixed set of workers fed by a bounded queue.
// A full queue makes Schedule wait, which pushes back on the caller.
type EventLoop struct {
	handler     EventHandler
	queue       chan Event
	workerWg    sync.WaitGroup
	workerCount int

	mu      sync.RWMutex
	started bool
	closed  bool
	closing chan struct{}
	senders sync.WaitGroup

	// Processing context, cancelled only when Stop runs out of time
	ctx    context.Context
	cancel context.CancelFunc

	log zerolog.Logger
}

func NewEventLoop(handler EventHandler, workerCount, queueSize int, log zerolog.Logger) *EventLoop {
	if workerCount <= 0 {
		workerCount = DefaultEventWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultEventQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &EventLoop{
		handler:     handler,
		queue:       make(chan Event, queueSize),
		workerCount: workerCount,
		closing:     make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		log:         log.With().Str("component", "event_loop").Logger(),
	}
}

// Start starts the workers
func (l *EventLoop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started || l.closed {
		return
	}

	for i := 0; i < l.workerCount; i++ {
		l.workerWg.Add(1)
		go l.worker(i)
	}
	l.started = true
	l.log.Info().Int("workers", l.workerCount).Int("queue_size", cap(l.queue)).Msg("event loop started")
}

// Schedule enqueues ev, waiting for room while the queue is full. It returns
// ErrLoopClosed once Stop has been called and ctx's error if ctx ends first.
func (l *EventLoop) Schedule(ctx context.Context, ev Event) error {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ErrLoopClosed
	}
	l.senders.Add(1)
	l.mu.RUnlock()
	defer l.senders.Done()

	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}

	select {
	case l.queue <- ev:
		return nil
	default:
	}

	l.log.Debug().Str("email", ev.AccountEmail).Int("queue_depth", len(l.queue)).Msg("queue full, waiting for a worker")
	select {
	case l.queue <- ev:
		return nil
	case <-l.closing:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueDepth is the number of events waiting for a worker.
func (l *EventLoop) QueueDepth() int {
	return len(l.queue)
}

// Stop refuses new events and waits for queued and running ones to finish.
// If ctx expires first, the processing context is cancelled, events still
// queued are dropped, and ctx's error is returned once workers exit.
func (l *EventLoop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.closing)
	l.mu.Unlock()

	// Waiting senders give up on closing; only then is the queue closed
	l.senders.Wait()
	close(l.queue)

	done := make(chan struct{})
	go func() {
		l.workerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.cancel()
		l.log.Info().Msg("event loop drained")
		return nil
	case <-ctx.Done():
		l.log.Warn().Int("pending", len(l.queue)).Msg("drain timed out, cancelling in-flight events")
		l.cancel()
		<-done
		return ctx.Err()
	}
}

func (l *EventLoop) worker(id int) {
	defer l.workerWg.Done()

	for ev := range l.queue {
		if l.ctx.Err() != nil {
			l.log.Warn().Str("email", ev.AccountEmail).Str("history_id", ev.HistoryMarker).Msg("dropping event after shutdown")
			continue
		}
		l.handler.ProcessEvent(l.ctx, ev.AccountEmail, ev.HistoryMarker)
	}

	l.log.Debug().Int("worker", id).Msg("worker stopped")
}
