package logsink

import (
	"context"
	"sync"
	"sync/atomic"
)

type logger interface {
	Log(ctx context.Context, entry Entry) (string, error)
}

// Dispatcher delivers entries from a bounded queue on a single worker so
// that callers never wait on the network.
type Dispatcher struct {
	client  logger
	queue   chan Entry
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool

	done chan struct{}
}

func NewDispatcher(client logger, queueSize int) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}

	d := &Dispatcher{
		client: client,
		queue:  make(chan Entry, queueSize),
		done:   make(chan struct{}),
	}

	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for entry := range d.queue {
		_, _ = d.client.Log(context.Background(), entry)
	}
}

// Send enqueues an entry. It reports false when the entry was dropped
// because the queue is full or the dispatcher is shut down.
func (d *Dispatcher) Send(entry Entry) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		return false
	}

	select {
	case d.queue <- entry:
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

// Dropped returns how many entries were discarded so far.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Shutdown stops accepting entries and waits for the queue to drain or ctx
// to end, whichever comes first.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
