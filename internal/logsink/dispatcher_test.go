package logsink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	mu      sync.Mutex
	entries []Entry
	block   chan struct{}
}

func (l *recordingLogger) Log(_ context.Context, entry Entry) (string, error) {
	if l.block != nil {
		<-l.block
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	return "id", nil
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}

func TestDispatcher(t *testing.T) {
	t.Run("drains on shutdown", func(t *testing.T) {
		rec := &recordingLogger{}
		d := NewDispatcher(rec, 16)

		for i := 0; i < 10; i++ {
			assert.True(t, d.Send(validEntry))
		}

		assert.NoError(t, d.Shutdown(context.Background()))
		assert.Equal(t, 10, rec.count())
		assert.Zero(t, d.Dropped())
	})

	t.Run("send never blocks on a full queue", func(t *testing.T) {
		rec := &recordingLogger{block: make(chan struct{})}
		d := NewDispatcher(rec, 1)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 10; i++ {
				d.Send(validEntry)
			}
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Send blocked")
		}

		assert.Positive(t, d.Dropped())

		close(rec.block)
		assert.NoError(t, d.Shutdown(context.Background()))
	})

	t.Run("send after shutdown is dropped", func(t *testing.T) {
		d := NewDispatcher(&recordingLogger{}, 4)
		assert.NoError(t, d.Shutdown(context.Background()))

		assert.False(t, d.Send(validEntry))
		assert.Equal(t, int64(1), d.Dropped())
		assert.NoError(t, d.Shutdown(context.Background()))
	})

	t.Run("shutdown honours the context", func(t *testing.T) {
		rec := &recordingLogger{block: make(chan struct{})}
		defer close(rec.block)

		d := NewDispatcher(rec, 4)
		d.Send(validEntry)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		assert.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)
	})
}
