package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEvent struct {
	name string
	fn   func() error
}

func (f fakeEvent) Run(ctx context.Context) error { return f.fn() }
func (f fakeEvent) String() string                { return f.name }

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue()
	var mu sync.Mutex
	var order []string

	for i := 0; i < 5; i++ {
		name := string(rune('a' + i))
		q.Push(fakeEvent{name: name, fn: func() error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}})
	}

	d := NewDispatcher(q, zap.NewNop().Sugar(), nil)
	d.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	d.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, order)
}

func TestDispatcherInvokesErrorHandlerOnError(t *testing.T) {
	q := NewQueue()
	done := make(chan struct{})
	var gotErr error

	d := NewDispatcher(q, zap.NewNop().Sugar(), func(e Event, err error) {
		gotErr = err
		close(done)
	})
	d.Start(context.Background())
	defer d.Stop()

	q.Push(fakeEvent{name: "boom", fn: func() error { return errors.New("boom") }})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("error handler never invoked")
	}
	require.Error(t, gotErr)
}

func TestDispatcherRecoversFromPanic(t *testing.T) {
	q := NewQueue()
	done := make(chan struct{})

	d := NewDispatcher(q, zap.NewNop().Sugar(), func(e Event, err error) {
		close(done)
	})
	d.Start(context.Background())
	defer d.Stop()

	q.Push(fakeEvent{name: "panics", fn: func() error { panic("nope") }})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not recover from panic")
	}
}
