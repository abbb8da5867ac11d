package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrorHandler is notified whenever an event's Run returns an error or
// panics. Engine wires this to internal/alert so a broken event still
// reaches an operator instead of just the log file.
type ErrorHandler func(e Event, err error)

// Dispatcher is the sole consumer of a Queue and therefore the only
// goroutine allowed to mutate resource/group state.
type Dispatcher struct {
	queue   *Queue
	log     *zap.SugaredLogger
	onError ErrorHandler

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewDispatcher creates a Dispatcher draining queue. onError may be nil.
func NewDispatcher(queue *Queue, log *zap.SugaredLogger, onError ErrorHandler) *Dispatcher {
	return &Dispatcher{queue: queue, log: log, onError: onError}
}

// Start spawns the consumer goroutine. ctx cancellation stops it; callers
// should follow with Stop to block until the goroutine has exited.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Add(1)
	go d.run(ctx)
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		if n := d.queue.Len(); n > 0 {
			d.log.Debugw("events queued", "count", n)
		}
		event, ok := d.queue.Pop(ctx)
		if !ok {
			return
		}
		d.runOne(ctx, event)
	}
}

func (d *Dispatcher) runOne(ctx context.Context, event Event) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("event %s panicked: %v", event, r)
			d.log.Errorw("event dispatcher recovered from panic", "event", event.String(), "panic", r)
			if d.onError != nil {
				d.onError(event, err)
			}
		}
	}()

	d.log.Debugw("running event", "event", event.String())
	if err := event.Run(ctx); err != nil {
		d.log.Errorw("event returned error", "event", event.String(), "error", err)
		if d.onError != nil {
			d.onError(event, err)
		}
	}
}

// Stop cancels the consumer and waits for it to exit.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.queue.Close()
	d.wg.Wait()
}
