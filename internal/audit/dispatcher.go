package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher decouples the auth critical path from sink latency: Record
// enqueues onto a bounded channel and returns immediately, dropping (and
// counting) when the buffer is full. A single goroutine forwards to the sink.
type Dispatcher struct {
	sink    Sink
	log     *slog.Logger
	ch      chan Event
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64
	closed  atomic.Bool
	once    sync.Once
}

func NewDispatcher(sink Sink, bufferSize int, log *slog.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		sink: sink,
		log:  log,
		ch:   make(chan Event, bufferSize),
		done: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.ch:
			d.forward(event)
		case <-d.done:
			// drain whatever is already buffered, then stop
			for {
				select {
				case event := <-d.ch:
					d.forward(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) forward(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.sink.Record(ctx, event); err != nil {
		d.log.Warn("audit sink record failed", "action", event.Action, "error", err)
	}
}

// Record never blocks. Events submitted after Close are dropped.
func (d *Dispatcher) Record(_ context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case d.ch <- event:
	case <-d.done:
	default:
		d.dropped.Add(1)
		d.log.Warn("audit event dropped, buffer full", "action", event.Action)
	}
}

// Close drains the buffer and stops the forwarding goroutine.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
