package auth

import (
	"context"
	"sync"
	"sync/atomic"
)

// EventDispatcher decouples audit writes from the request path: events are
// buffered on a channel and drained by a single goroutine into the wrapped
// sink. When the buffer is full the event is counted as dropped rather than
// blocking the caller.
type EventDispatcher struct {
	sink      SecurityEventSink
	logger    Logger
	ch        chan SecurityEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewEventDispatcher starts the drain goroutine. bufferSize below 1 is
// treated as 1.
func NewEventDispatcher(sink SecurityEventSink, bufferSize int) *EventDispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}

	d := &EventDispatcher{
		sink:   normalizeEventSink(sink),
		logger: defLogger{},
		ch:     make(chan SecurityEvent, bufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// WithLogger overrides the logger used for sink failures.
func (d *EventDispatcher) WithLogger(logger Logger) *EventDispatcher {
	if logger != nil {
		d.logger = logger
	}
	return d
}

func (d *EventDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *EventDispatcher) deliver(event SecurityEvent) {
	if err := d.sink.Record(context.Background(), event); err != nil {
		d.logger.Warn("security event sink error: %v", err)
	}
}

// Record implements SecurityEventSink. It never blocks and never fails.
func (d *EventDispatcher) Record(ctx context.Context, event SecurityEvent) error {
	if d == nil || d.closed.Load() {
		return nil
	}

	select {
	case d.ch <- event:
	case <-d.done:
	default:
		d.dropped.Add(1)
	}
	return nil
}

// Dropped reports how many events were discarded because the buffer was full.
func (d *EventDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close drains buffered events and stops the dispatcher.
func (d *EventDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

var _ SecurityEventSink = (*EventDispatcher)(nil)
