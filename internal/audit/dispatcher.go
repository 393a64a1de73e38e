package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops non-critical events instead of blocking the caller.
	// Critical events are never dropped; see [Critical].
	DropIfFull bool
	// Now stamps events that arrive without a timestamp. Defaults to time.Now.
	Now func() time.Time
	// InlineTimeout bounds a critical event delivered on the caller goroutine.
	// Defaults to DefaultInlineTimeout.
	InlineTimeout time.Duration
}

// DefaultInlineTimeout bounds inline delivery of critical events.
const DefaultInlineTimeout = 100 * time.Millisecond

// Critical reports whether eventType records a suspected credential theft.
// Such events bypass the drop policy.
func Critical(eventType string) bool {
	switch eventType {
	case EventRefreshReuseDetected, EventLineageRevoked:
		return true
	}
	return false
}

// Dispatcher forwards audit events to a sink from a single worker goroutine
// so request paths never wait on sink I/O. A nil Dispatcher is valid and
// discards everything.
type Dispatcher struct {
	cfg     Config
	sink    Sink
	queue   chan Event
	stop    chan struct{}
	worker  sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
	inline  atomic.Uint64
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.InlineTimeout <= 0 {
		cfg.InlineTimeout = DefaultInlineTimeout
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan Event, cfg.BufferSize),
		stop:  make(chan struct{}),
	}
	d.worker.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.worker.Done()
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		default:
			return
		}
	}
}

// Emit queues event. Once the queue is full, critical events are delivered
// on the caller goroutine within Config.InlineTimeout, other events are dropped (DropIfFull) or wait for space
// until ctx ends. Emit after Close is ignored.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.cfg.Now()
	}

	select {
	case d.queue <- event:
		return
	case <-d.stop:
		return
	default:
	}

	if Critical(event.EventType) {
		d.deliverInline(ctx, event)
		return
	}

	if d.cfg.DropIfFull {
		d.dropped.Add(1)
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close stops accepting events, flushes the queue and waits for the worker.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.worker.Wait()
	})
}

// Dropped counts events discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// DeliveredInline counts critical events written on the caller goroutine
// because the queue was full.
func (d *Dispatcher) DeliveredInline() uint64 {
	if d == nil {
		return 0
	}
	return d.inline.Load()
}

// deliverInline hands event to the sink on the caller goroutine. The request
// ctx may already be cancelled, so only its values are kept and the sink gets
// InlineTimeout to accept the event.
func (d *Dispatcher) deliverInline(ctx context.Context, event Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.InlineTimeout)
	defer cancel()
	d.sink.Emit(ctx, event)
	d.inline.Add(1)
}
