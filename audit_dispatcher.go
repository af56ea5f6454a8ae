package goLogin

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// auditDispatcher hands events to the sink on one worker goroutine so a
// slow sink never holds a flow's lock. A nil dispatcher discards events.
type auditDispatcher struct {
	sink       AuditSink
	logger     *slog.Logger
	queue      chan AuditEvent
	stop       chan struct{}
	dropIfFull bool
	timeout    time.Duration

	worker   sync.WaitGroup
	dropped  atomic.Uint64
	panicked atomic.Uint64
	stopped  atomic.Bool
	stopOnce sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger *slog.Logger) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d := &auditDispatcher{
		sink:       sink,
		logger:     logger,
		queue:      make(chan AuditEvent, max(cfg.BufferSize, 1)),
		stop:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
		timeout:    cfg.SinkTimeout,
	}
	d.worker.Add(1)
	go d.loop()
	return d
}

func (d *auditDispatcher) loop() {
	defer d.worker.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *auditDispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

// deliver isolates the worker from a sink that panics or hangs past the
// configured timeout.
func (d *auditDispatcher) deliver(ev AuditEvent) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			d.panicked.Add(1)
			d.logger.Error("audit sink panicked", "event_type", ev.EventType, "panic", r)
		}
	}()
	d.sink.Emit(ctx, ev)
}

// Emit queues ev. With DropIfFull a full queue drops the event and counts it;
// otherwise Emit waits for room, ctx or Close.
func (d *auditDispatcher) Emit(ctx context.Context, ev AuditEvent) {
	if d == nil || d.stopped.Load() {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			if d.dropped.Add(1) == 1 {
				d.logger.Warn("audit queue full, dropping events", "event_type", ev.EventType)
			}
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close delivers whatever is queued and waits for the worker. Safe to call
// more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stop)
		d.worker.Wait()
	})
}

// Dropped counts events that never reached the sink.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *auditDispatcher) SinkPanics() uint64 {
	if d == nil {
		return 0
	}
	return d.panicked.Load()
}
