// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taibuivan/skpdportal/internal/platform/ctxutil"
)

// auditWriteTimeout bounds a single background write to the underlying sink.
const auditWriteTimeout = 5 * time.Second

var (
	// ErrAuditQueueFull is returned when the buffer has no room for an event.
	ErrAuditQueueFull = errors.New("audit_queue_full")

	// ErrAuditDispatcherClosed is returned for events recorded after Close.
	ErrAuditDispatcherClosed = errors.New("audit_dispatcher_closed")
)

type queuedAudit struct {
	context context.Context
	event   AuditEvent
}

/*
AuditDispatcher is an [AuditSink] that hands events to a background writer so
login responses never wait on the audit table.

Description: Events go into a bounded buffer. A full buffer drops the event
and reports [ErrAuditQueueFull] to the caller, which logs it. A single worker
drains the buffer into the wrapped sink, and [AuditDispatcher.Close] flushes
what is still queued.
*/
type AuditDispatcher struct {
	sink      AuditSink
	queue     chan queuedAudit
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewAuditDispatcher starts the background writer over sink.
func NewAuditDispatcher(sink AuditSink, bufferSize int) *AuditDispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}

	dispatcher := &AuditDispatcher{
		sink:  sink,
		queue: make(chan queuedAudit, bufferSize),
		done:  make(chan struct{}),
	}

	dispatcher.wg.Add(1)
	go dispatcher.run()

	return dispatcher
}

// Record enqueues event without blocking.
func (dispatcher *AuditDispatcher) Record(context context.Context, event AuditEvent) error {
	if dispatcher.closed.Load() {
		return ErrAuditDispatcherClosed
	}

	// The request context is cancelled once the response is written. The
	// detached copy keeps its logger and request ID for the background write.
	item := queuedAudit{context: detach(context), event: event}

	select {
	case dispatcher.queue <- item:
		return nil
	case <-dispatcher.done:
		return ErrAuditDispatcherClosed
	default:
		dispatcher.dropped.Add(1)
		return ErrAuditQueueFull
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (dispatcher *AuditDispatcher) Dropped() uint64 {
	return dispatcher.dropped.Load()
}

// Close stops accepting events and waits until the queued ones are written.
func (dispatcher *AuditDispatcher) Close() {
	dispatcher.closeOnce.Do(func() {
		dispatcher.closed.Store(true)
		close(dispatcher.done)
		dispatcher.wg.Wait()
	})
}

func (dispatcher *AuditDispatcher) run() {
	defer dispatcher.wg.Done()

	for {
		select {
		case item := <-dispatcher.queue:
			dispatcher.write(item)
		case <-dispatcher.done:
			for {
				select {
				case item := <-dispatcher.queue:
					dispatcher.write(item)
				default:
					return
				}
			}
		}
	}
}

func (dispatcher *AuditDispatcher) write(item queuedAudit) {
	writeContext, cancel := context.WithTimeout(item.context, auditWriteTimeout)
	defer cancel()

	if err := dispatcher.sink.Record(writeContext, item.event); err != nil {
		ctxutil.GetLogger(item.context).WarnContext(item.context, "audit_write_failed",
			slog.String("event_type", item.event.EventType),
			slog.String("status", item.event.Status),
			slog.Any("error", err),
		)
	}
}

func detach(parent context.Context) context.Context {
	if parent == nil {
		return context.Background()
	}
	return context.WithoutCancel(parent)
}
