package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Logger records audit events without blocking the caller
type Logger interface {
	Record(event *Event)
	Close() error
}

// NopLogger discards every event
type NopLogger struct{}

func (NopLogger) Record(*Event) {}
func (NopLogger) Close() error  { return nil }

// asyncLogger buffers events in a fixed ring and flushes them to the writer
// in the background. When the ring is full the oldest event is dropped: the
// audit trail is best-effort and must never stall an evaluation.
type asyncLogger struct {
	writer Writer
	logger *zap.Logger

	mu      sync.Mutex
	buffer  []*Event
	dropped uint64

	flushCh chan struct{}
	doneCh  chan struct{}
	ackCh   chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// Config configures the async audit logger
type Config struct {
	BufferSize    int
	FlushInterval time.Duration
}

// DefaultConfig returns the default audit logger configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:    1024,
		FlushInterval: time.Second,
	}
}

// NewLogger creates an asynchronous audit logger
func NewLogger(cfg Config, writer Writer, logger *zap.Logger) Logger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &asyncLogger{
		writer:  writer,
		logger:  logger,
		buffer:  make([]*Event, 0, cfg.BufferSize),
		flushCh: make(chan struct{}, 1),
		doneCh:  make(chan struct{}),
		ackCh:   make(chan struct{}),
	}
	go l.run(cfg.FlushInterval)
	return l
}

// Record buffers one event. Never blocks.
func (l *asyncLogger) Record(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	if len(l.buffer) == cap(l.buffer) {
		copy(l.buffer, l.buffer[1:])
		l.buffer = l.buffer[:len(l.buffer)-1]
		l.dropped++
	}
	l.buffer = append(l.buffer, event)
	full := len(l.buffer) >= cap(l.buffer)/2
	l.mu.Unlock()

	if full {
		select {
		case l.flushCh <- struct{}{}:
		default:
		}
	}
}

func (l *asyncLogger) run(interval time.Duration) {
	defer close(l.ackCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.flush()
		case <-l.flushCh:
			l.flush()
		case <-l.doneCh:
			l.flush()
			return
		}
	}
}

func (l *asyncLogger) flush() {
	l.mu.Lock()
	if len(l.buffer) == 0 {
		l.mu.Unlock()
		return
	}
	batch := l.buffer
	l.buffer = make([]*Event, 0, cap(batch))
	dropped := l.dropped
	l.dropped = 0
	l.mu.Unlock()

	if dropped > 0 {
		l.logger.Warn("Audit buffer overflowed, oldest events dropped",
			zap.Uint64("dropped", dropped),
		)
	}
	if err := l.writer.Write(batch); err != nil {
		l.logger.Error("Audit flush failed",
			zap.Int("events", len(batch)),
			zap.Error(err),
		)
	}
}

// Close flushes remaining events and releases the writer
func (l *asyncLogger) Close() error {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	close(l.doneCh)
	<-l.ackCh
	return l.writer.Close()
}
