package audit

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Writer persists audit events
type Writer interface {
	Write(events []*Event) error
	Close() error
}

// jsonWriter streams events as JSON lines to any io.Writer
type jsonWriter struct {
	mu     sync.Mutex
	out    io.Writer
	closer io.Closer
}

// NewFileWriter creates a rotating file writer for audit events
func NewFileWriter(filename string, maxSizeMB, maxBackups, maxAgeDays int) Writer {
	lj := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	return &jsonWriter{out: lj, closer: lj}
}

// NewStdoutWriter creates a writer that emits events to stdout
func NewStdoutWriter() Writer {
	return &jsonWriter{out: os.Stdout}
}

func (w *jsonWriter) Write(events []*Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	enc := json.NewEncoder(w.out)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}

func (w *jsonWriter) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
