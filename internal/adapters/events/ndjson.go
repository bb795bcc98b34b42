// Package events streams machine-readable run events as NDJSON, one
// JSON object per line.
package events

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
)

// Event is the envelope for one emitted line.
type Event struct {
	Time time.Time `json:"time"`
	Kind string    `json:"kind"`
	Data any       `json:"data,omitempty"`
}

// NDJSONSink streams events to a writer. It is safe for concurrent use.
type NDJSONSink struct {
	mu     sync.Mutex
	writer io.Writer
	closer io.Closer
	logger ports.Logger
}

var _ ports.EventSink = (*NDJSONSink)(nil)

// NewSink returns a sink that streams events to w.
func NewSink(w io.Writer, log ports.Logger) *NDJSONSink {
	return &NDJSONSink{writer: w, logger: log}
}

// NewFileSink returns a sink that streams events to the file at path,
// creating parent directories as needed. Close closes the file.
func NewFileSink(path string, log ports.Logger) (*NDJSONSink, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
			return nil, zerr.Wrap(err, "failed to create event output directory")
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create event output file")
	}

	return &NDJSONSink{writer: f, closer: f, logger: log}, nil
}

// Emit writes one event line. Encoding failures are logged and dropped
// so event output never fails a run.
func (s *NDJSONSink) Emit(kind string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := Event{Time: time.Now().UTC(), Kind: kind, Data: payload}
	if err := json.NewEncoder(s.writer).Encode(e); err != nil {
		s.logger.Warn(fmt.Sprintf("failed to emit %s event: %v", kind, err))
	}
}

// Close flushes buffered output and closes the underlying file, if any.
func (s *NDJSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := flushIfPossible(s.writer); err != nil {
		return zerr.Wrap(err, "failed to flush event output")
	}

	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			return zerr.Wrap(err, "failed to close event output")
		}
	}
	return nil
}

type flusher interface {
	Flush() error
}

func flushIfPossible(w io.Writer) error {
	f, ok := w.(flusher)
	if !ok {
		return nil
	}
	return f.Flush()
}
