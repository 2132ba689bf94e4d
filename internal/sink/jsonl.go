// Package sink implements the append-only record stream.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/biopub/harvester/internal/harvest"
)

// JSONLSink appends records to a file, one JSON object per line. Every
// Append issues exactly one write of a complete line under the mutex, so
// interleaved workers never corrupt a line and an interrupted run leaves
// exactly the appended lines readable.
type JSONLSink struct {
	mu      sync.Mutex
	file    *os.File
	written atomic.Int64
}

// Open creates (or truncates) the output file. Failure here is fatal to the
// run: no URL is processed without a writable destination.
func Open(path string) (*JSONLSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", path, err)
	}
	return &JSONLSink{file: f}, nil
}

// Append serializes rec and writes it with its trailing newline in a single
// call before returning.
func (s *JSONLSink) Append(ctx context.Context, rec harvest.Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("append canceled: %w", err)
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.PaperID, err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("append record %s: %w", rec.PaperID, err)
	}
	s.written.Add(1)
	return nil
}

// Count reports how many records have been appended.
func (s *JSONLSink) Count() int64 {
	return s.written.Load()
}

// Close closes the underlying file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
