package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fillScope/internal/model"
)

// JsonlSink appends ingested events to a JSONL file. It backs dry-run ingestion.
type JsonlSink struct {
	path string
	mu   sync.Mutex
}

func NewJsonlSink(path string) *JsonlSink {
	return &JsonlSink{path: path}
}

// PutEventBatch appends events as JSON lines and reports how many were written.
func (s *JsonlSink) PutEventBatch(_ context.Context, events []model.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, event := range events {
		line, err := json.Marshal(event)
		if err != nil {
			return 0, fmt.Errorf("marshal event %s: %w", event.ID, err)
		}
		if _, err := writer.Write(append(line, '\n')); err != nil {
			return 0, fmt.Errorf("write event: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return 0, fmt.Errorf("flush output: %w", err)
	}
	return len(events), nil
}
