package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/JakeFAU/keyword-crawler/internal/crawler"
)

var csvHeader = []string{"run_id", "keyword", "category", "label", "link", "found_at"}

// CSV appends results to a CSV file. Writes are serialized and flushed one
// batch at a time.
type CSV struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// NewCSV opens path for appending, writing the header only to a new or empty file.
func NewCSV(path string) (*CSV, error) {
	if path == "" {
		return nil, fmt.Errorf("csv path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create csv dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat csv: %w", err)
	}
	s := &CSV{file: file, w: csv.NewWriter(file)}
	if info.Size() == 0 {
		if err := s.writeRows([][]string{csvHeader}); err != nil {
			_ = file.Close()
			return nil, err
		}
	}
	return s, nil
}

// Write appends one row per result.
func (s *CSV) Write(_ context.Context, _, _ string, results []crawler.Result) error {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.RunID,
			r.Keyword,
			r.Category,
			r.Label,
			r.Link,
			r.FoundAt.UTC().Format(time.RFC3339),
		})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeRows(rows)
}

func (s *CSV) writeRows(rows [][]string) error {
	if err := s.w.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (s *CSV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	flushErr := s.w.Error()
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close csv: %w", err)
	}
	if flushErr != nil {
		return fmt.Errorf("flush csv: %w", flushErr)
	}
	return nil
}
