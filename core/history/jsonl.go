package history

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// JSONLStore appends snapshots to a JSONL file with automatic rotation.
type JSONLStore struct {
	logger *lumberjack.Logger
	path   string
}

// NewJSONLStore creates a store with rotation options in megabytes and days.
func NewJSONLStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*JSONLStore, error) {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   false,
	}
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &JSONLStore{logger: lj, path: path}, nil
}

// Append writes the snapshot and triggers rotation if needed.
func (s *JSONLStore) Append(ctx context.Context, snap Snapshot) error {
	_ = ctx
	enc := json.NewEncoder(s.logger)
	return enc.Encode(snap)
}

// Query reads all export files including rotated ones.
func (s *JSONLStore) Query(ctx context.Context, q Query) ([]Snapshot, error) {
	_ = ctx
	pattern := s.path + "*"
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	var res []Snapshot
	for _, f := range files {
		file, err := os.Open(f)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			var snap Snapshot
			if err := json.Unmarshal(scanner.Bytes(), &snap); err != nil {
				continue
			}
			if !q.Start.IsZero() && snap.ExportedAt.Before(q.Start) {
				continue
			}
			if !q.End.IsZero() && snap.ExportedAt.After(q.End) {
				continue
			}
			res = append(res, snap)
		}
		_ = file.Close()
	}
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[len(res)-q.Limit:]
	}
	return res, nil
}

// Close closes the underlying writer.
func (s *JSONLStore) Close() error {
	return s.logger.Close()
}
