package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/observix/observix/pkg/models"
)

// fileDestination appends events to a file, one line each: the raw payload,
// or the whole event as JSON when format is jsonl.
type fileDestination struct {
	opts models.FileDestinationOptions
	f    *os.File
}

func newFileDestination(opts models.FileDestinationOptions) (*fileDestination, error) {
	if dir := filepath.Dir(opts.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create destination directory: %w", err)
		}
	}
	f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open destination file: %w", err)
	}
	return &fileDestination{opts: opts, f: f}, nil
}

func (d *fileDestination) sendBatch(batch []models.Event) (int, error) {
	delivered := 0
	for _, e := range batch {
		var line []byte
		if d.opts.Format == "jsonl" {
			b, err := json.Marshal(e)
			if err != nil {
				return delivered, fmt.Errorf("failed to encode event: %w", err)
			}
			line = b
		} else {
			line = []byte(e.Raw)
		}
		if _, err := d.f.Write(append(line, '\n')); err != nil {
			return delivered, fmt.Errorf("failed to append to %s: %w", d.opts.Path, err)
		}
		delivered++
	}
	return delivered, nil
}

func (d *fileDestination) Close() error {
	return d.f.Close()
}
