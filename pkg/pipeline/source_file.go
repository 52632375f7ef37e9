package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/observix/observix/pkg/models"
)

const fileTailPollInterval = 500 * time.Millisecond

// fileTailSource tails every file matching a glob pattern. New matches are
// picked up on the next scan; from_start controls whether an opened file is
// read from the beginning or only from its current end.
type fileTailSource struct {
	pattern   string
	fromStart bool
	emit      emitFunc

	// tails is touched only by the Run goroutine.
	tails map[string]*fileTail

	stopCh   chan struct{}
	stopOnce sync.Once
}

func newFileTailSource(opts models.FileTailSourceOptions, emit emitFunc) (*fileTailSource, error) {
	if !doublestar.ValidatePattern(opts.Path) {
		return nil, fmt.Errorf("invalid path pattern: %q", opts.Path)
	}
	return &fileTailSource{
		pattern:   opts.Path,
		fromStart: opts.FromStart,
		emit:      emit,
		tails:     make(map[string]*fileTail),
		stopCh:    make(chan struct{}),
	}, nil
}

func (s *fileTailSource) Run() {
	defer s.closeTails()

	ticker := time.NewTicker(fileTailPollInterval)
	defer ticker.Stop()

	// Scan immediately so from_start reads are not delayed by a tick.
	s.scan()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.scan()
		}
	}
}

func (s *fileTailSource) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

// scan re-globs the pattern, opens tails for new matches, and drains every
// tail of complete lines.
func (s *fileTailSource) scan() {
	matches, err := doublestar.FilepathGlob(s.pattern)
	if err != nil {
		slog.Warn("File tail glob failed", "pattern", s.pattern, "error", err)
		return
	}

	for _, path := range matches {
		t, ok := s.tails[path]
		if !ok {
			t, err = openFileTail(path, s.fromStart)
			if err != nil {
				slog.Warn("Failed to open tailed file", "path", path, "error", err)
				continue
			}
			s.tails[path] = t
		}
		t.drain(s.emit)
	}
}

func (s *fileTailSource) closeTails() {
	for _, t := range s.tails {
		_ = t.f.Close()
	}
}

// fileTail is the read state for one tailed file.
type fileTail struct {
	f       *os.File
	reader  *bufio.Reader
	partial strings.Builder
}

func openFileTail(path string, fromStart bool) (*fileTail, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !fromStart {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return &fileTail{f: f, reader: bufio.NewReader(f)}, nil
}

// drain emits every complete line appended since the last call. A fragment
// without a trailing newline stays buffered until the writer finishes it.
func (t *fileTail) drain(emit emitFunc) {
	for {
		chunk, err := t.reader.ReadString('\n')
		if err != nil {
			t.partial.WriteString(chunk)
			return
		}

		line := t.partial.String() + chunk
		t.partial.Reset()
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		emit(models.NewEvent(line))
	}
}
