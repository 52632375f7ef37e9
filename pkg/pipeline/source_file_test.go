package pipeline

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observix/observix/pkg/models"
)

// eventCollector is an emitFunc that records everything it is handed.
type eventCollector struct {
	mu     sync.Mutex
	events []models.Event
}

func (c *eventCollector) emit(e models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return true
}

func (c *eventCollector) raws() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Raw
	}
	return out
}

func startFileTail(t *testing.T, pattern string, fromStart bool) (*fileTailSource, *eventCollector) {
	t.Helper()

	var c eventCollector
	s, err := newFileTailSource(models.FileTailSourceOptions{Path: pattern, FromStart: fromStart}, c.emit)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()
	t.Cleanup(func() {
		require.NoError(t, s.Close())
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("file tail source did not stop")
		}
	})
	return s, &c
}

func TestFileTailFromStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("first\nsecond\n"), 0o644))

	_, c := startFileTail(t, path, true)

	require.Eventually(t, func() bool { return len(c.raws()) == 2 },
		5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, c.raws())
}

func TestFileTailFromEndPicksUpAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("old line\n"), 0o644))

	_, c := startFileTail(t, path, false)

	// Give the tailer a scan cycle before appending.
	time.Sleep(fileTailPollInterval + 100*time.Millisecond)
	assert.Empty(t, c.raws(), "existing content is skipped without from_start")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("new line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool { return len(c.raws()) == 1 },
		5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "new line", c.raws()[0])
}

func TestFileTailGlobPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()

	_, c := startFileTail(t, filepath.Join(dir, "*.log"), true)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.log"), []byte("appeared\n"), 0o644))

	require.Eventually(t, func() bool { return len(c.raws()) == 1 },
		5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "appeared", c.raws()[0])
}

func TestFileTailHoldsPartialLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	_, c := startFileTail(t, path, true)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	_, err = f.WriteString("incomple")
	require.NoError(t, err)

	time.Sleep(fileTailPollInterval + 100*time.Millisecond)
	assert.Empty(t, c.raws(), "a fragment without newline stays buffered")

	_, err = f.WriteString("te line\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(c.raws()) == 1 },
		5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "incomplete line", c.raws()[0])
}

func TestFileTailInvalidPattern(t *testing.T) {
	var c eventCollector
	_, err := newFileTailSource(models.FileTailSourceOptions{Path: "logs/[bad"}, c.emit)
	require.Error(t, err)
}
