package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestREPLRunsUntilQuit(t *testing.T) {
	h := newHarness(t, 0)
	repl := NewREPL(h.dispatcher, h.store, NewTextRenderer(func() time.Time { return consoleNow }))

	script := strings.Join([]string{
		"refresh",
		"",
		"sort age desc",
		"tab 2",
		"enroll s1",
		"quit",
		"tab 3",
	}, "\n")
	var out bytes.Buffer
	require.NoError(t, repl.Run(context.Background(), strings.NewReader(script), &out))

	text := out.String()
	assert.Contains(t, text, "[1:students]")
	assert.Contains(t, text, "AGE ▼")
	assert.Contains(t, text, "[2:classes]")
	assert.Contains(t, text, "Turma A  1/2 (50.0%)")
	assert.Contains(t, text, "[ERROR] usage: enroll <student-id> <class-id>")
	assert.NotContains(t, text, "[3:reports]")
	assert.NotRegexp(t, "(?m)^"+prompt, text)
}

func TestREPLReportsUnterminatedQuote(t *testing.T) {
	h := newHarness(t, 0)
	repl := NewREPL(h.dispatcher, h.store, nil)

	var out bytes.Buffer
	require.NoError(t, repl.Run(context.Background(), strings.NewReader(`search "ana`), &out))
	assert.Contains(t, out.String(), "[ERROR] unterminated quote")
}

func TestREPLStopsOnCancelledContext(t *testing.T) {
	h := newHarness(t, 0)
	repl := NewREPL(h.dispatcher, h.store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repl.Run(ctx, strings.NewReader("refresh\n"), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.backend.requestLog())
}

func TestSplitArgs(t *testing.T) {
	fields, err := SplitArgs(`student-set  name "Ana  Lima" extra`)
	require.NoError(t, err)
	assert.Equal(t, []string{"student-set", "name", "Ana  Lima", "extra"}, fields)

	fields, err = SplitArgs(`student-set email ""`)
	require.NoError(t, err)
	assert.Equal(t, []string{"student-set", "email", ""}, fields)

	fields, err = SplitArgs("   ")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startREPL(t *testing.T, h *harness) (feed *io.PipeWriter, out *lockedBuffer, done <-chan error) {
	t.Helper()
	in, feed := io.Pipe()
	out = &lockedBuffer{}
	errCh := make(chan error, 1)
	repl := NewREPL(h.dispatcher, h.store, NewTextRenderer(func() time.Time { return consoleNow }))
	go func() { errCh <- repl.Run(context.Background(), in, out) }()
	return feed, out, errCh
}

func sendLine(t *testing.T, feed *io.PipeWriter, line string) {
	t.Helper()
	_, err := io.WriteString(feed, line+"\n")
	require.NoError(t, err)
}

func TestREPLShowsDebouncedSearchFailure(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)
	h.server.Close()
	feed, out, done := startREPL(t, h)

	sendLine(t, feed, "search ana")
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[ERROR] "+TransportFailureMessage)
	}, 2*time.Second, 10*time.Millisecond)

	sendLine(t, feed, "quit")
	require.NoError(t, <-done)
	assert.Equal(t, 1, strings.Count(out.String(), "[ERROR] "+TransportFailureMessage))
}

func TestREPLRedrawsWhenDebouncedSearchCompletes(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)
	feed, out, done := startREPL(t, h)

	sendLine(t, feed, "search ana")
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "1 student(s)")
	}, 2*time.Second, 10*time.Millisecond)

	sendLine(t, feed, "quit")
	require.NoError(t, <-done)

	text := out.String()
	assert.Contains(t, text, "No students found")
	assert.Less(t, strings.Index(text, "No students found"), strings.LastIndex(text, "1 student(s)"))
	var fetched bool
	for _, entry := range h.backend.requestLog() {
		if strings.Contains(entry, "search=ana") {
			fetched = true
		}
	}
	assert.True(t, fetched)
}

func TestREPLHoldsNotificationsWhileCommandRuns(t *testing.T) {
	h := newHarness(t, 0)
	feed, out, done := startREPL(t, h)

	sendLine(t, feed, "refresh")
	sendLine(t, feed, "student-delete s1")
	sendLine(t, feed, "quit")
	require.NoError(t, <-done)

	text := out.String()
	assert.Equal(t, 1, strings.Count(text, "[OK] Student deleted"))
}
