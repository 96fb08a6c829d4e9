package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/internal/viewstate"
)

const prompt = "> "

// REPL reads one event per line and prints the outcome and the refreshed view.
// Updates that land between commands, such as a debounced search fetch, are
// printed as they arrive.
type REPL struct {
	dispatcher *Dispatcher
	store      *viewstate.Store
	renderer   *TextRenderer
}

// NewREPL constructs a REPL.
func NewREPL(dispatcher *Dispatcher, store *viewstate.Store, renderer *TextRenderer) *REPL {
	if renderer == nil {
		renderer = NewTextRenderer(nil)
	}
	return &REPL{dispatcher: dispatcher, store: store, renderer: renderer}
}

// replOutput serializes writes from the command loop and from background
// completions. While a command runs, notifications are held and flushed with
// the command's own output; view updates are dropped since the loop renders
// afterwards anyway.
type replOutput struct {
	mu       sync.Mutex
	out      io.Writer
	renderer *TextRenderer
	busy     bool
	closed   bool
	pending  []models.Notification
}

func (o *replOutput) onView(v models.View) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy || o.closed {
		return
	}
	_ = o.renderer.Render(o.out, v)
}

func (o *replOutput) onNotification(note models.Notification) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	if o.busy {
		o.pending = append(o.pending, note)
		return
	}
	_ = o.renderer.RenderNotification(o.out, note)
}

func (o *replOutput) begin() {
	o.mu.Lock()
	o.busy = true
	o.mu.Unlock()
}

// finish prints the command outcome plus anything held while it ran.
func (o *replOutput) finish(result Result, view func() (models.View, bool)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.busy = false
	pending := o.pending
	o.pending = nil

	if result.Output != "" {
		fmt.Fprintln(o.out, result.Output)
	}
	shown := false
	for _, note := range pending {
		if result.Notification != nil && note == *result.Notification {
			shown = true
		}
		if err := o.renderer.RenderNotification(o.out, note); err != nil {
			return err
		}
	}
	if result.Notification != nil && !shown {
		if err := o.renderer.RenderNotification(o.out, *result.Notification); err != nil {
			return err
		}
	}
	if v, ok := view(); ok {
		return o.renderer.Render(o.out, v)
	}
	return nil
}

func (o *replOutput) write(fn func(io.Writer) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return fn(o.out)
}

func (o *replOutput) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

// Run processes lines until EOF, "quit" or context cancellation. A prompt is
// printed only when in is an interactive terminal.
func (r *REPL) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	interactive := isTerminal(in)
	scanner := bufio.NewScanner(in)

	output := &replOutput{out: out, renderer: r.renderer}
	unsubscribeView := r.store.Subscribe(output.onView)
	unsubscribeNotes := func() {}
	if notifier := r.dispatcher.Notifier(); notifier != nil {
		unsubscribeNotes = notifier.Subscribe(output.onNotification)
	}
	defer func() {
		output.close()
		unsubscribeView()
		unsubscribeNotes()
	}()

	if err := output.write(func(w io.Writer) error { return r.renderer.Render(w, r.store.View()) }); err != nil {
		return err
	}
	for {
		if interactive {
			_ = output.write(func(w io.Writer) error {
				_, err := fmt.Fprint(w, prompt)
				return err
			})
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fields, err := SplitArgs(scanner.Text())
		if err != nil {
			parseErr := err
			_ = output.write(func(w io.Writer) error {
				_, werr := fmt.Fprintf(w, "[ERROR] %v\n", parseErr)
				return werr
			})
			continue
		}
		if len(fields) == 0 {
			continue
		}
		if name := strings.ToLower(fields[0]); name == "quit" || name == "exit" {
			return nil
		}

		output.begin()
		result := r.dispatcher.Dispatch(ctx, fields[0], fields[1:])
		err = output.finish(result, func() (models.View, bool) {
			if result.Event == "help" || result.Event == "forms" {
				return models.View{}, false
			}
			return r.store.View(), true
		})
		if err != nil {
			return err
		}
	}
}

// SplitArgs splits a command line on whitespace, keeping double-quoted runs together.
func SplitArgs(line string) ([]string, error) {
	var (
		fields  []string
		current strings.Builder
		quoted  bool
		inField bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			inField = true
		case !quoted && (r == ' ' || r == '\t'):
			if inField {
				fields = append(fields, current.String())
				current.Reset()
				inField = false
			}
		default:
			current.WriteRune(r)
			inField = true
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote")
	}
	if inField {
		fields = append(fields, current.String())
	}
	return fields, nil
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
