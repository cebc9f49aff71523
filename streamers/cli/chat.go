package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
)

// ChatHandler implements streamers.ChatHandler for terminal I/O
type ChatHandler struct {
	reader       *bufio.Reader
	out          io.Writer
	spinner      *spinner
	answerBuffer strings.Builder
	renderer     *glamour.TermRenderer
}

// NewChatHandler creates a new CLI chat handler on stdin/stdout
func NewChatHandler() *ChatHandler {
	return NewChatHandlerIO(os.Stdin, os.Stdout, true)
}

// NewChatHandlerIO creates a handler over arbitrary streams. Markdown
// rendering is skipped when render is false.
func NewChatHandlerIO(in io.Reader, out io.Writer, render bool) *ChatHandler {
	var renderer *glamour.TermRenderer
	if render {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
	}
	return &ChatHandler{
		reader:   bufio.NewReader(in),
		out:      out,
		spinner:  newSpinner(out),
		renderer: renderer,
	}
}

func (s *ChatHandler) Welcome(modelLabel string, modelID string) {
	fmt.Fprintf(s.out, "%s%sChatting with %s%s (model: %s)\n", ColorBold, ColorOrange, modelLabel, ColorReset, modelID)
	fmt.Fprintf(s.out, "%sType /models, /model <id>, /attach <path>, /new, or 'exit' to quit.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(s.out)
}

func (s *ChatHandler) AwaitClientAnswer() (string, error) {
	fmt.Fprintf(s.out, "%s>  %s", ColorGray, ColorReset)
	input, err := s.reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func (s *ChatHandler) Notice(text string) {
	fmt.Fprintf(s.out, "%s%s%s\n", ColorGray, text, ColorReset)
}

func (s *ChatHandler) Goodbye() {
	fmt.Fprintf(s.out, "%sGoodbye!%s\n", ColorGray, ColorReset)
}

func (s *ChatHandler) Thinking(searching bool) {
	s.answerBuffer.Reset()
	if searching {
		s.spinner.Start("Searching...")
		return
	}
	s.spinner.Start("Thinking...")
}

func (s *ChatHandler) PublishAnswerChunk(chunk string) {
	// Buffer chunks - spinner keeps running
	s.answerBuffer.WriteString(chunk)
}

func (s *ChatHandler) FinishAnswer() {
	s.spinner.Stop()

	content := s.answerBuffer.String()
	s.answerBuffer.Reset()
	if content == "" {
		return
	}

	rendered := content
	if s.renderer != nil {
		if out, err := s.renderer.Render(content); err == nil {
			rendered = out
		}
	}

	// Glamour adds leading/trailing newlines - trim them
	rendered = strings.TrimSpace(rendered)
	fmt.Fprintf(s.out, "%s•%s%s\n\n", ColorGray, ColorReset, rendered)
}

func (s *ChatHandler) Error(err error, text string) {
	s.spinner.Stop()
	s.answerBuffer.Reset()
	fmt.Fprintf(s.out, "%s•%s%s%s\n\n", ColorGray, ColorRed, text, ColorReset)
}

// spinner handles the loading animation
type spinner struct {
	out     io.Writer
	frames  []string
	stop    chan struct{}
	stopped chan struct{}
	mu      sync.Mutex
	running bool
}

func newSpinner(out io.Writer) *spinner {
	return &spinner{
		out:     out,
		frames:  []string{"◐", "◓", "◑", "◒"},
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (s *spinner) Start(message string) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.stopped)
		i := 0
		for {
			select {
			case <-s.stop:
				fmt.Fprint(s.out, "\r\033[K") // Clear line
				return
			default:
				fmt.Fprintf(s.out, "\r%s%s%s %s", ColorGray, s.frames[i%len(s.frames)], ColorReset, message)
				i++
				time.Sleep(80 * time.Millisecond)
			}
		}
	}()
}

func (s *spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stop)
	<-s.stopped
}
