package cmd

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"velicia/generation"
	"velicia/llm"
	"velicia/streamers"
	"velicia/streamers/cli"
)

var (
	chatModel   string
	chatAttach  []string
	chatDebug   bool
	chatNoColor bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long: `Start an interactive chat session. Answers stream from the selected model
and are rendered as markdown when complete.

Commands inside the session:
  /models         List available models
  /model <id>     Switch model for the next message
  /attach <path>  Attach a file to the next message
  /new            Start a new conversation
  exit, quit      Leave`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		opts := runtimeOptions{Level: "warn"}
		if chatDebug {
			opts.TurnLog = "debug.jsonl"
		}
		rt, err := newRuntime(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer rt.Close()

		handler := cli.NewChatHandlerIO(os.Stdin, os.Stdout, !chatNoColor)
		session := &chatSession{
			rt:      rt,
			handler: handler,
			model:   chatModel,
		}
		if session.model == "" {
			session.model = rt.router.DefaultModel()
		}
		for _, path := range chatAttach {
			if err := session.attach(path); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		session.run(cmd.Context())
	},
}

// chatSession is the REPL state: the conversation, the selected model and any
// queued attachments.
type chatSession struct {
	rt        *runtime
	handler   streamers.ChatHandler
	sessionID string
	model     string
	pending   []llm.Attachment
}

func (s *chatSession) run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	route := s.rt.router.Route(s.model)
	s.handler.Welcome(route.Descriptor.DisplayName(), route.Descriptor.ID)

	for {
		input, err := s.handler.AwaitClientAnswer()
		if err != nil {
			if err != io.EOF {
				s.handler.Notice(fmt.Sprintf("Error: %v", err))
			}
			s.handler.Goodbye()
			return
		}

		if input == "" && len(s.pending) == 0 {
			continue
		}
		if input == "exit" || input == "quit" {
			s.handler.Goodbye()
			return
		}
		if strings.HasPrefix(input, "/") {
			s.command(input)
			continue
		}

		s.send(ctx, input)
	}
}

func (s *chatSession) command(input string) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/models":
		for _, d := range s.rt.router.Models() {
			marker := " "
			if d.ID == s.model {
				marker = "*"
			}
			s.handler.Notice(fmt.Sprintf("%s %-20s %-20s %s", marker, d.ID, d.DisplayName(), d.Description))
		}
	case "/model":
		if arg == "" {
			s.handler.Notice("Usage: /model <id>")
			return
		}
		s.model = arg
		route := s.rt.router.Route(arg)
		s.handler.Notice(fmt.Sprintf("Switched to %s (%s)", route.Descriptor.DisplayName(), route.Descriptor.ID))
	case "/attach":
		if arg == "" {
			s.handler.Notice("Usage: /attach <path>")
			return
		}
		if err := s.attach(arg); err != nil {
			s.handler.Notice(fmt.Sprintf("Error: %v", err))
			return
		}
		a := s.pending[len(s.pending)-1]
		s.handler.Notice(fmt.Sprintf("Attached %s (%s)", a.Name, a.MIMEType))
	case "/new":
		s.sessionID = ""
		s.pending = nil
		s.handler.Notice("Started a new conversation")
	default:
		s.handler.Notice(fmt.Sprintf("Unknown command %s", name))
	}
}

func (s *chatSession) send(ctx context.Context, text string) {
	turn := generation.Turn{
		SessionID:   s.sessionID,
		Text:        text,
		Model:       s.model,
		Attachments: s.pending,
	}
	handler := streamers.NewLoggingHandler(s.handler, s.rt.logger.Named("generation"))
	res, err := s.rt.controller.SendTurn(ctx, turn, handler)
	if err != nil {
		s.handler.Notice(fmt.Sprintf("Error: %v", err))
		return
	}
	s.sessionID = res.SessionID
	s.pending = nil
}

func (s *chatSession) attach(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read attachment: %w", err)
	}
	s.pending = append(s.pending, llm.NewAttachment(filepath.Base(path), detectMIME(path, data), data))
	return nil
}

// detectMIME prefers the extension and falls back to content sniffing.
func detectMIME(path string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		mediaType, _, err := mime.ParseMediaType(t)
		if err == nil {
			return mediaType
		}
	}
	mediaType, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mediaType
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "Model id to start with (see 'velicia models')")
	chatCmd.Flags().StringArrayVarP(&chatAttach, "attach", "a", nil, "File to attach to the first message (repeatable)")
	chatCmd.Flags().BoolVarP(&chatDebug, "debug", "d", false, "Log every turn to debug.jsonl")
	chatCmd.Flags().BoolVar(&chatNoColor, "plain", false, "Print answers without markdown rendering")
}
