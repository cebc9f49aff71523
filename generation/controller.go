package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"velicia/llm"
	"velicia/store"
	"velicia/streamers"
)

// ErrBusy is returned when a turn is sent while another generation is active.
var ErrBusy = errors.New("a generation is already in progress")

// ErrReservationSpent is returned by Run on a reservation that already ran or
// was released.
var ErrReservationSpent = errors.New("reservation already used")

// attachmentTitle is used as the title source when a turn has no text.
const attachmentTitle = "Attachment sent"

var searchIntent = regexp.MustCompile(`(?i)(cari|search|harga|terbaru|news|berita|siapa|dimana|kapan|what is|where is|who is)`)

// Router resolves a model id to an adapter. *llm.Router satisfies it.
type Router interface {
	Route(modelID string) llm.Route
}

// Turn is one user send.
type Turn struct {
	SessionID   string
	Text        string
	Model       string
	Attachments []llm.Attachment
}

// Result describes a settled generation. Err carries the tagged adapter error
// when the generation settled with an error; the text written into the
// conversation is in Text either way.
type Result struct {
	SessionID     string
	UserMessageID string
	MessageID     string
	Model         string
	Text          string
	State         State
	Err           error
}

// Options configures a Controller.
type Options struct {
	Store      store.SessionStore
	Router     Router
	Logger     hclog.Logger
	TurnLogger *llm.TurnLogger
}

// Controller runs the per-session generation loop. At most one generation
// runs at a time across the whole process.
type Controller struct {
	store      store.SessionStore
	router     Router
	logger     hclog.Logger
	turnLogger *llm.TurnLogger

	mu        sync.Mutex
	active    string // session id holding the gate, empty when idle
	states    map[string]State
	listeners []func(StateChange)
}

// New creates a controller.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Controller{
		store:      opts.Store,
		router:     opts.Router,
		logger:     logger,
		turnLogger: opts.TurnLogger,
		states:     make(map[string]State),
	}
}

// OnStateChange registers fn to be called on every state transition.
func (c *Controller) OnStateChange(fn func(StateChange)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// State returns the current state of a session's generation.
func (c *Controller) State(sessionID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.states[sessionID]; ok {
		return st
	}
	return StateIdle
}

// Busy reports whether any generation is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != ""
}

// SendTurn appends the user message and a placeholder, streams the model's
// answer into the placeholder, and settles it. It returns ErrBusy without
// side effects if a generation is already running. Adapter failures do not
// produce an error return: they settle the placeholder and are reported in
// Result.Err.
func (c *Controller) SendTurn(ctx context.Context, turn Turn, handler streamers.GenerationHandler) (Result, error) {
	if err := validateTurn(turn); err != nil {
		return Result{}, err
	}
	r, err := c.Reserve()
	if err != nil {
		return Result{}, err
	}
	return r.Run(ctx, turn, handler)
}

// Reservation holds the single-flight gate for one turn. Callers that must
// answer before the turn runs (the WebSocket ack) reserve first, then Run or
// Release.
type Reservation struct {
	c     *Controller
	ran   atomic.Bool
	spent atomic.Bool
}

// Reserve takes the gate or returns ErrBusy.
func (c *Controller) Reserve() (*Reservation, error) {
	if !c.acquire() {
		return nil, ErrBusy
	}
	return &Reservation{c: c}, nil
}

// Release gives the gate back. Calls after the first are no-ops.
func (r *Reservation) Release() {
	if r.spent.CompareAndSwap(false, true) {
		r.c.release()
	}
}

// Run executes the turn and releases the gate once it has settled. A
// reservation runs at most once and never after Release.
func (r *Reservation) Run(ctx context.Context, turn Turn, handler streamers.GenerationHandler) (Result, error) {
	if !r.ran.CompareAndSwap(false, true) || r.spent.Load() {
		return Result{}, ErrReservationSpent
	}
	defer r.Release()
	if err := validateTurn(turn); err != nil {
		return Result{}, err
	}
	return r.c.run(ctx, turn, handler)
}

func validateTurn(turn Turn) error {
	if strings.TrimSpace(turn.Text) == "" && len(turn.Attachments) == 0 {
		return fmt.Errorf("empty turn")
	}
	return nil
}

func (c *Controller) run(ctx context.Context, turn Turn, handler streamers.GenerationHandler) (Result, error) {
	if handler == nil {
		handler = streamers.NopHandler{}
	}

	sessionID, err := c.ensureSession(turn.SessionID)
	if err != nil {
		return Result{}, err
	}
	c.claim(sessionID)

	route := c.router.Route(turn.Model)
	searching := searchIntent.MatchString(turn.Text)
	c.transition(sessionID, StateDispatching, searching)

	// History is captured before this turn's messages are appended, so it
	// holds prior turns only.
	prior, err := c.store.Get(sessionID)
	if err != nil {
		c.transition(sessionID, StateIdle, false)
		return Result{}, err
	}
	history := historyFrom(prior)

	titleSource := turn.Text
	if strings.TrimSpace(titleSource) == "" {
		titleSource = attachmentTitle
	}
	userMsg := store.Message{ID: uuid.New().String(), Text: displayText(turn)}
	if _, err := c.store.AppendUserMessage(sessionID, userMsg, titleSource); err != nil {
		c.transition(sessionID, StateIdle, false)
		return Result{}, fmt.Errorf("append user message: %w", err)
	}

	placeholder := store.Message{ID: uuid.New().String(), Model: route.Descriptor.ID}
	if _, err := c.store.AppendPlaceholder(sessionID, placeholder); err != nil {
		c.transition(sessionID, StateIdle, false)
		return Result{}, fmt.Errorf("append placeholder: %w", err)
	}

	req := &llm.GenerateRequest{
		Model:       route.Descriptor,
		Persona:     route.Persona,
		History:     history,
		Text:        turn.Text,
		Attachments: turn.Attachments,
	}

	c.logger.Info("dispatching turn", "session", sessionID, "model", route.Descriptor.ID,
		"family", route.Descriptor.Family, "history", len(history), "attachments", len(turn.Attachments))
	handler.Thinking(searching)

	started := time.Now()
	stream := route.Adapter.Generate(ctx, req)
	text, fragments, streamErr := c.drain(sessionID, placeholder.ID, stream, handler)
	stream.Close()

	result := Result{
		SessionID:     sessionID,
		UserMessageID: userMsg.ID,
		MessageID:     placeholder.ID,
		Model:         route.Descriptor.ID,
	}

	if streamErr != nil {
		result.Text = llm.UserMessage(streamErr)
		result.Err = streamErr
		result.State = StateSettledError
		if _, err := c.store.SetTerminalText(sessionID, placeholder.ID, result.Text, store.StatusError, llm.KindOf(streamErr).String()); err != nil {
			c.logger.Error("could not settle placeholder", "session", sessionID, "error", err)
		}
		c.logger.Warn("generation failed", "session", sessionID, "model", route.Descriptor.ID,
			"kind", llm.KindOf(streamErr), "error", streamErr)
		handler.Error(streamErr, result.Text)
	} else {
		result.Text = text
		result.State = StateSettledSuccess
		if _, err := c.store.SetTerminalText(sessionID, placeholder.ID, text, store.StatusComplete, ""); err != nil {
			c.logger.Error("could not settle placeholder", "session", sessionID, "error", err)
		}
		c.logger.Info("generation complete", "session", sessionID, "fragments", fragments, "bytes", len(text))
		handler.FinishAnswer()
	}
	c.transition(sessionID, result.State, false)

	c.turnLogger.LogTurn(llm.TurnRecord{
		SessionID: sessionID,
		Request:   req,
		Fragments: fragments,
		Response:  text,
		Err:       streamErr,
		Duration:  time.Since(started),
	})

	return result, nil
}

// drain pulls fragments in order and folds the accumulated text into the
// placeholder after each one.
func (c *Controller) drain(sessionID, messageID string, stream llm.Stream, handler streamers.GenerationHandler) (string, int, error) {
	var acc strings.Builder
	fragments := 0

	for {
		fragment, err := stream.Next()
		if err == io.EOF {
			return acc.String(), fragments, nil
		}
		if err != nil {
			return acc.String(), fragments, err
		}

		if fragments == 0 {
			c.transition(sessionID, StateStreaming, false)
		}
		fragments++
		acc.WriteString(fragment)

		if _, err := c.store.FoldFragment(sessionID, messageID, acc.String()); err != nil {
			return acc.String(), fragments, fmt.Errorf("fold fragment: %w", err)
		}
		handler.PublishAnswerChunk(fragment)
	}
}

func (c *Controller) ensureSession(id string) (string, error) {
	if id != "" {
		if _, err := c.store.Get(id); err == nil {
			return id, nil
		} else if !errors.Is(err, store.ErrSessionNotFound) {
			return "", err
		}
	}
	sess, err := c.store.Create()
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sess.ID, nil
}

// historyFrom maps settled messages to adapter history. Placeholders and
// errored replies are left out.
func historyFrom(s store.Session) []llm.Message {
	history := make([]llm.Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.IsPlaceholder() || m.Status == store.StatusError {
			continue
		}
		role := llm.RoleUser
		if m.Sender == store.SenderAssistant {
			role = llm.RoleAssistant
		}
		history = append(history, llm.NewTextMessage(role, m.Text))
	}
	return history
}

// displayText is the stored form of a user turn: the text plus one marker per
// attachment.
func displayText(turn Turn) string {
	if len(turn.Attachments) == 0 {
		return turn.Text
	}
	names := make([]string, 0, len(turn.Attachments))
	for _, a := range turn.Attachments {
		names = append(names, a.Summary())
	}
	return strings.TrimSpace(turn.Text + "\n" + strings.Join(names, " "))
}

func (c *Controller) acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != "" {
		return false
	}
	c.active = "pending"
	return true
}

func (c *Controller) claim(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = sessionID
}

func (c *Controller) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = ""
}

func (c *Controller) transition(sessionID string, to State, searching bool) {
	c.mu.Lock()
	from := c.states[sessionID]
	if from == "" {
		from = StateIdle
	}
	c.states[sessionID] = to
	listeners := append([]func(StateChange){}, c.listeners...)
	c.mu.Unlock()

	c.logger.Trace("state transition", "session", sessionID, "from", from, "to", to)
	change := StateChange{SessionID: sessionID, From: from, To: to, Searching: searching}
	for _, fn := range listeners {
		fn(change)
	}
}
