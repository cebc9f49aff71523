package wsbridge

import (
	"strings"
	"sync"

	"velicia/llm"
	"velicia/store"
	"velicia/streamers"
)

// WSGenerationHandler implements streamers.GenerationHandler by streaming
// every fragment to the connection that sent the turn. Other clients follow
// along through session_updated broadcasts.
type WSGenerationHandler struct {
	conn      *conn
	sessionID string

	mu     sync.Mutex
	answer strings.Builder
}

var _ streamers.GenerationHandler = (*WSGenerationHandler)(nil)

func newWSGenerationHandler(c *conn, sessionID string) *WSGenerationHandler {
	return &WSGenerationHandler{conn: c, sessionID: sessionID}
}

func (h *WSGenerationHandler) sendEvent(t MessageType, payload any) {
	env, err := NewEvent(t, payload)
	if err != nil {
		h.conn.server.logger.Error("marshal event", "type", t, "error", err)
		return
	}
	h.conn.send(env)
}

// Thinking is covered by the generation_state broadcast.
func (h *WSGenerationHandler) Thinking(bool) {}

func (h *WSGenerationHandler) PublishAnswerChunk(chunk string) {
	h.mu.Lock()
	h.answer.WriteString(chunk)
	h.mu.Unlock()
	h.sendEvent(TypeAnswerChunk, &AnswerChunkPayload{SessionID: h.sessionID, Content: chunk})
}

func (h *WSGenerationHandler) FinishAnswer() {
	h.sendEvent(TypeAnswerDone, &AnswerDonePayload{
		SessionID: h.sessionID,
		Status:    string(store.StatusComplete),
		Text:      h.FullAnswer(),
	})
}

func (h *WSGenerationHandler) Error(err error, text string) {
	h.sendEvent(TypeAnswerDone, &AnswerDonePayload{
		SessionID: h.sessionID,
		Status:    string(store.StatusError),
		Text:      text,
		ErrorKind: llm.KindOf(err).String(),
	})
}

// FullAnswer returns the fragments received so far.
func (h *WSGenerationHandler) FullAnswer() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.answer.String()
}
