package wsbridge

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"velicia/generation"
	"velicia/llm"
	"velicia/store"
)

// MessageType identifies the payload carried by an Envelope.
type MessageType string

// Requests (client → server)
const (
	TypeSendTurn      MessageType = "send_turn"
	TypeNewSession    MessageType = "new_session"
	TypeListSessions  MessageType = "list_sessions"
	TypeGetSession    MessageType = "get_session"
	TypeDeleteSession MessageType = "delete_session"
	TypeRenameSession MessageType = "rename_session"
	TypeListModels    MessageType = "list_models"
)

// Responses and events (server → client)
const (
	TypeSendTurnAck     MessageType = "send_turn_ack"
	TypeSession         MessageType = "session"
	TypeSessionList     MessageType = "session_list"
	TypeSessionDeleted  MessageType = "session_deleted"
	TypeModelList       MessageType = "model_list"
	TypeSessionUpdated  MessageType = "session_updated"
	TypeGenerationState MessageType = "generation_state"
	TypeAnswerChunk     MessageType = "answer_chunk"
	TypeAnswerDone      MessageType = "answer_done"
	TypeError           MessageType = "error"
)

// Error codes carried by TypeError envelopes.
const (
	CodeBusy        = "busy"
	CodeBadRequest  = "bad_request"
	CodeNotFound    = "not_found"
	CodeUnknownType = "unknown_type"
	CodeGeneration  = "generation_failed"
	CodeInternal    = "internal"
)

// Envelope is the frame for every message in both directions.
type Envelope struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func newEnvelope(t MessageType, requestID string, payload any) (*Envelope, error) {
	env := &Envelope{Type: t, RequestID: requestID}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		env.Payload = data
	}
	return env, nil
}

// NewRequest builds a request with a fresh request id.
func NewRequest(t MessageType, payload any) (*Envelope, error) {
	return newEnvelope(t, uuid.New().String(), payload)
}

// NewResponse builds a reply to requestID.
func NewResponse(requestID string, t MessageType, payload any) (*Envelope, error) {
	return newEnvelope(t, requestID, payload)
}

// NewEvent builds an unsolicited event.
func NewEvent(t MessageType, payload any) (*Envelope, error) {
	return newEnvelope(t, "", payload)
}

// NewError builds an error reply. requestID may be empty for errors that are
// not tied to a request.
func NewError(requestID, code, message string) (*Envelope, error) {
	return newEnvelope(TypeError, requestID, &ErrorPayload{Code: code, Message: message})
}

// DecodePayload unmarshals env's payload into v. An empty payload leaves v
// untouched.
func DecodePayload(env *Envelope, v any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(env.Payload, v)
}

type SendTurnPayload struct {
	SessionID   string           `json:"session_id,omitempty"`
	Text        string           `json:"text"`
	Model       string           `json:"model,omitempty"`
	Attachments []llm.Attachment `json:"attachments,omitempty"`
}

type SendTurnAckPayload struct {
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
}

type SessionRefPayload struct {
	SessionID string `json:"session_id"`
}

type RenameSessionPayload struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
}

type SessionPayload struct {
	Session store.Session `json:"session"`
}

type SessionListPayload struct {
	Sessions []store.SessionSummary `json:"sessions"`
}

type ModelInfo struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Family      string `json:"family"`
	Description string `json:"description,omitempty"`
	Output      string `json:"output"`
}

type ModelListPayload struct {
	Models  []ModelInfo `json:"models"`
	Default string      `json:"default"`
}

type GenerationStatePayload struct {
	SessionID string           `json:"session_id"`
	State     generation.State `json:"state"`
	Searching bool             `json:"searching,omitempty"`
}

type AnswerChunkPayload struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

type AnswerDonePayload struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Text      string `json:"text,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func modelInfos(descs []llm.Descriptor) []ModelInfo {
	out := make([]ModelInfo, 0, len(descs))
	for _, d := range descs {
		out = append(out, ModelInfo{
			ID:          d.ID,
			Label:       d.DisplayName(),
			Family:      string(d.Family),
			Description: d.Description,
			Output:      string(d.Output),
		})
	}
	return out
}
