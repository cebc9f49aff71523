package llm

import "context"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ContentType identifies the type of content in a ContentBlock
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

// ImageBlock represents base64-encoded binary data sent inline to a backend
type ImageBlock struct {
	Data      string // Base64-encoded data (without data URL prefix)
	MediaType string // MIME type, e.g. "image/png" or "application/pdf"
}

// ContentBlock represents a single piece of content (text or inline binary)
type ContentBlock struct {
	Type      ContentType
	Text      string      // Used when Type == ContentTypeText
	ImageData *ImageBlock // Used when Type == ContentTypeImage
}

// Message is one prior conversation turn handed to an adapter as history.
type Message struct {
	Role    Role
	Content string
}

// NewTextMessage creates a simple text-only message
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: text}
}

// Output is what a model produces.
type Output string

const (
	OutputText  Output = "text"
	OutputImage Output = "image"
)

// Descriptor describes one selectable model. Descriptors are immutable once
// the catalog is built.
type Descriptor struct {
	ID          string
	Label       string
	Family      Family
	Description string
	Target      string // backend model name; empty means "same as ID"
	Output      Output
	Persona     string // overrides the family persona when set
}

// BackendModel returns the model name sent on the wire.
func (d Descriptor) BackendModel() string {
	if d.Target != "" {
		return d.Target
	}
	return d.ID
}

// DisplayName returns the label, falling back to the ID.
func (d Descriptor) DisplayName() string {
	if d.Label != "" {
		return d.Label
	}
	return d.ID
}

// GenerateRequest is everything an adapter needs for one turn. History holds
// prior turns only: the new user text travels in Text.
type GenerateRequest struct {
	Model       Descriptor
	Persona     string
	History     []Message
	Text        string
	Attachments []Attachment
}

// Adapter talks to one backend family and normalizes its protocol into a
// Stream of text fragments.
type Adapter interface {
	Generate(ctx context.Context, req *GenerateRequest) Stream
}
