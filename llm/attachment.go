package llm

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment is user-supplied content for the next outbound turn only.
type Attachment struct {
	ID       string         `json:"id"`
	Kind     AttachmentKind `json:"kind"`
	MIMEType string         `json:"mimeType"`
	DataURI  string         `json:"data"` // data:<mime>;base64,<payload>
	Name     string         `json:"name"`
}

// NewAttachment builds an attachment from raw bytes.
func NewAttachment(name, mimeType string, data []byte) Attachment {
	return Attachment{
		ID:       uuid.New().String(),
		Kind:     KindForMIME(mimeType),
		MIMEType: mimeType,
		DataURI:  fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)),
		Name:     name,
	}
}

// KindForMIME returns AttachmentImage for image/* types.
func KindForMIME(mimeType string) AttachmentKind {
	if strings.HasPrefix(mimeType, "image/") {
		return AttachmentImage
	}
	return AttachmentFile
}

// Payload splits the data URI into its media type and base64 payload. A bare
// base64 string without the data: prefix is accepted as well.
func (a Attachment) Payload() (mediaType string, data string, err error) {
	uri := a.DataURI
	if !strings.HasPrefix(uri, "data:") {
		if uri == "" {
			return "", "", fmt.Errorf("attachment %q has no data", a.Name)
		}
		return a.MIMEType, uri, nil
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return "", "", fmt.Errorf("attachment %q: malformed data URI", a.Name)
	}
	if !strings.HasSuffix(header, ";base64") {
		return "", "", fmt.Errorf("attachment %q: data URI is not base64 encoded", a.Name)
	}
	mediaType = strings.TrimSuffix(header, ";base64")
	if mediaType == "" {
		mediaType = a.MIMEType
	}
	return mediaType, payload, nil
}

// Summary is the human-readable marker stored in place of the attachment.
func (a Attachment) Summary() string {
	if a.Kind == AttachmentImage {
		return fmt.Sprintf("[Image: %s]", a.Name)
	}
	return fmt.Sprintf("[File: %s]", a.Name)
}

var textMIMETypes = map[string]bool{
	"application/json":       true,
	"application/xml":        true,
	"application/javascript": true,
	"application/x-yaml":     true,
	"application/yaml":       true,
	"application/csv":        true,
	"application/x-sh":       true,
	"application/x-python":   true,
}

// IsTextMIME reports whether content of this type can be inlined as text.
func IsTextMIME(mimeType string) bool {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	return strings.HasPrefix(mimeType, "text/") || textMIMETypes[mimeType]
}

// hfAttachmentNote is appended once per turn for Hugging Face text models,
// which cannot see binary attachments.
const hfAttachmentNote = "\n[Context: The user has attached files, but I cannot view them directly. I should ask them to describe the file content if needed.]"

// Encoded is the wire form of one attachment for one family. Exactly one of
// Inline and Text is set.
type Encoded struct {
	Inline *ImageBlock
	Text   string
	// Placeholder is true when Text describes content the backend cannot see.
	Placeholder bool
}

// Encode converts an attachment for the given family. It never fails: any
// decode problem falls back to a descriptive placeholder and is logged.
func Encode(family Family, a Attachment, logger hclog.Logger) Encoded {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	mediaType, payload, err := a.Payload()
	if err != nil {
		logger.Warn("could not read attachment, using placeholder", "file", a.Name, "error", err)
		return placeholderFor(family, a)
	}

	if IsTextMIME(mediaType) {
		content, err := decodeText(payload)
		if err != nil {
			logger.Warn("could not decode text attachment, using placeholder", "file", a.Name, "error", err)
			return placeholderFor(family, a)
		}
		return Encoded{Text: fmt.Sprintf("\n\n--- File: %s ---\n%s\n--- End of File ---\n", a.Name, content)}
	}

	if inlineBinary(family, mediaType) {
		if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
			logger.Warn("attachment payload is not valid base64, using placeholder", "file", a.Name, "error", err)
			return placeholderFor(family, a)
		}
		return Encoded{Inline: &ImageBlock{Data: payload, MediaType: mediaType}}
	}

	return placeholderFor(family, a)
}

// inlineBinary reports whether the family accepts this binary type inline.
// Gemini takes any blob; the other SDKs only take images.
func inlineBinary(family Family, mediaType string) bool {
	switch family {
	case FamilyGemini:
		return true
	case FamilyOpenAI, FamilyAnthropic:
		return strings.HasPrefix(mediaType, "image/")
	}
	return false
}

func placeholderFor(family Family, a Attachment) Encoded {
	if family == FamilyHuggingFace {
		return Encoded{Text: hfAttachmentNote, Placeholder: true}
	}
	what, analysis := "a file", "Content"
	if a.Kind == AttachmentImage {
		what, analysis = "an image", "Image"
	}
	return Encoded{
		Text:        fmt.Sprintf("\n[User attached %s: %s. (%s analysis not supported on this model, please describe it)]", what, a.Name, analysis),
		Placeholder: true,
	}
}

func decodeText(payload string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("content is not valid UTF-8")
	}
	return string(raw), nil
}

// EncodeAll encodes every attachment of a turn for one family. It returns the
// inline binary parts in order and the text to append to the user turn. The
// Hugging Face context note appears at most once.
func EncodeAll(family Family, attachments []Attachment, logger hclog.Logger) ([]ImageBlock, string) {
	var inline []ImageBlock
	var text strings.Builder
	noted := false

	for _, a := range attachments {
		enc := Encode(family, a, logger)
		switch {
		case enc.Inline != nil:
			inline = append(inline, *enc.Inline)
		case enc.Text == hfAttachmentNote:
			if !noted {
				text.WriteString(enc.Text)
				noted = true
			}
		default:
			text.WriteString(enc.Text)
		}
	}
	return inline, text.String()
}
