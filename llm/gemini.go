package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/hashicorp/go-hclog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// geminiClient is the process-wide SDK handle. It is built on first use so a
// missing key never fails at startup, and rebuilt if the key changes.
type geminiClient struct {
	credential func() string
	opts       []option.ClientOption

	mu     sync.Mutex
	client *genai.Client
	key    string
}

func (h *geminiClient) get(ctx context.Context) (*genai.Client, error) {
	key := ""
	if h.credential != nil {
		key = h.credential()
	}
	if key == "" {
		return nil, errMissingCredential("Gemini")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client != nil && h.key == key {
		return h.client, nil
	}
	if h.client != nil {
		h.client.Close()
		h.client = nil
	}

	opts := append([]option.ClientOption{option.WithAPIKey(key)}, h.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	h.client = client
	h.key = key
	return client, nil
}

func (h *geminiClient) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return nil
	}
	err := h.client.Close()
	h.client = nil
	return err
}

type GeminiAdapter struct {
	handle *geminiClient
	logger hclog.Logger
}

// NewGeminiAdapter creates the SDK adapter. credential is consulted lazily on
// each call; extra client options (endpoint, HTTP client) are passed through.
func NewGeminiAdapter(credential func() string, logger hclog.Logger, opts ...option.ClientOption) *GeminiAdapter {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &GeminiAdapter{
		handle: &geminiClient{credential: credential, opts: opts},
		logger: logger,
	}
}

func (a *GeminiAdapter) Close() error {
	return a.handle.Close()
}

func (a *GeminiAdapter) Generate(ctx context.Context, req *GenerateRequest) Stream {
	return newStream(ctx, "Gemini", func(ctx context.Context, emit emitFunc) error {
		client, err := a.handle.get(ctx)
		if err != nil {
			return err
		}

		model := client.GenerativeModel(req.Model.BackendModel())
		if req.Persona != "" {
			model.SystemInstruction = genai.NewUserContent(genai.Text(req.Persona))
		}

		chat := model.StartChat()
		chat.History = geminiHistory(req.History)

		parts := a.buildParts(req)
		a.logger.Debug("sending message", "model", req.Model.ID, "history", len(chat.History), "parts", len(parts))

		iter := chat.SendMessageStream(ctx, parts...)
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				return nil
			}
			if err != nil {
				return classifyGeminiError(err)
			}
			if !emit(geminiText(resp)) {
				return nil
			}
		}
	})
}

// geminiHistory maps prior turns onto user/model contents with one text part each.
func geminiHistory(messages []Message) []*genai.Content {
	var history []*genai.Content
	for _, m := range messages {
		var role string
		switch m.Role {
		case RoleUser:
			role = "user"
		case RoleAssistant:
			role = "model"
		default:
			continue
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return history
}

// buildParts puts inline blobs first and the text (user text plus any inlined
// text attachments) last.
func (a *GeminiAdapter) buildParts(req *GenerateRequest) []genai.Part {
	inline, suffix := EncodeAll(FamilyGemini, req.Attachments, a.logger)

	var parts []genai.Part
	for _, blob := range inline {
		data, err := base64.StdEncoding.DecodeString(blob.Data)
		if err != nil {
			continue
		}
		parts = append(parts, genai.Blob{MIMEType: blob.MediaType, Data: data})
	}

	text := req.Text + suffix
	if text != "" || len(parts) == 0 {
		parts = append(parts, genai.Text(text))
	}
	return parts
}

func geminiText(resp *genai.GenerateContentResponse) string {
	var content string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				content += string(t)
			}
		}
	}
	return content
}

func classifyGeminiError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return &Error{Kind: KindRateLimited, Provider: "Gemini", Status: apiErr.Code, Err: err}
		case http.StatusServiceUnavailable:
			return &Error{Kind: KindProviderWarmingUp, Provider: "Gemini", Status: apiErr.Code,
				Message: "Gemini is temporarily unavailable. Please try again in a moment.", Err: err}
		case http.StatusUnauthorized, http.StatusForbidden:
			return &Error{Kind: KindMissingCredential, Provider: "Gemini", Status: apiErr.Code, Err: err}
		case http.StatusNotFound:
			return &Error{Kind: KindProviderUnavailable, Provider: "Gemini", Status: apiErr.Code, Err: err}
		}
	}
	return classifyTransport("Gemini", err)
}
