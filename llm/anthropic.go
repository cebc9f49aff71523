package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hashicorp/go-hclog"
)

const anthropicMaxTokens = 4096

type AnthropicAdapter struct {
	credential func() string
	baseURL    string
	logger     hclog.Logger
}

// NewAnthropicAdapter builds the adapter. An empty baseURL uses the SDK default.
func NewAnthropicAdapter(credential func() string, baseURL string, logger hclog.Logger) *AnthropicAdapter {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &AnthropicAdapter{credential: credential, baseURL: baseURL, logger: logger}
}

func (a *AnthropicAdapter) Generate(ctx context.Context, req *GenerateRequest) Stream {
	return newStream(ctx, "Anthropic", func(ctx context.Context, emit emitFunc) error {
		key := ""
		if a.credential != nil {
			key = a.credential()
		}
		if key == "" {
			return errMissingCredential("Anthropic")
		}
		opts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(0)}
		if a.baseURL != "" {
			opts = append(opts, option.WithBaseURL(a.baseURL))
		}
		client := anthropic.NewClient(opts...)

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(req.Model.BackendModel()),
			MaxTokens: anthropicMaxTokens,
			Messages:  a.convertMessages(req),
		}
		if req.Persona != "" {
			params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.Persona}}
		}

		stream := client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			if e, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok && e.Delta.Type == "text_delta" {
				if !emit(e.Delta.Text) {
					return nil
				}
			}
		}
		if err := stream.Err(); err != nil {
			return classifyAnthropicError(err)
		}
		return nil
	})
}

func (a *AnthropicAdapter) convertMessages(req *GenerateRequest) []anthropic.MessageParam {
	var msgs []anthropic.MessageParam
	for _, m := range req.History {
		switch m.Role {
		case RoleUser:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	inline, suffix := EncodeAll(FamilyAnthropic, req.Attachments, a.logger)
	var blocks []anthropic.ContentBlockParamUnion
	for _, img := range inline {
		blocks = append(blocks, anthropic.NewImageBlockBase64(img.MediaType, img.Data))
	}
	if text := req.Text + suffix; text != "" || len(blocks) == 0 {
		blocks = append(blocks, anthropic.NewTextBlock(text))
	}
	return append(msgs, anthropic.NewUserMessage(blocks...))
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return &Error{Kind: KindRateLimited, Provider: "Anthropic", Status: apiErr.StatusCode, Err: err}
		case http.StatusServiceUnavailable, 529:
			return &Error{Kind: KindProviderWarmingUp, Provider: "Anthropic", Status: apiErr.StatusCode,
				Message: "Anthropic is overloaded. Please try again in a moment.", Err: err}
		case http.StatusUnauthorized, http.StatusForbidden:
			return &Error{Kind: KindMissingCredential, Provider: "Anthropic", Status: apiErr.StatusCode, Err: err}
		case http.StatusNotFound:
			return &Error{Kind: KindProviderUnavailable, Provider: "Anthropic", Status: apiErr.StatusCode, Err: err}
		}
	}
	return classifyTransport("Anthropic", err)
}
