package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIAdapter streams from any OpenAI-compatible chat completions endpoint.
// Model ids carry the "openai/" prefix, which is stripped before sending.
type OpenAIAdapter struct {
	credential func() string
	baseURL    string
	logger     hclog.Logger
}

func NewOpenAIAdapter(credential func() string, baseURL string, logger hclog.Logger) *OpenAIAdapter {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &OpenAIAdapter{credential: credential, baseURL: baseURL, logger: logger}
}

func (a *OpenAIAdapter) Generate(ctx context.Context, req *GenerateRequest) Stream {
	return newStream(ctx, "OpenAI", func(ctx context.Context, emit emitFunc) error {
		key := ""
		if a.credential != nil {
			key = a.credential()
		}
		if key == "" {
			return errMissingCredential("OpenAI")
		}

		opts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(0)}
		if a.baseURL != "" {
			opts = append(opts, option.WithBaseURL(a.baseURL))
		}
		client := openai.NewClient(opts...)

		params := openai.ChatCompletionNewParams{
			Model:    strings.TrimPrefix(req.Model.BackendModel(), OpenAIPrefix),
			Messages: a.convertMessages(req),
		}

		stream := client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if !emit(chunk.Choices[0].Delta.Content) {
				return nil
			}
		}
		if err := stream.Err(); err != nil {
			return classifyOpenAIError(err)
		}
		return nil
	})
}

func (a *OpenAIAdapter) convertMessages(req *GenerateRequest) []openai.ChatCompletionMessageParamUnion {
	msgs := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(req.Persona)}

	for _, m := range req.History {
		switch m.Role {
		case RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		}
	}

	return append(msgs, a.buildUserMessage(req))
}

// buildUserMessage creates the new user turn, with images as data URLs
func (a *OpenAIAdapter) buildUserMessage(req *GenerateRequest) openai.ChatCompletionMessageParamUnion {
	inline, suffix := EncodeAll(FamilyOpenAI, req.Attachments, a.logger)
	text := req.Text + suffix
	if len(inline) == 0 {
		return openai.UserMessage(text)
	}

	var parts []openai.ChatCompletionContentPartUnionParam
	for _, img := range inline {
		dataURL := fmt.Sprintf("data:%s;base64,%s", img.MediaType, img.Data)
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL,
		}))
	}
	if text != "" {
		parts = append(parts, openai.TextContentPart(text))
	}
	return openai.UserMessage(parts)
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return &Error{Kind: KindRateLimited, Provider: "OpenAI", Status: apiErr.StatusCode, Err: err}
		case http.StatusServiceUnavailable:
			return &Error{Kind: KindProviderWarmingUp, Provider: "OpenAI", Status: apiErr.StatusCode,
				Message: "OpenAI is temporarily unavailable. Please try again in a moment.", Err: err}
		case http.StatusUnauthorized, http.StatusForbidden:
			return &Error{Kind: KindMissingCredential, Provider: "OpenAI", Status: apiErr.StatusCode, Err: err}
		case http.StatusNotFound:
			return &Error{Kind: KindProviderUnavailable, Provider: "OpenAI", Status: apiErr.StatusCode, Err: err}
		}
	}
	return classifyTransport("OpenAI", err)
}
