package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-hclog"
)

const DefaultHuggingFaceURL = "https://api-inference.huggingface.co/models/"

const (
	hfMaxNewTokens  = 2048
	hfTemperature   = 0.7
	hfReadChunkSize = 4096
)

// HuggingFaceAdapter streams text models over the inference API's
// token-SSE framing and runs image models as one binary POST.
type HuggingFaceAdapter struct {
	baseURL    string
	credential func() string
	client     *http.Client
	logger     hclog.Logger
}

// NewHuggingFaceAdapter creates the adapter. credential is read on every call,
// so a token set after startup is picked up.
func NewHuggingFaceAdapter(baseURL string, credential func() string, client *http.Client, logger hclog.Logger) *HuggingFaceAdapter {
	if baseURL == "" {
		baseURL = DefaultHuggingFaceURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &HuggingFaceAdapter{baseURL: baseURL, credential: credential, client: client, logger: logger}
}

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
	Stream         bool    `json:"stream"`
}

type hfTextRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfImageRequest struct {
	Inputs string `json:"inputs"`
}

func (a *HuggingFaceAdapter) Generate(ctx context.Context, req *GenerateRequest) Stream {
	provider := string(FamilyHuggingFace)

	if req.Model.Target == "" {
		return newErrorStream(errUnavailable(req.Model.ID, "no Hugging Face repository is configured for it"))
	}

	return newStream(ctx, provider, func(ctx context.Context, emit emitFunc) error {
		token := ""
		if a.credential != nil {
			token = a.credential()
		}
		if token == "" {
			return errMissingCredential("Hugging Face")
		}

		url := a.baseURL + req.Model.Target
		if req.Model.Output == OutputImage {
			return a.generateImage(ctx, url, token, req, emit)
		}
		return a.generateText(ctx, url, token, req, emit)
	})
}

func (a *HuggingFaceAdapter) generateImage(ctx context.Context, url, token string, req *GenerateRequest, emit emitFunc) error {
	warmUp := fmt.Sprintf("%s is warming up (Cold Boot). Please try again in 30 seconds.", req.Model.DisplayName())

	resp, err := postJSON(ctx, a.client, url, token, hfImageRequest{Inputs: req.Text}, "Hugging Face", warmUp)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetworkFailure, Provider: "Hugging Face", Err: fmt.Errorf("read image: %w", err)}
	}

	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" || !strings.HasPrefix(mediaType, "image/") {
		mediaType = "image/jpeg"
	}

	a.logger.Debug("image generated", "model", req.Model.ID, "bytes", len(blob))
	emit(fmt.Sprintf("![Generated Image](data:%s;base64,%s)", mediaType, base64.StdEncoding.EncodeToString(blob)))
	return nil
}

func (a *HuggingFaceAdapter) generateText(ctx context.Context, url, token string, req *GenerateRequest, emit emitFunc) error {
	warmUp := fmt.Sprintf("%s is warming up. Please wait 20s and try again.", req.Model.DisplayName())

	body := hfTextRequest{
		Inputs: buildHFPrompt(req, a.logger),
		Parameters: hfParameters{
			MaxNewTokens:   hfMaxNewTokens,
			Temperature:    hfTemperature,
			ReturnFullText: false,
			Stream:         true,
		},
	}

	resp, err := postJSON(ctx, a.client, url, token, body, "Hugging Face", warmUp)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var lines lineBuffer
	handle := func(line string) (bool, error) {
		text, ok, err := parseTokenLine("Hugging Face", line)
		if err != nil {
			if IsKind(err, KindParseError) {
				a.logger.Debug("skipping malformed stream line", "error", err)
				return true, nil
			}
			return false, err
		}
		if ok {
			return emit(text), nil
		}
		return true, nil
	}

	buf := make([]byte, hfReadChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, line := range lines.Feed(buf[:n]) {
				cont, err := handle(line)
				if err != nil {
					return err
				}
				if !cont {
					return nil
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return &Error{Kind: KindNetworkFailure, Provider: "Hugging Face", Err: readErr}
		}
	}

	if rest := lines.Flush(); rest != "" {
		if _, err := handle(rest); err != nil {
			return err
		}
	}
	return nil
}

// buildHFPrompt flattens persona, history and the new turn into the
// role-tagged prompt the text-generation endpoint expects.
func buildHFPrompt(req *GenerateRequest, logger hclog.Logger) string {
	var sb strings.Builder
	sb.WriteString("<|system|>\n")
	sb.WriteString(req.Persona)
	sb.WriteString("\n")

	for _, m := range req.History {
		switch m.Role {
		case RoleUser:
			sb.WriteString("<|user|>\n")
		case RoleAssistant:
			sb.WriteString("<|assistant|>\n")
		default:
			continue
		}
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}

	_, suffix := EncodeAll(FamilyHuggingFace, req.Attachments, logger)
	sb.WriteString("<|user|>\n")
	sb.WriteString(req.Text)
	sb.WriteString(suffix)
	sb.WriteString("\n<|assistant|>\n")
	return sb.String()
}
