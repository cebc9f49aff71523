package llm

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"

	"github.com/hashicorp/go-hclog"
)

const DefaultPollinationsURL = "https://text.pollinations.ai/"

const pollinationsReadChunkSize = 4096

// PollinationsAdapter posts a chat-completion style message array and treats
// the raw response body as the fragment stream. There is no framing to parse.
type PollinationsAdapter struct {
	endpoint string
	client   *http.Client
	logger   hclog.Logger
	seed     func() int
}

func NewPollinationsAdapter(endpoint string, client *http.Client, logger hclog.Logger) *PollinationsAdapter {
	if endpoint == "" {
		endpoint = DefaultPollinationsURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &PollinationsAdapter{
		endpoint: endpoint,
		client:   client,
		logger:   logger,
		seed:     func() int { return rand.Intn(1000) },
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type pollinationsRequest struct {
	Messages []chatMessage `json:"messages"`
	Model    string        `json:"model"`
	Seed     int           `json:"seed"`
	JSONMode bool          `json:"jsonMode"`
}

func (a *PollinationsAdapter) Generate(ctx context.Context, req *GenerateRequest) Stream {
	const provider = "Pollinations"

	return newStream(ctx, provider, func(ctx context.Context, emit emitFunc) error {
		body := pollinationsRequest{
			Messages: a.buildMessages(req),
			Model:    req.Model.BackendModel(),
			Seed:     a.seed(),
			JSONMode: false,
		}

		resp, err := postJSON(ctx, a.client, a.endpoint, "", body, provider, "")
		if err != nil {
			var tagged *Error
			if errors.As(err, &tagged) && (tagged.Status == http.StatusNotFound || tagged.Status == http.StatusBadRequest) {
				return errUnavailable(req.Model.ID, tagged.Message)
			}
			return err
		}
		defer resp.Body.Close()

		buf := make([]byte, pollinationsReadChunkSize)
		var carry []byte
		for {
			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				chunk := append(carry, buf[:n]...)
				var complete []byte
				complete, carry = splitUTF8(chunk)
				carry = append([]byte(nil), carry...)
				if !emit(string(complete)) {
					return nil
				}
			}
			if errors.Is(readErr, io.EOF) {
				break
			}
			if readErr != nil {
				return &Error{Kind: KindNetworkFailure, Provider: provider, Err: readErr}
			}
		}
		emit(string(carry))
		return nil
	})
}

func (a *PollinationsAdapter) buildMessages(req *GenerateRequest) []chatMessage {
	msgs := make([]chatMessage, 0, len(req.History)+2)
	msgs = append(msgs, chatMessage{Role: string(RoleSystem), Content: req.Persona})
	for _, m := range req.History {
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	_, suffix := EncodeAll(FamilyPollinations, req.Attachments, a.logger)
	msgs = append(msgs, chatMessage{Role: string(RoleUser), Content: req.Text + suffix})
	return msgs
}
