package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"
)

// maxErrorBodySize caps how much of a failed response is read into an error.
const maxErrorBodySize int64 = 64 * 1024

// postJSON sends body as JSON. A non-2xx response is read, closed and turned
// into a tagged error via statusError; on success the caller owns resp.Body.
func postJSON(ctx context.Context, client *http.Client, url, token string, body any, provider, warmUp string) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Provider: provider, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Provider: provider, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetworkFailure, Provider: provider, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, statusError(provider, resp.StatusCode, string(errBody), warmUp)
	}
	return resp, nil
}

// splitUTF8 returns the longest prefix of b that does not end inside a
// multi-byte rune, and the remaining bytes to carry into the next read.
func splitUTF8(b []byte) (complete, rest []byte) {
	// A rune is at most utf8.UTFMax bytes, so only the tail needs checking.
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return b, nil
		}
		return b[:i], b[i:]
	}
	return b, nil
}
