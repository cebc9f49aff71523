package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// lineBuffer splits a byte stream into lines, holding a partial trailing
// line until the rest of it arrives in a later read.
type lineBuffer struct {
	pending []byte
}

// Feed appends chunk and returns every line it completed, without the line
// terminator.
func (b *lineBuffer) Feed(chunk []byte) []string {
	b.pending = append(b.pending, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(b.pending, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSuffix(string(b.pending[:i]), "\r")
		lines = append(lines, line)
		b.pending = b.pending[i+1:]
	}
	// Keep the partial line in a fresh slice so the backing array can shrink.
	if len(b.pending) == 0 {
		b.pending = nil
	} else {
		b.pending = append([]byte(nil), b.pending...)
	}
	return lines
}

// Flush returns whatever partial line is left and resets the buffer.
func (b *lineBuffer) Flush() string {
	rest := strings.TrimSuffix(string(b.pending), "\r")
	b.pending = nil
	return rest
}

const (
	ssePrefix = "data:"
	endOfText = "<|endoftext|>"
)

// tokenEvent is one data: payload of the text-generation stream. Text is read
// from token.text. generated_text is used only by events without a token,
// since the final token event repeats the whole answer there.
type tokenEvent struct {
	Token *struct {
		Text string `json:"text"`
	} `json:"token"`
	GeneratedText *string `json:"generated_text"`
	Error         string  `json:"error"`
}

// parseTokenLine extracts the fragment from one line. ok is false for lines
// that carry nothing (non-data lines, empty payloads, bare sentinels). A
// malformed payload returns a KindParseError error.
func parseTokenLine(provider, line string) (text string, ok bool, err error) {
	if !strings.HasPrefix(line, ssePrefix) {
		return "", false, nil
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, ssePrefix))
	if payload == "" {
		return "", false, nil
	}

	var ev tokenEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return "", false, &Error{Kind: KindParseError, Provider: provider, Err: fmt.Errorf("decode %q: %w", payload, err)}
	}
	if ev.Error != "" {
		return "", false, &Error{Kind: KindUnknown, Provider: provider, Message: ev.Error}
	}

	if ev.Token != nil {
		text = ev.Token.Text
	} else if ev.GeneratedText != nil {
		text = *ev.GeneratedText
	}
	text = strings.ReplaceAll(text, endOfText, "")
	if text == "" {
		return "", false, nil
	}
	return text, true, nil
}
