package llm

import (
	"encoding/json"
	"os"
	"sync"
	"time"
	"unicode/utf8"
)

const contentPreviewMaxLen = 200

// TurnLogger writes one JSONL line per settled generation.
type TurnLogger struct {
	mu        sync.Mutex
	file      *os.File
	turnCount int
}

// NewTurnLogger creates a turn logger that writes to the given file path.
func NewTurnLogger(filename string) (*TurnLogger, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return &TurnLogger{file: f}, nil
}

// Close closes the underlying file.
func (tl *TurnLogger) Close() {
	if tl == nil || tl.file == nil {
		return
	}
	tl.file.Close()
}

// turnSnapshot is the top-level envelope written per turn.
type turnSnapshot struct {
	Turn         int                  `json:"turn"`
	Timestamp    string               `json:"timestamp"`
	SessionID    string               `json:"session_id"`
	Model        string               `json:"model"`
	Family       string               `json:"family"`
	HistoryCount int                  `json:"history_count"`
	Prompt       string               `json:"prompt_preview,omitempty"`
	Attachments  []attachmentSnapshot `json:"attachments,omitempty"`
	Fragments    int                  `json:"fragments"`
	ResponseLen  int                  `json:"response_length"`
	Status       string               `json:"status"`
	ErrorKind    string               `json:"error_kind,omitempty"`
	Error        string               `json:"error,omitempty"`
	DurationMS   int64                `json:"duration_ms"`
}

type attachmentSnapshot struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Bytes    int    `json:"encoded_bytes"`
}

// TurnRecord is what the controller knows once a generation has settled.
type TurnRecord struct {
	SessionID string
	Request   *GenerateRequest
	Fragments int
	Response  string
	Err       error
	Duration  time.Duration
}

// LogTurn writes one JSONL line for a settled turn.
func (tl *TurnLogger) LogTurn(rec TurnRecord) {
	if tl == nil {
		return
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()

	tl.turnCount++

	snap := turnSnapshot{
		Turn:        tl.turnCount,
		Timestamp:   time.Now().Format(time.RFC3339Nano),
		SessionID:   rec.SessionID,
		Fragments:   rec.Fragments,
		ResponseLen: len(rec.Response),
		Status:      "complete",
		DurationMS:  rec.Duration.Milliseconds(),
	}

	if req := rec.Request; req != nil {
		snap.Model = req.Model.ID
		snap.Family = string(req.Model.Family)
		snap.HistoryCount = len(req.History)
		snap.Prompt = preview(req.Text)
		for _, a := range req.Attachments {
			snap.Attachments = append(snap.Attachments, attachmentSnapshot{
				Name:     a.Name,
				MIMEType: a.MIMEType,
				Bytes:    len(a.DataURI),
			})
		}
	}

	if rec.Err != nil {
		snap.Status = "error"
		snap.ErrorKind = KindOf(rec.Err).String()
		snap.Error = rec.Err.Error()
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	tl.file.WriteString(string(data) + "\n")
}

// preview truncates to contentPreviewMaxLen runes.
func preview(text string) string {
	if utf8.RuneCountInString(text) > contentPreviewMaxLen {
		return string([]rune(text)[:contentPreviewMaxLen]) + "..."
	}
	return text
}
