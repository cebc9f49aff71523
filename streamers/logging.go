package streamers

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// LoggingHandler is a GenerationHandler decorator that records every event
// to a structured logger, then delegates to an inner handler (e.g. CLI or
// WebSocket).
type LoggingHandler struct {
	inner  GenerationHandler
	logger hclog.Logger

	mu      sync.Mutex
	started time.Time
	chunks  int
	bytes   int
}

// NewLoggingHandler wraps inner. A nil inner is treated as NopHandler.
func NewLoggingHandler(inner GenerationHandler, logger hclog.Logger) *LoggingHandler {
	if inner == nil {
		inner = NopHandler{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &LoggingHandler{inner: inner, logger: logger}
}

func (h *LoggingHandler) Thinking(searching bool) {
	h.mu.Lock()
	h.started = time.Now()
	h.chunks = 0
	h.bytes = 0
	h.mu.Unlock()

	h.logger.Debug("generation dispatched", "searching", searching)
	h.inner.Thinking(searching)
}

func (h *LoggingHandler) PublishAnswerChunk(chunk string) {
	h.mu.Lock()
	h.chunks++
	h.bytes += len(chunk)
	first := h.chunks == 1
	since := time.Since(h.started)
	h.mu.Unlock()

	if first {
		h.logger.Debug("first fragment", "latency", since)
	}
	h.inner.PublishAnswerChunk(chunk)
}

func (h *LoggingHandler) FinishAnswer() {
	h.mu.Lock()
	chunks, size, since := h.chunks, h.bytes, time.Since(h.started)
	h.mu.Unlock()

	h.logger.Info("generation complete", "fragments", chunks, "bytes", size, "duration", since)
	h.inner.FinishAnswer()
}

func (h *LoggingHandler) Error(err error, text string) {
	h.mu.Lock()
	chunks, since := h.chunks, time.Since(h.started)
	h.mu.Unlock()

	h.logger.Warn("generation failed", "error", err, "fragments", chunks, "duration", since)
	h.inner.Error(err, text)
}
