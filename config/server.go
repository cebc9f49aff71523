package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/hashicorp/go-hclog"
)

const DefaultListen = "127.0.0.1:8080"

// Server configures the websocket bridge.
type Server struct {
	Listen         string   `hcl:"listen,optional"`
	AllowedOrigins []string `hcl:"allowed_origins,optional"`
}

func (s *Server) Defaults() {
	if s.Listen == "" {
		s.Listen = DefaultListen
	}
}

func (s *Server) Validate() error {
	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		return fmt.Errorf("invalid listen address '%s': %w", s.Listen, err)
	}
	return nil
}

// Logging configures the root logger.
type Logging struct {
	Level string `hcl:"level,optional"`
	JSON  bool   `hcl:"json,optional"`
	// TurnLog is a JSONL file receiving one record per generation.
	TurnLog string `hcl:"turn_log,optional"`
}

func (l *Logging) Defaults() {
	if l.Level == "" {
		l.Level = "info"
	}
}

func (l *Logging) Validate() error {
	if hclog.LevelFromString(l.Level) == hclog.NoLevel {
		return fmt.Errorf("unknown level '%s'", l.Level)
	}
	return nil
}

// NewLogger builds the root logger. A non-empty levelOverride wins over the
// configured level.
func (l Logging) NewLogger(name string, levelOverride string) hclog.Logger {
	level := l.Level
	if strings.TrimSpace(levelOverride) != "" {
		level = levelOverride
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: l.JSON,
	})
}
