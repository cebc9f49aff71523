package cmd

import (
	"fmt"
	"net/http"

	"github.com/hashicorp/go-hclog"

	"velicia/config"
	"velicia/generation"
	"velicia/llm"
	"velicia/store"
)

// runtime is everything a command needs to run turns.
type runtime struct {
	cfg        *config.Config
	logger     hclog.Logger
	router     *llm.Router
	store      *store.MemoryStore
	controller *generation.Controller
	gemini     *llm.GeminiAdapter
	turnLogger *llm.TurnLogger
}

type runtimeOptions struct {
	// TurnLog overrides the configured turn log file.
	TurnLog string
	// Level is used when --log-level is not given. Empty means the configured level.
	Level string
}

// newRuntime loads config and wires every adapter into a router.
func newRuntime(opts runtimeOptions) (*runtime, error) {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := logLevel
	if level == "" {
		level = opts.Level
	}
	logger := cfg.Logging.NewLogger("velicia", level)

	router := llm.NewRouter(cfg.Catalog(), logger.Named("router"))
	httpClient := &http.Client{}

	gemini := llm.NewGeminiAdapter(cfg.CredentialSource(llm.FamilyGemini), logger.Named("gemini"))
	router.Register(llm.FamilyGemini, gemini)
	router.Register(llm.FamilyPollinations,
		llm.NewPollinationsAdapter(cfg.Endpoints.Pollinations, httpClient, logger.Named("pollinations")))
	router.Register(llm.FamilyHuggingFace,
		llm.NewHuggingFaceAdapter(cfg.Endpoints.HuggingFace, cfg.CredentialSource(llm.FamilyHuggingFace), httpClient, logger.Named("huggingface")))
	router.Register(llm.FamilyOpenAI,
		llm.NewOpenAIAdapter(cfg.CredentialSource(llm.FamilyOpenAI), cfg.Endpoints.OpenAI, logger.Named("openai")))
	router.Register(llm.FamilyAnthropic,
		llm.NewAnthropicAdapter(cfg.CredentialSource(llm.FamilyAnthropic), cfg.Endpoints.Anthropic, logger.Named("anthropic")))

	turnLog := opts.TurnLog
	if turnLog == "" {
		turnLog = cfg.Logging.TurnLog
	}
	var turnLogger *llm.TurnLogger
	if turnLog != "" {
		turnLogger, err = llm.NewTurnLogger(turnLog)
		if err != nil {
			return nil, fmt.Errorf("open turn log: %w", err)
		}
	}

	sessions := store.NewMemoryStore()
	controller := generation.New(generation.Options{
		Store:      sessions,
		Router:     router,
		Logger:     logger.Named("controller"),
		TurnLogger: turnLogger,
	})

	return &runtime{
		cfg:        cfg,
		logger:     logger,
		router:     router,
		store:      sessions,
		controller: controller,
		gemini:     gemini,
		turnLogger: turnLogger,
	}, nil
}

func (r *runtime) Close() {
	r.gemini.Close()
	r.turnLogger.Close()
}
