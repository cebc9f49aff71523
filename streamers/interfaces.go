package streamers

// GenerationHandler receives the events of one generation, in order:
// Thinking, zero or more PublishAnswerChunk, then FinishAnswer or Error.
type GenerationHandler interface {
	// Thinking is called when the request is dispatched. searching is true
	// when the user text looks like a lookup question.
	Thinking(searching bool)

	// PublishAnswerChunk is called for each fragment as it streams
	PublishAnswerChunk(chunk string)

	// FinishAnswer is called when the answer is complete (to print newlines, stop spinner, etc)
	FinishAnswer()

	// Error is called when the generation settles with an error. text is what
	// was written into the conversation.
	Error(err error, text string)
}

// ChatHandler defines the interface for handling interactive chat I/O
// Different implementations can handle stdout/stdin, websocket, etc.
type ChatHandler interface {
	GenerationHandler

	// Welcome displays the initial welcome message when chat starts
	Welcome(modelLabel string, modelID string)

	// AwaitClientAnswer prompts for and reads user input, returns the input and any error
	AwaitClientAnswer() (string, error)

	// Notice prints an informational line (command results, model switches)
	Notice(text string)

	// Goodbye displays the farewell message when chat ends
	Goodbye()
}

// NopHandler ignores every event.
type NopHandler struct{}

func (NopHandler) Thinking(bool)             {}
func (NopHandler) PublishAnswerChunk(string) {}
func (NopHandler) FinishAnswer()             {}
func (NopHandler) Error(error, string)       {}
