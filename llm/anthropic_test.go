package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"velicia/llm"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("AnthropicAdapter", func() {
	var (
		server   *httptest.Server
		handler  http.HandlerFunc
		key      string
		adapter  *llm.AnthropicAdapter
		mu       sync.Mutex
		requests int
		lastPath string
		lastKey  string
		lastBody map[string]any
	)

	model := llm.Descriptor{ID: "claude-sonnet-4", Label: "Claude Sonnet 4", Family: llm.FamilyAnthropic, Output: llm.OutputText}

	BeforeEach(func() {
		key = "sk-ant-test"
		requests = 0
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			mu.Lock()
			requests++
			lastPath = r.URL.Path
			lastKey = r.Header.Get("X-Api-Key")
			lastBody = nil
			json.Unmarshal(raw, &lastBody)
			mu.Unlock()
			handler(w, r)
		}))
		DeferCleanup(server.Close)
		adapter = llm.NewAnthropicAdapter(func() string { return key }, server.URL, nil)
	})

	generate := func(req *llm.GenerateRequest) (string, error) {
		return llm.Collect(adapter.Generate(context.Background(), req))
	}

	request := func(text string) *llm.GenerateRequest {
		return &llm.GenerateRequest{
			Model:   model,
			Persona: "persona",
			History: []llm.Message{
				llm.NewTextMessage(llm.RoleUser, "earlier"),
				llm.NewTextMessage(llm.RoleAssistant, "reply"),
			},
			Text: text,
		}
	}

	streamText := func(deltas ...string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			event := func(name, data string) {
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
				flusher.Flush()
			}
			event("message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":1}}}`)
			event("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`)
			event("ping", `{"type":"ping"}`)
			for _, d := range deltas {
				event("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":`+d+`}}`)
			}
			event("content_block_stop", `{"type":"content_block_stop","index":0}`)
			event("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":5}}`)
			event("message_stop", `{"type":"message_stop"}`)
		}
	}

	failWith := func(status int) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			io.WriteString(w, `{"type":"error","error":{"type":"test_error","message":"nope"}}`)
		}
	}

	It("streams text deltas in order", func() {
		handler = streamText(`"Hel"`, `"lo"`, `" there"`)

		text, err := generate(request("hi"))
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("Hello there"))
	})

	It("sends the persona as the system prompt and the history as turns", func() {
		handler = streamText(`"ok"`)

		_, err := generate(request("hi"))
		Expect(err).NotTo(HaveOccurred())

		mu.Lock()
		defer mu.Unlock()
		Expect(lastPath).To(Equal("/v1/messages"))
		Expect(lastKey).To(Equal("sk-ant-test"))
		Expect(lastBody["model"]).To(Equal("claude-sonnet-4"))
		Expect(lastBody["max_tokens"]).To(BeNumerically("==", 4096))
		Expect(lastBody["stream"]).To(BeTrue())

		system, ok := lastBody["system"].([]any)
		Expect(ok).To(BeTrue())
		Expect(system).To(HaveLen(1))
		Expect(system[0].(map[string]any)["text"]).To(Equal("persona"))

		msgs, ok := lastBody["messages"].([]any)
		Expect(ok).To(BeTrue())
		var roles, texts []any
		for _, m := range msgs {
			entry := m.(map[string]any)
			roles = append(roles, entry["role"])
			blocks := entry["content"].([]any)
			texts = append(texts, blocks[len(blocks)-1].(map[string]any)["text"])
		}
		Expect(roles).To(Equal([]any{"user", "assistant", "user"}))
		Expect(texts).To(Equal([]any{"earlier", "reply", "hi"}))
	})

	It("sends images as base64 blocks ahead of the text", func() {
		handler = streamText(`"a cat"`)
		req := request("what is this?")
		req.Attachments = []llm.Attachment{llm.NewAttachment("cat.png", "image/png", []byte{0x89, 'P'})}

		_, err := generate(req)
		Expect(err).NotTo(HaveOccurred())

		mu.Lock()
		defer mu.Unlock()
		msgs := lastBody["messages"].([]any)
		blocks := msgs[len(msgs)-1].(map[string]any)["content"].([]any)
		Expect(blocks).To(HaveLen(2))
		image := blocks[0].(map[string]any)
		Expect(image["type"]).To(Equal("image"))
		source := image["source"].(map[string]any)
		Expect(source["type"]).To(Equal("base64"))
		Expect(source["media_type"]).To(Equal("image/png"))
		Expect(blocks[1].(map[string]any)["text"]).To(Equal("what is this?"))
	})

	It("fails with MissingCredential before any request when no key is set", func() {
		key = ""
		handler = streamText(`"unused"`)

		_, err := generate(request("hi"))
		Expect(llm.IsKind(err, llm.KindMissingCredential)).To(BeTrue())
		mu.Lock()
		defer mu.Unlock()
		Expect(requests).To(BeZero())
	})

	It("surfaces a rate limit after a single request", func() {
		handler = failWith(http.StatusTooManyRequests)

		_, err := generate(request("hi"))
		Expect(llm.IsKind(err, llm.KindRateLimited)).To(BeTrue())
		mu.Lock()
		defer mu.Unlock()
		Expect(requests).To(Equal(1))
	})

	DescribeTable("maps HTTP failures",
		func(status int, kind llm.Kind) {
			handler = failWith(status)

			_, err := generate(request("hi"))
			var tagged *llm.Error
			Expect(errors.As(err, &tagged)).To(BeTrue())
			Expect(tagged.Kind).To(Equal(kind))
			Expect(tagged.Status).To(Equal(status))
			mu.Lock()
			defer mu.Unlock()
			Expect(requests).To(Equal(1))
		},
		Entry("401", http.StatusUnauthorized, llm.KindMissingCredential),
		Entry("404", http.StatusNotFound, llm.KindProviderUnavailable),
		Entry("529 overloaded", 529, llm.KindProviderWarmingUp),
	)
})
