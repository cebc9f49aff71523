package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"velicia/llm"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("OpenAIAdapter", func() {
	var (
		server   *httptest.Server
		handler  http.HandlerFunc
		key      string
		adapter  *llm.OpenAIAdapter
		mu       sync.Mutex
		requests int
		lastPath string
		lastAuth string
		lastBody map[string]any
	)

	model := llm.Descriptor{ID: "openai/gpt-4o-mini", Label: "GPT-4o mini", Family: llm.FamilyOpenAI, Output: llm.OutputText}

	BeforeEach(func() {
		key = "sk-test"
		requests = 0
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			mu.Lock()
			requests++
			lastPath = r.URL.Path
			lastAuth = r.Header.Get("Authorization")
			lastBody = nil
			json.Unmarshal(raw, &lastBody)
			mu.Unlock()
			handler(w, r)
		}))
		DeferCleanup(server.Close)
		adapter = llm.NewOpenAIAdapter(func() string { return key }, server.URL, nil)
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

	streamChunks := func(chunks ...string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			for _, c := range chunks {
				io.WriteString(w, `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":`+c+`},"finish_reason":null}]}`+"\n\n")
				flusher.Flush()
			}
			io.WriteString(w, "data: [DONE]\n\n")
		}
	}

	failWith := func(status int) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			io.WriteString(w, `{"error":{"message":"nope","type":"test_error","code":"test"}}`)
		}
	}

	It("streams delta content in order", func() {
		handler = streamChunks(`"Hel"`, `"lo"`, `" there"`)

		text, err := generate(request("hi"))
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("Hello there"))
	})

	It("sends the persona, history and new turn with the prefix stripped", func() {
		handler = streamChunks(`"ok"`)

		_, err := generate(request("hi"))
		Expect(err).NotTo(HaveOccurred())

		mu.Lock()
		defer mu.Unlock()
		Expect(lastPath).To(Equal("/chat/completions"))
		Expect(lastAuth).To(Equal("Bearer sk-test"))
		Expect(lastBody["model"]).To(Equal("gpt-4o-mini"))
		Expect(lastBody["stream"]).To(BeTrue())

		msgs, ok := lastBody["messages"].([]any)
		Expect(ok).To(BeTrue())
		Expect(msgs).To(HaveLen(4))
		var roles, contents []any
		for _, m := range msgs {
			entry := m.(map[string]any)
			roles = append(roles, entry["role"])
			contents = append(contents, entry["content"])
		}
		Expect(roles).To(Equal([]any{"system", "user", "assistant", "user"}))
		Expect(contents).To(Equal([]any{"persona", "earlier", "reply", "hi"}))
	})

	It("sends images as data URLs next to the text", func() {
		handler = streamChunks(`"a cat"`)
		req := request("what is this?")
		req.Attachments = []llm.Attachment{llm.NewAttachment("cat.png", "image/png", []byte{0x89, 'P'})}

		_, err := generate(req)
		Expect(err).NotTo(HaveOccurred())

		mu.Lock()
		defer mu.Unlock()
		msgs := lastBody["messages"].([]any)
		parts, ok := msgs[len(msgs)-1].(map[string]any)["content"].([]any)
		Expect(ok).To(BeTrue())
		Expect(parts).To(HaveLen(2))
		image := parts[0].(map[string]any)
		Expect(image["type"]).To(Equal("image_url"))
		Expect(image["image_url"].(map[string]any)["url"]).To(Equal(req.Attachments[0].DataURI))
		Expect(parts[1].(map[string]any)["text"]).To(Equal("what is this?"))
	})

	It("fails with MissingCredential before any request when no key is set", func() {
		key = ""
		handler = streamChunks(`"unused"`)

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
		Entry("503", http.StatusServiceUnavailable, llm.KindProviderWarmingUp),
	)
})
