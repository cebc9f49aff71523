package llm_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"velicia/llm"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PollinationsAdapter", func() {
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type request struct {
		Messages []message `json:"messages"`
		Model    string    `json:"model"`
		Seed     int       `json:"seed"`
		JSONMode bool      `json:"jsonMode"`
	}

	var (
		server  *httptest.Server
		handler http.HandlerFunc
		adapter *llm.PollinationsAdapter
		mu      sync.Mutex
		last    request
		model   = llm.Descriptor{ID: "openai", Label: "Velicia X4.2", Family: llm.FamilyPollinations, Output: llm.OutputText}
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req request
			json.NewDecoder(r.Body).Decode(&req)
			mu.Lock()
			last = req
			mu.Unlock()
			handler(w, r)
		}))
		DeferCleanup(server.Close)
		adapter = llm.NewPollinationsAdapter(server.URL, server.Client(), nil)
	})

	It("passes the body through verbatim as fragments", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			flusher := w.(http.Flusher)
			for _, c := range []string{"Hello, ", "wörld", "!"} {
				io.WriteString(w, c)
				flusher.Flush()
			}
		}

		text, err := llm.Collect(adapter.Generate(context.Background(), &llm.GenerateRequest{
			Model:   model,
			Persona: "persona",
			History: []llm.Message{llm.NewTextMessage(llm.RoleUser, "before")},
			Text:    "hi",
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("Hello, wörld!"))

		mu.Lock()
		defer mu.Unlock()
		Expect(last.Model).To(Equal("openai"))
		Expect(last.JSONMode).To(BeFalse())
		Expect(last.Seed).To(BeNumerically(">=", 0))
		Expect(last.Seed).To(BeNumerically("<", 1000))
		Expect(last.Messages).To(Equal([]message{
			{Role: "system", Content: "persona"},
			{Role: "user", Content: "before"},
			{Role: "user", Content: "hi"},
		}))
	})

	It("inlines text attachments into the user message", func() {
		handler = func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "ok") }

		_, err := llm.Collect(adapter.Generate(context.Background(), &llm.GenerateRequest{
			Model:       model,
			Text:        "read this",
			Attachments: []llm.Attachment{llm.NewAttachment("notes.txt", "text/plain", []byte("hello"))},
		}))
		Expect(err).NotTo(HaveOccurred())

		mu.Lock()
		defer mu.Unlock()
		user := last.Messages[len(last.Messages)-1]
		Expect(user.Content).To(Equal("read this\n\n--- File: notes.txt ---\nhello\n--- End of File ---\n"))
	})

	It("describes images it cannot see", func() {
		handler = func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "ok") }

		_, err := llm.Collect(adapter.Generate(context.Background(), &llm.GenerateRequest{
			Model:       model,
			Text:        "what is this",
			Attachments: []llm.Attachment{llm.NewAttachment("cat.png", "image/png", []byte{0x89})},
		}))
		Expect(err).NotTo(HaveOccurred())

		mu.Lock()
		defer mu.Unlock()
		Expect(last.Messages[len(last.Messages)-1].Content).To(ContainSubstring("[User attached an image: cat.png."))
	})

	DescribeTable("maps failure statuses",
		func(status int, kind llm.Kind) {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				io.WriteString(w, "nope")
			}
			_, err := llm.Collect(adapter.Generate(context.Background(), &llm.GenerateRequest{Model: model, Text: "hi"}))
			Expect(llm.KindOf(err)).To(Equal(kind))
		},
		Entry("429", http.StatusTooManyRequests, llm.KindRateLimited),
		Entry("503", http.StatusServiceUnavailable, llm.KindProviderWarmingUp),
		Entry("404", http.StatusNotFound, llm.KindProviderUnavailable),
		Entry("400", http.StatusBadRequest, llm.KindProviderUnavailable),
		Entry("500", http.StatusInternalServerError, llm.KindUnknown),
	)

	It("reports an unreachable endpoint as a network failure", func() {
		server.Close()
		_, err := llm.Collect(adapter.Generate(context.Background(), &llm.GenerateRequest{Model: model, Text: "hi"}))
		Expect(llm.IsKind(err, llm.KindNetworkFailure)).To(BeTrue())
		Expect(llm.UserMessage(err)).To(Equal(llm.GenericFailureText))
	})
})
