package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("GeminiAdapter", func() {
	It("fails with MissingCredential without a key", func() {
		adapter := NewGeminiAdapter(func() string { return "" }, nil)
		defer adapter.Close()

		_, err := Collect(adapter.Generate(context.Background(), &GenerateRequest{
			Model: Descriptor{ID: "gemini-2.5-flash", Family: FamilyGemini},
			Text:  "hi",
		}))
		Expect(IsKind(err, KindMissingCredential)).To(BeTrue())
		Expect(UserMessage(err)).To(ContainSubstring("Gemini"))
	})

	It("maps history roles to user and model", func() {
		history := geminiHistory([]Message{
			NewTextMessage(RoleUser, "q"),
			NewTextMessage(RoleSystem, "ignored"),
			NewTextMessage(RoleAssistant, "a"),
		})
		Expect(history).To(HaveLen(2))
		Expect(history[0].Role).To(Equal("user"))
		Expect(history[1].Role).To(Equal("model"))
		Expect(history[1].Parts).To(Equal([]genai.Part{genai.Text("a")}))
	})

	It("puts blobs before the text part", func() {
		adapter := NewGeminiAdapter(nil, nil)
		parts := adapter.buildParts(&GenerateRequest{
			Text:        "describe",
			Attachments: []Attachment{NewAttachment("cat.png", "image/png", []byte{7})},
		})
		Expect(parts).To(HaveLen(2))
		Expect(parts[0]).To(Equal(genai.Blob{MIMEType: "image/png", Data: []byte{7}}))
		Expect(parts[1]).To(Equal(genai.Text("describe")))
	})

	It("sends an empty text part for an empty turn", func() {
		parts := NewGeminiAdapter(nil, nil).buildParts(&GenerateRequest{})
		Expect(parts).To(Equal([]genai.Part{genai.Text("")}))
	})

	DescribeTable("classifies API errors",
		func(code int, kind Kind) {
			err := fmt.Errorf("send: %w", &googleapi.Error{Code: code, Message: "x"})
			Expect(KindOf(classifyGeminiError(err))).To(Equal(kind))
		},
		Entry("429", 429, KindRateLimited),
		Entry("503", 503, KindProviderWarmingUp),
		Entry("403", 403, KindMissingCredential),
		Entry("404", 404, KindProviderUnavailable),
		Entry("500", 500, KindUnknown),
	)
})
