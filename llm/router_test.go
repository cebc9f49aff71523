package llm_test

import (
	"context"

	"velicia/llm"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubAdapter struct{ name string }

func (s stubAdapter) Generate(context.Context, *llm.GenerateRequest) llm.Stream {
	return llm.SliceStream([]string{s.name}, nil)
}

var _ = Describe("Classify", func() {
	DescribeTable("routes by id prefix",
		func(id string, family llm.Family) {
			Expect(llm.Classify(id)).To(Equal(family))
		},
		Entry("gemini models", "gemini-2.5-flash", llm.FamilyGemini),
		Entry("hugging face models", "hf_deepseek", llm.FamilyHuggingFace),
		Entry("claude models", "claude-sonnet-4", llm.FamilyAnthropic),
		Entry("openai-compatible models", "openai/gpt-4o-mini", llm.FamilyOpenAI),
		Entry("the bare openai id", "openai", llm.FamilyPollinations),
		Entry("anything else", "mistral", llm.FamilyPollinations),
		Entry("the empty id", "", llm.FamilyPollinations),
	)
})

var _ = Describe("Router", func() {
	var router *llm.Router

	BeforeEach(func() {
		router = llm.NewRouter(nil, nil)
		router.Register(llm.FamilyGemini, stubAdapter{"gemini"})
		router.Register(llm.FamilyPollinations, stubAdapter{"pollinations"})
		router.Register(llm.FamilyHuggingFace, stubAdapter{"huggingface"})
	})

	It("resolves catalog models with their descriptor and persona", func() {
		route := router.Route("hf_deepseek")
		Expect(route.Descriptor.Label).To(Equal("Velicia DeepThink"))
		Expect(route.Descriptor.Target).To(Equal("deepseek-ai/DeepSeek-R1-Distill-Llama-70B"))
		Expect(route.Persona).To(ContainSubstring("Velicia"))
		Expect(llm.Collect(route.Adapter.Generate(context.Background(), &llm.GenerateRequest{Model: route.Descriptor}))).To(Equal("huggingface"))
	})

	It("routes the empty id to the default model", func() {
		route := router.Route("")
		Expect(route.Descriptor.ID).To(Equal(llm.DefaultModelID))
		Expect(route.Descriptor.Family).To(Equal(llm.FamilyPollinations))
	})

	It("synthesizes a descriptor for ids outside the catalog", func() {
		route := router.Route("gemini-1.5-pro")
		Expect(route.Descriptor.ID).To(Equal("gemini-1.5-pro"))
		Expect(route.Descriptor.Family).To(Equal(llm.FamilyGemini))
		Expect(route.Descriptor.Output).To(Equal(llm.OutputText))
	})

	It("never fails: a family without an adapter yields ProviderUnavailable", func() {
		route := router.Route("claude-sonnet-4")
		Expect(route.Adapter).NotTo(BeNil())

		_, err := llm.Collect(route.Adapter.Generate(context.Background(), &llm.GenerateRequest{Model: route.Descriptor}))
		Expect(llm.IsKind(err, llm.KindProviderUnavailable)).To(BeTrue())
		Expect(llm.UserMessage(err)).To(ContainSubstring("claude-sonnet-4"))
	})

	It("lists the catalog in order", func() {
		ids := []string{}
		for _, d := range router.Models() {
			ids = append(ids, d.ID)
		}
		Expect(ids).To(Equal([]string{"openai", "gemini-2.5-flash", "hf_deepseek", "hf_sd35"}))
	})
})

var _ = Describe("Catalog", func() {
	It("derives the family from the id and defaults output to text", func() {
		c := llm.NewCatalog("", llm.Descriptor{ID: "gemini-exp", Family: llm.FamilyPollinations})
		d, ok := c.Lookup("gemini-exp")
		Expect(ok).To(BeTrue())
		Expect(d.Family).To(Equal(llm.FamilyGemini))
		Expect(d.Output).To(Equal(llm.OutputText))
		Expect(c.DefaultModel()).To(Equal(llm.DefaultModelID))
	})

	It("replaces duplicates in place", func() {
		c := llm.NewCatalog("a",
			llm.Descriptor{ID: "a", Label: "first"},
			llm.Descriptor{ID: "b"},
			llm.Descriptor{ID: "a", Label: "second"},
		)
		all := c.All()
		Expect(all).To(HaveLen(2))
		Expect(all[0].Label).To(Equal("second"))
	})
})

var _ = Describe("PersonaFor", func() {
	It("prefers the descriptor persona", func() {
		Expect(llm.PersonaFor(llm.Descriptor{ID: "openai", Family: llm.FamilyPollinations, Persona: "custom"})).To(Equal("custom"))
	})

	It("uses a different persona per family", func() {
		gemini := llm.PersonaFor(llm.Descriptor{Family: llm.FamilyGemini})
		hf := llm.PersonaFor(llm.Descriptor{Family: llm.FamilyHuggingFace})
		poll := llm.PersonaFor(llm.Descriptor{Family: llm.FamilyPollinations})
		Expect(gemini).NotTo(BeEmpty())
		Expect(hf).NotTo(Equal(gemini))
		Expect(poll).NotTo(Equal(hf))
		Expect(llm.PersonaFor(llm.Descriptor{Family: llm.FamilyOpenAI})).To(Equal(poll))
	})
})
