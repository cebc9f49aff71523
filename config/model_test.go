package config_test

import (
	"velicia/config"
	"velicia/llm"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Model", func() {

	It("defaults output to text and label to the name", func() {
		m := config.Model{Name: "gemini-2.5-pro"}
		m.Defaults()
		Expect(m.Output).To(Equal("text"))
		Expect(m.Label).To(Equal("gemini-2.5-pro"))
		Expect(m.Validate()).To(Succeed())
	})

	It("requires a target for Hugging Face models", func() {
		m := config.Model{Name: "hf_llama"}
		m.Defaults()
		Expect(m.Validate()).To(MatchError(ContainSubstring("target")))
	})

	It("allows image output only for Hugging Face models", func() {
		hf := config.Model{Name: "hf_flux", Target: "black-forest-labs/FLUX.1-dev", Output: "image"}
		Expect(hf.Validate()).To(Succeed())

		gem := config.Model{Name: "gemini-2.5-flash", Output: "image"}
		Expect(gem.Validate()).To(HaveOccurred())
	})

	It("rejects unknown outputs", func() {
		m := config.Model{Name: "openai", Output: "audio"}
		Expect(m.Validate()).To(MatchError(ContainSubstring("Unsupported output")))
	})

	It("converts to a descriptor with the family derived from the name", func() {
		m := config.Model{Name: "claude-sonnet-4", Label: "Velicia Sonnet", Target: "claude-sonnet-4-20250514"}
		m.Defaults()
		d := m.Descriptor()
		Expect(d.Family).To(Equal(llm.FamilyAnthropic))
		Expect(d.BackendModel()).To(Equal("claude-sonnet-4-20250514"))
		Expect(d.Output).To(Equal(llm.OutputText))
	})

	It("reports the model name when a loaded config fails validation", func() {
		hcl := `
model "hf_broken" {
  label = "Broken"
}
`
		_, f := writeFixture("config.hcl", hcl)
		_, err := config.LoadAndValidate(f)
		Expect(err).To(MatchError(ContainSubstring("model 'hf_broken'")))
	})
})
