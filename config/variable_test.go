package config_test

import (
	"fmt"
	"os"

	"velicia/config"
	"velicia/llm"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Variables", func() {

	Describe("Validate", func() {
		It("rejects a secret with a default", func() {
			v := config.Variable{Name: "k", Secret: true, Default: "leak"}
			Expect(v.Validate()).To(MatchError(ContainSubstring("Secret variable 'k'")))
		})

		It("accepts a secret without a default", func() {
			v := config.Variable{Name: "k", Secret: true}
			Expect(v.Validate()).To(Succeed())
		})
	})

	Describe("vars.txt", func() {
		It("round-trips set, get, list and delete", func() {
			Expect(config.SetVar("b", "2")).To(Succeed())
			Expect(config.SetVar("a", "x=y")).To(Succeed())

			v, err := config.GetVar("a")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("x=y"))

			names, err := config.ListVars()
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"a", "b"}))

			Expect(config.DeleteVar("a")).To(Succeed())
			_, err = config.GetVar("a")
			Expect(err).To(HaveOccurred())
			Expect(config.DeleteVar("a")).To(HaveOccurred())
		})
	})

	Describe("VarFile", func() {
		var file *config.VarFile

		BeforeEach(func() {
			var err error
			file, err = config.DefaultVarFile()
			Expect(err).NotTo(HaveOccurred())
		})

		It("skips comments and strips surrounding quotes", func() {
			Expect(os.WriteFile(file.Path, []byte("# keys\n\nhf_token=\"hf_abc\"\n name = spaced \n"), 0600)).To(Succeed())

			vars, err := file.Read()
			Expect(err).NotTo(HaveOccurred())
			Expect(vars).To(Equal(map[string]string{"hf_token": "hf_abc", "name": "spaced"}))
		})

		It("reports the line of a malformed entry", func() {
			Expect(os.WriteFile(file.Path, []byte("ok=1\nbroken\n"), 0600)).To(Succeed())

			_, err := file.Read()
			Expect(err).To(MatchError(ContainSubstring("vars.txt:2")))
		})

		It("writes sorted entries with owner-only permissions", func() {
			Expect(file.Write(map[string]string{"b": "2", "a": "1"})).To(Succeed())

			data, err := os.ReadFile(file.Path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("a=1\nb=2\n"))

			info, err := os.Stat(file.Path)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0600)))
		})

		It("leaves the file untouched when an update fails", func() {
			Expect(file.Write(map[string]string{"a": "1"})).To(Succeed())
			err := file.Update(func(vars map[string]string) error {
				vars["a"] = "2"
				return fmt.Errorf("nope")
			})
			Expect(err).To(HaveOccurred())
			Expect(config.GetVar("a")).To(Equal("1"))
		})

		It("rejects names and values that would corrupt the file", func() {
			Expect(config.SetVar("a=b", "x")).To(HaveOccurred())
			Expect(config.SetVar("a", "line1\nline2")).To(HaveOccurred())
		})
	})

	Describe("CredentialFamily", func() {
		It("maps credential variables to their family", func() {
			f, ok := config.CredentialFamily("hf_token")
			Expect(ok).To(BeTrue())
			Expect(f).To(Equal(llm.FamilyHuggingFace))

			_, ok = config.CredentialFamily("other")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("ResolveVariableValue", func() {
		It("prefers vars.txt, then the environment, then the default", func() {
			v := &config.Variable{Name: "hf", Env: "HF_TOKEN", Default: "dflt"}

			val, err := config.ResolveVariableValue(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("dflt"))

			GinkgoT().Setenv("HF_TOKEN", "from-env")
			val, _ = config.ResolveVariableValue(v)
			Expect(val).To(Equal("from-env"))

			Expect(config.SetVar("hf", "from-file")).To(Succeed())
			val, _ = config.ResolveVariableValue(v)
			Expect(val).To(Equal("from-file"))
		})
	})

	Describe("CredentialSource", func() {
		It("reads the credentials block first", func() {
			cfg := config.Default()
			cfg.Credentials.Gemini = "block-key"
			GinkgoT().Setenv("GEMINI_API_KEY", "env-key")
			Expect(cfg.CredentialSource(llm.FamilyGemini)()).To(Equal("block-key"))
		})

		It("falls back to vars.txt and then the environment", func() {
			cfg := config.Default()
			source := cfg.CredentialSource(llm.FamilyHuggingFace)
			Expect(source()).To(BeEmpty())

			GinkgoT().Setenv("HF_TOKEN", "env-token")
			Expect(source()).To(Equal("env-token"))

			Expect(config.SetVar("hf_token", "file-token")).To(Succeed())
			Expect(source()).To(Equal("file-token"))
		})

		It("accepts API_KEY as a Gemini alias", func() {
			cfg := config.Default()
			GinkgoT().Setenv("API_KEY", "alias")
			Expect(cfg.CredentialSource(llm.FamilyGemini)()).To(Equal("alias"))
		})

		It("has no credential for Pollinations", func() {
			cfg := config.Default()
			Expect(cfg.CredentialSource(llm.FamilyPollinations)()).To(BeEmpty())
			Expect(cfg.CredentialStatus()).NotTo(HaveKey(llm.FamilyPollinations))
		})
	})
})
