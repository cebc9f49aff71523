package config

import (
	"os"

	"velicia/llm"
)

// Credentials holds per-family API keys, usually set from vars.
type Credentials struct {
	Gemini      string `hcl:"gemini,optional"`
	HuggingFace string `hcl:"huggingface,optional"`
	OpenAI      string `hcl:"openai,optional"`
	Anthropic   string `hcl:"anthropic,optional"`
}

// credentialKey names the vars.txt entry and environment variables consulted
// for a family, in order.
type credentialKey struct {
	varName string
	envs    []string
}

var credentialKeys = map[llm.Family]credentialKey{
	llm.FamilyGemini:      {varName: "gemini_api_key", envs: []string{"GEMINI_API_KEY", "API_KEY"}},
	llm.FamilyHuggingFace: {varName: "hf_token", envs: []string{"HF_TOKEN"}},
	llm.FamilyOpenAI:      {varName: "openai_api_key", envs: []string{"OPENAI_API_KEY"}},
	llm.FamilyAnthropic:   {varName: "anthropic_api_key", envs: []string{"ANTHROPIC_API_KEY"}},
}

func (c Credentials) forFamily(f llm.Family) string {
	switch f {
	case llm.FamilyGemini:
		return c.Gemini
	case llm.FamilyHuggingFace:
		return c.HuggingFace
	case llm.FamilyOpenAI:
		return c.OpenAI
	case llm.FamilyAnthropic:
		return c.Anthropic
	}
	return ""
}

// CredentialSource returns a lookup for the family's API key. It is read on
// every call so a key added to vars.txt takes effect without a restart.
// Priority: credentials block > vars.txt > environment.
func (c *Config) CredentialSource(f llm.Family) func() string {
	return func() string {
		if v := c.Credentials.forFamily(f); v != "" {
			return v
		}
		key, ok := credentialKeys[f]
		if !ok {
			return ""
		}
		if fileVars, err := LoadVarsFromFile(); err == nil {
			if v := fileVars[key.varName]; v != "" {
				return v
			}
		}
		for _, env := range key.envs {
			if v := os.Getenv(env); v != "" {
				return v
			}
		}
		return ""
	}
}

// CredentialStatus reports, per credentialed family, whether a key resolves.
func (c *Config) CredentialStatus() map[llm.Family]bool {
	out := make(map[llm.Family]bool, len(credentialKeys))
	for f := range credentialKeys {
		out[f] = c.CredentialSource(f)() != ""
	}
	return out
}

// Endpoints overrides backend base URLs.
type Endpoints struct {
	Pollinations string `hcl:"pollinations,optional"`
	HuggingFace  string `hcl:"huggingface,optional"`
	OpenAI       string `hcl:"openai,optional"`
	Anthropic    string `hcl:"anthropic,optional"`
}

func (e *Endpoints) Defaults() {
	if e.Pollinations == "" {
		e.Pollinations = llm.DefaultPollinationsURL
	}
	if e.HuggingFace == "" {
		e.HuggingFace = llm.DefaultHuggingFaceURL
	}
}

// CredentialFamily reports which family a vars.txt entry supplies the key for.
func CredentialFamily(varName string) (llm.Family, bool) {
	for f, key := range credentialKeys {
		if key.varName == varName {
			return f, true
		}
	}
	return "", false
}
