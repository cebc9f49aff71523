package llm

import "strings"

// Family identifies a backend protocol family.
type Family string

const (
	FamilyGemini       Family = "gemini"
	FamilyPollinations Family = "pollinations"
	FamilyHuggingFace  Family = "huggingface"
	FamilyOpenAI       Family = "openai"
	FamilyAnthropic    Family = "anthropic"
)

// OpenAIPrefix selects the OpenAI-compatible SDK family. The bare id "openai"
// is a Pollinations model and does not carry it.
const OpenAIPrefix = "openai/"

// Classify maps a model id to its family. It is total: ids that match no
// known prefix belong to the Pollinations plain-text family.
func Classify(modelID string) Family {
	switch {
	case strings.HasPrefix(modelID, "gemini"):
		return FamilyGemini
	case strings.HasPrefix(modelID, "hf_"):
		return FamilyHuggingFace
	case strings.HasPrefix(modelID, "claude"):
		return FamilyAnthropic
	case strings.HasPrefix(modelID, OpenAIPrefix):
		return FamilyOpenAI
	default:
		return FamilyPollinations
	}
}

// IsSDK reports whether the family is driven through a vendor SDK that
// accepts inline binary parts.
func (f Family) IsSDK() bool {
	switch f {
	case FamilyGemini, FamilyOpenAI, FamilyAnthropic:
		return true
	}
	return false
}

// DefaultModelID is selected when nothing else is configured.
const DefaultModelID = "openai"

// DefaultDescriptors returns the built-in model catalog.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{
			ID:          "openai",
			Label:       "Velicia X4.2",
			Family:      FamilyPollinations,
			Description: "Latest advanced reasoning, coding, research, search.",
			Output:      OutputText,
		},
		{
			ID:          "gemini-2.5-flash",
			Label:       "Velicia X3.5",
			Family:      FamilyGemini,
			Description: "Fastest model, suitable for daily tasks.",
			Output:      OutputText,
		},
		{
			ID:          "hf_deepseek",
			Label:       "Velicia DeepThink",
			Family:      FamilyHuggingFace,
			Description: "Deep step-by-step reasoning.",
			Target:      "deepseek-ai/DeepSeek-R1-Distill-Llama-70B",
			Output:      OutputText,
		},
		{
			ID:          "hf_sd35",
			Label:       "Velicia Realism",
			Family:      FamilyHuggingFace,
			Description: "Photorealistic image generation.",
			Target:      "stabilityai/stable-diffusion-3.5-large",
			Output:      OutputImage,
		},
	}
}

// Catalog is the immutable, ordered set of known models.
type Catalog struct {
	models       []Descriptor
	byID         map[string]int
	defaultModel string
}

// NewCatalog builds a catalog. Later descriptors with an id already present
// replace the earlier entry in place. Family is always derived from the id.
func NewCatalog(defaultModel string, descriptors ...Descriptor) *Catalog {
	c := &Catalog{byID: make(map[string]int)}
	for _, d := range descriptors {
		d.Family = Classify(d.ID)
		if d.Output == "" {
			d.Output = OutputText
		}
		if i, ok := c.byID[d.ID]; ok {
			c.models[i] = d
			continue
		}
		c.byID[d.ID] = len(c.models)
		c.models = append(c.models, d)
	}
	if defaultModel == "" {
		defaultModel = DefaultModelID
	}
	c.defaultModel = defaultModel
	return c
}

// Lookup returns the descriptor for id.
func (c *Catalog) Lookup(id string) (Descriptor, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return c.models[i], true
}

// All returns a copy of the catalog in configured order.
func (c *Catalog) All() []Descriptor {
	out := make([]Descriptor, len(c.models))
	copy(out, c.models)
	return out
}

// DefaultModel returns the id used when a turn names no model.
func (c *Catalog) DefaultModel() string {
	return c.defaultModel
}
