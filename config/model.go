package config

import (
	"fmt"

	"velicia/llm"
)

// Model adds a catalog entry or overrides a built-in one with the same name.
// The block label is the model id; its prefix selects the backend family.
type Model struct {
	Name        string `hcl:"name,label"`
	Label       string `hcl:"label,optional"`
	Description string `hcl:"description,optional"`
	Target      string `hcl:"target,optional"`
	Output      string `hcl:"output,optional"`
	Persona     string `hcl:"persona,optional"`
}

func (m *Model) Defaults() {
	if m.Output == "" {
		m.Output = string(llm.OutputText)
	}
	if m.Label == "" {
		m.Label = m.Name
	}
}

func (m *Model) Validate() error {
	switch llm.Output(m.Output) {
	case llm.OutputText, llm.OutputImage:
	default:
		return fmt.Errorf("Unsupported output; output must be %q or %q, got %q", llm.OutputText, llm.OutputImage, m.Output)
	}

	family := llm.Classify(m.Name)
	if family == llm.FamilyHuggingFace && m.Target == "" {
		return fmt.Errorf("Missing target; Hugging Face model '%s' needs a target repository", m.Name)
	}
	if m.Output == string(llm.OutputImage) && family != llm.FamilyHuggingFace {
		return fmt.Errorf("Unsupported output; only Hugging Face models can produce images")
	}
	return nil
}

// Descriptor converts the block into a catalog entry.
func (m Model) Descriptor() llm.Descriptor {
	return llm.Descriptor{
		ID:          m.Name,
		Label:       m.Label,
		Family:      llm.Classify(m.Name),
		Description: m.Description,
		Target:      m.Target,
		Output:      llm.Output(m.Output),
		Persona:     m.Persona,
	}
}
