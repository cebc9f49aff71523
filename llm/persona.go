package llm

const (
	geminiPersona = "You are VeliciaAI, a helpful, fast, and minimalist AI assistant developed by Cutsz Indonesian Inc."

	pollinationsPersona = "You are VeliciaAI, a helpful, fast, and minimalist AI assistant developed by Cutsz Indonesian Inc. You are professional, concise, and friendly."

	huggingFacePersona = "You are VeliciaAI, a high-performance, minimalist AI assistant developed by Cutsz Indonesian Inc. You must ALWAYS identify yourself as VeliciaAI. Do NOT refer to yourself as DeepSeek, Llama, or any other identity. Be helpful, professional, precise, and concise."
)

// PersonaFor returns the system persona used for a model. A descriptor
// persona wins over the family default.
func PersonaFor(d Descriptor) string {
	if d.Persona != "" {
		return d.Persona
	}
	switch d.Family {
	case FamilyHuggingFace:
		return huggingFacePersona
	case FamilyPollinations, FamilyOpenAI, FamilyAnthropic:
		return pollinationsPersona
	default:
		return geminiPersona
	}
}
