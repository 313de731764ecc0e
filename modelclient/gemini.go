package modelclient

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// NewGemini builds a Provider for Gemini's OpenAI-compatible endpoint.
// Unlike the other backends, Gemini's compat endpoint already includes its
// full path and takes no additional "/v1" prefix.
func NewGemini(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = geminiDefaultBaseURL
	}
	return newOpenAICompatClientPrefix(cfg, "")
}
