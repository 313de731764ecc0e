package modelclient

const openaiDefaultBaseURL = "https://api.openai.com"

// NewOpenAI builds a Provider for the OpenAI API.
func NewOpenAI(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openaiDefaultBaseURL
	}
	return newOpenAICompatClient(cfg)
}
