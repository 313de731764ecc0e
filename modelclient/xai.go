package modelclient

const xaiDefaultBaseURL = "https://api.x.ai"

// NewXAI builds a Provider for xAI.
func NewXAI(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = xaiDefaultBaseURL
	}
	return newOpenAICompatClient(cfg)
}
