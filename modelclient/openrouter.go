package modelclient

const openrouterDefaultBaseURL = "https://openrouter.ai/api"

// NewOpenRouter builds a Provider for OpenRouter.
func NewOpenRouter(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openrouterDefaultBaseURL
	}
	return newOpenAICompatClient(cfg)
}
