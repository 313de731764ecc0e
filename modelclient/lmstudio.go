package modelclient

const lmstudioDefaultBaseURL = "http://localhost:1234"

// NewLMStudio builds a Provider for a local LM Studio server.
func NewLMStudio(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = lmstudioDefaultBaseURL
	}
	return newOpenAICompatClient(cfg)
}
