package modelclient

const (
	groqDefaultBaseURL   = "https://api.groq.com/openai"
	groqDefaultChatModel = "llama-3.3-70b-versatile"
)

// NewGroq builds a Provider for Groq.
func NewGroq(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = groqDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = groqDefaultChatModel
	}
	return newOpenAICompatClient(cfg)
}
