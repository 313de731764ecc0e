package modelclient

import "context"

const ollamaDefaultBaseURL = "http://localhost:11434"

// ollamaProvider reuses openAICompatClient for chat (ollama serves an
// OpenAI-compatible /v1/chat/completions route) but calls ollama's native
// /api/embed endpoint for embeddings, which batches more reliably than the
// OpenAI-shaped /v1/embeddings route on older ollama builds.
type ollamaProvider struct {
	*openAICompatClient
	embedCfg Config
}

// NewOllama builds a Provider for a local or remote ollama server.
func NewOllama(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = ollamaDefaultBaseURL
	}
	return &ollamaProvider{
		openAICompatClient: newOpenAICompatClient(cfg),
		embedCfg:           cfg,
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func (o *ollamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := ollamaEmbedRequest{Model: o.embedCfg.Model, Input: texts}
	var resp ollamaEmbedResponse
	if err := o.doPostNative(ctx, "/api/embed", req, &resp); err != nil {
		return nil, err
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = float64sToFloat32s(e)
	}
	return out, nil
}

// doPostNative issues a request against ollama's native API (no /v1
// prefix), reusing the embedded client's retry/backoff transport.
func (o *ollamaProvider) doPostNative(ctx context.Context, path string, reqBody, respBody any) error {
	saved := o.openAICompatClient.pathPrefix
	o.openAICompatClient.pathPrefix = ""
	defer func() { o.openAICompatClient.pathPrefix = saved }()
	return o.openAICompatClient.doPost(ctx, path, reqBody, respBody)
}

func float64sToFloat32s(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
