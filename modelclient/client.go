package modelclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Client is the schema-constrained collaborator consumed by the PURPOSE,
// RETRIEVE, and INTERPRET stages. Every method sends a strict prompt
// requesting JSON-object output and decodes the result into the matching
// contract type; a malformed or missing response is returned as an error
// so the caller can fall back to its deterministic path rather than
// surface garbage to the pipeline. Never panics.
type Client struct {
	provider Provider
	model    string
}

// New builds a Client over an already-constructed Provider.
func New(provider Provider, model string) *Client {
	return &Client{provider: provider, model: model}
}

// PurposePathResult is the PURPOSE/PATH stage's model-assisted output.
type PurposePathResult struct {
	GoalAr      string   `json:"goal_ar"`
	Constraints []string `json:"constraints"`
	Path        []string `json:"path"`
	Difficulty  string   `json:"difficulty"`
}

// PurposePath asks the model to derive a goal, constraint list, plan, and
// difficulty label for the given question and detected context.
func (c *Client) PurposePath(ctx context.Context, question string, entities, keywords []string) (*PurposePathResult, error) {
	system := "أنت مساعد يحدد هدف السؤال وقيوده. أجب بكائن JSON فقط بالحقول: " +
		"goal_ar (نص), constraints (مصفوفة نصوص), path (مصفوفة خطوات نصية), difficulty (hard|medium|easy). " +
		"لا تضف أي نص خارج كائن JSON."
	user := buildContextPrompt(question, entities, keywords)

	var out PurposePathResult
	if err := c.call(ctx, system, user, &out); err != nil {
		return nil, fmt.Errorf("modelclient: purpose_path: %w", err)
	}
	return &out, nil
}

// RewriteQueryResult is the RETRIEVE stage's query-rewrite contract. The
// model must not answer the question, only propose rewrites.
type RewriteQueryResult struct {
	RewritesAr       []string `json:"rewrites_ar"`
	DisambiguationAr *string  `json:"disambiguation_ar"`
}

// RewriteQuery asks the model for up to 5 Arabic search rewrites when
// vector search yields too few distinct chunks.
func (c *Client) RewriteQuery(ctx context.Context, question string, entities, keywords []string) (*RewriteQueryResult, error) {
	system := "أنت محرك إعادة صياغة استعلامات بحث فقط. لا تجب عن السؤال إطلاقاً. " +
		"أجب بكائن JSON فقط بالحقول: rewrites_ar (مصفوفة من 5 عبارات بحث عربية كحد أقصى), " +
		"disambiguation_ar (سؤال توضيحي واحد أو null). لا حقول أخرى."
	user := buildContextPrompt(question, entities, keywords)

	var out RewriteQueryResult
	if err := c.call(ctx, system, user, &out); err != nil {
		return nil, fmt.Errorf("modelclient: rewrite_query: %w", err)
	}
	if len(out.RewritesAr) > 5 {
		out.RewritesAr = out.RewritesAr[:5]
	}
	return &out, nil
}

// ClassifyIntentResult is the LISTEN stage's optional model-fallback
// intent classification contract.
type ClassifyIntentResult struct {
	IntentType         string   `json:"intent_type"`
	InScope            bool     `json:"in_scope"`
	Confidence         float64  `json:"confidence"`
	TargetEntity       *string  `json:"target_entity"`
	SuggestedQueriesAr []string `json:"suggested_queries_ar"`
	ClarificationAr    *string  `json:"clarification_ar"`
}

// ClassifyIntent is invoked only when the deterministic intent rules in
// LISTEN fail to classify a question.
func (c *Client) ClassifyIntent(ctx context.Context, question string, entities, keywords []string) (*ClassifyIntentResult, error) {
	system := "صنّف نية السؤال. أجب بكائن JSON فقط بالحقول: intent_type, in_scope (true/false), " +
		"confidence (رقم بين 0 و1), target_entity (نص أو null), suggested_queries_ar (مصفوفة نصوص), " +
		"clarification_ar (نص أو null)."
	user := buildContextPrompt(question, entities, keywords)

	var out ClassifyIntentResult
	if err := c.call(ctx, system, user, &out); err != nil {
		return nil, fmt.Errorf("modelclient: classify_intent: %w", err)
	}
	return &out, nil
}

// EvidenceForPrompt is the minimal shape the INTERPRET stage hands the
// model for each evidence packet; it intentionally excludes provenance
// fields the model has no business seeing.
type EvidenceForPrompt struct {
	ChunkID  int64  `json:"chunk_id"`
	EntityID int64  `json:"entity_id"`
	TextAr   string `json:"text_ar"`
}

// InterpretResult is the INTERPRET stage's model-assisted answering
// contract.
type InterpretResult struct {
	AnswerAr   string              `json:"answer_ar"`
	Citations  []InterpretCitation `json:"citations"`
	EntityIDs  []int64             `json:"entities"`
	NotFound   bool                `json:"not_found"`
	Confidence float64             `json:"confidence"`
}

// InterpretCitation is one citation as returned directly by the model,
// before span resolution hydrates it further.
type InterpretCitation struct {
	ChunkID int64  `json:"chunk_id"`
	Quote   string `json:"quote"`
}

// Interpret asks the model to bind evidence to an answer for a given mode
// (answer, debate, socratic, judge, natural_chat). The model is
// instructed to set not_found=true rather than state anything not present
// in the supplied packets.
func (c *Client) Interpret(ctx context.Context, question string, packets []EvidenceForPrompt, entities []string, mode string) (*InterpretResult, error) {
	system := interpretSystemPrompt(mode)
	user := interpretUserPrompt(question, packets, entities)

	var out InterpretResult
	if err := c.call(ctx, system, user, &out); err != nil {
		return nil, fmt.Errorf("modelclient: interpret: %w", err)
	}
	return &out, nil
}

func interpretSystemPrompt(mode string) string {
	base := "أنت نظام إجابة يعتمد على الأدلة فقط. يجب عليك: " +
		"(1) عدم ذكر أي ادعاء غير موجود حرفياً في المقاطع المرفقة، " +
		"(2) الاستشهاد بكل ادعاء بمعرّف المقطع المصدر، " +
		"(3) ضبط not_found=true إذا كانت الإجابة الكاملة تتطلب معلومات غير متوفرة في المقاطع. " +
		"أجب بكائن JSON فقط بالحقول: answer_ar, citations (مصفوفة {chunk_id, quote}), " +
		"entities (مصفوفة معرّفات), not_found (true/false), confidence (رقم بين 0 و1)."
	switch mode {
	case "debate":
		return base + " اعرض وجهتين متوازنتين مدعومتين بالأدلة إن وجدتا."
	case "socratic":
		return base + " وجّه السؤال إلى المستخدم عبر أسئلة فرعية مستندة إلى الأدلة بدل إعطاء إجابة مباشرة فقط."
	case "judge":
		return base + " احكم بين الاعتبارات المتعارضة استناداً إلى الأدلة المرفقة فقط."
	case "natural_chat":
		return base + " اكتب الإجابة بأسلوب محادثة طبيعي مع الحفاظ على كل استشهاد."
	default:
		return base
	}
}

func interpretUserPrompt(question string, packets []EvidenceForPrompt, entities []string) string {
	var b strings.Builder
	b.WriteString("السؤال: ")
	b.WriteString(question)
	b.WriteString("\n\nالكيانات المكتشفة: ")
	b.WriteString(strings.Join(entities, "، "))
	b.WriteString("\n\nالمقاطع المرجعية:\n")
	for _, p := range packets {
		fmt.Fprintf(&b, "[%d] (entity %d) %s\n", p.ChunkID, p.EntityID, p.TextAr)
	}
	return b.String()
}

func buildContextPrompt(question string, entities, keywords []string) string {
	var b strings.Builder
	b.WriteString("السؤال: ")
	b.WriteString(question)
	b.WriteString("\nالكيانات المكتشفة: ")
	b.WriteString(strings.Join(entities, "، "))
	b.WriteString("\nالكلمات المفتاحية: ")
	b.WriteString(strings.Join(keywords, "، "))
	return b.String()
}

// call issues a JSON-mode chat request and decodes the content into out.
// Any failure (transport error, empty content, invalid JSON) is returned
// as an error; callers must never treat a zero-value out as a successful
// empty response.
func (c *Client) call(ctx context.Context, system, user string, out any) error {
	resp, err := c.provider.Chat(ctx, ChatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return err
	}
	content := strings.TrimSpace(stripThinking(resp.Content))
	if content == "" {
		return fmt.Errorf("empty model response")
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("malformed JSON response: %w", err)
	}
	return nil
}

// stripThinking removes a leading <think>...</think> block some locally
// hosted reasoning models prepend before their JSON content.
func stripThinking(s string) string {
	const open, close = "<think>", "</think>"
	start := strings.Index(s, open)
	if start == -1 {
		return s
	}
	end := strings.Index(s, close)
	if end == -1 || end < start {
		return s
	}
	return s[:start] + s[end+len(close):]
}
