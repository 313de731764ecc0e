package modelclient

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	content string
	err     error
}

func (f *fakeProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ChatResponse{Content: f.content}, nil
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func TestPurposePathDecodesStrictSchema(t *testing.T) {
	p := &fakeProvider{content: `{"goal_ar":"بيان التزكية","constraints":["evidence_only"],"path":["a"],"difficulty":"easy"}`}
	c := New(p, "test-model")
	result, err := c.PurposePath(context.Background(), "ما هي التزكية", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.GoalAr != "بيان التزكية" {
		t.Fatalf("goal_ar = %q", result.GoalAr)
	}
}

func TestPurposePathTransportError(t *testing.T) {
	p := &fakeProvider{err: errors.New("connection refused")}
	c := New(p, "test-model")
	if _, err := c.PurposePath(context.Background(), "q", nil, nil); err == nil {
		t.Fatal("expected transport error to propagate")
	}
}

func TestCallRejectsMalformedJSON(t *testing.T) {
	p := &fakeProvider{content: "this is not json"}
	c := New(p, "test-model")
	if _, err := c.PurposePath(context.Background(), "q", nil, nil); err == nil {
		t.Fatal("expected malformed JSON to be treated as model failure")
	}
}

func TestCallRejectsEmptyResponse(t *testing.T) {
	p := &fakeProvider{content: "   "}
	c := New(p, "test-model")
	if _, err := c.RewriteQuery(context.Background(), "q", nil, nil); err == nil {
		t.Fatal("expected empty content to be treated as model failure")
	}
}

func TestRewriteQueryCapsAtFiveRewrites(t *testing.T) {
	p := &fakeProvider{content: `{"rewrites_ar":["a","b","c","d","e","f","g"],"disambiguation_ar":null}`}
	c := New(p, "test-model")
	result, err := c.RewriteQuery(context.Background(), "q", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.RewritesAr) != 5 {
		t.Fatalf("expected rewrites capped at 5, got %d", len(result.RewritesAr))
	}
}

func TestInterpretPassesModeToPrompt(t *testing.T) {
	p := &fakeProvider{content: `{"answer_ar":"x","citations":[],"entities":[],"not_found":false,"confidence":0.9}`}
	c := New(p, "test-model")
	result, err := c.Interpret(context.Background(), "q", nil, nil, "debate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AnswerAr != "x" {
		t.Fatalf("answer_ar = %q", result.AnswerAr)
	}
}

func TestStripThinkingRemovesThinkBlock(t *testing.T) {
	got := stripThinking("<think>internal reasoning</think>{\"ok\":true}")
	want := "{\"ok\":true}"
	if got != want {
		t.Fatalf("stripThinking = %q, want %q", got, want)
	}
}

func TestStripThinkingNoBlockIsNoop(t *testing.T) {
	input := `{"ok":true}`
	if got := stripThinking(input); got != input {
		t.Fatalf("stripThinking modified input without a think block: %q", got)
	}
}
