package pipeline

import (
	"strings"
	"testing"
)

func TestReflectPassesThroughWhenNotFound(t *testing.T) {
	out := &InterpretOutput{AnswerAr: "لا يوجد", NotFound: true}
	result := Reflect(out, ModeAnswer)
	if result.AnswerAr != "لا يوجد" {
		t.Fatalf("expected passthrough answer, got %q", result.AnswerAr)
	}
	if result.Annotation != "" {
		t.Fatal("must not annotate a not_found answer")
	}
}

func TestReflectReformatsBulletsToProseInNaturalChatMode(t *testing.T) {
	out := &InterpretOutput{AnswerAr: "- الصدق\n- الأمانة"}
	result := Reflect(out, ModeNaturalChat)
	if result.AnswerAr == out.AnswerAr {
		t.Fatal("expected natural_chat mode to reformat bullet text")
	}
	if !containsAll(result.AnswerAr, []string{"الصدق", "الأمانة"}) {
		t.Fatalf("reformatted prose dropped content: %q", result.AnswerAr)
	}
}

func TestReflectDoesNotReformatInAnswerMode(t *testing.T) {
	out := &InterpretOutput{AnswerAr: "- الصدق\n- الأمانة"}
	result := Reflect(out, ModeAnswer)
	if result.AnswerAr != out.AnswerAr {
		t.Fatalf("answer mode must not reformat, got %q", result.AnswerAr)
	}
}

func TestReflectAnnotationEchoesMarkerFreeSentence(t *testing.T) {
	out := &InterpretOutput{AnswerAr: "الصدق فضيله عظيمه. الصدق هو قول الحق دائما."}
	result := Reflect(out, ModeAnswer)
	if result.Annotation != "الصدق فضيله عظيمه" {
		t.Fatalf("expected the marker-free sentence echoed verbatim, got %q", result.Annotation)
	}
	if !strings.Contains(out.AnswerAr, result.Annotation) {
		t.Fatal("annotation must be drawn verbatim from the answer")
	}
}

func TestReflectOmitsAnnotationWhenEverySentenceCarriesAClaim(t *testing.T) {
	out := &InterpretOutput{AnswerAr: "الصدق هو قول الحق دائما"}
	result := Reflect(out, ModeAnswer)
	if result.Annotation != "" {
		t.Fatalf("expected no annotation when every sentence needs a citation, got %q", result.Annotation)
	}
}

func TestReflectOmitsAnnotationForEmptyAnswer(t *testing.T) {
	out := &InterpretOutput{AnswerAr: ""}
	result := Reflect(out, ModeAnswer)
	if result.Annotation != "" {
		t.Fatalf("expected no annotation for an empty answer, got %q", result.Annotation)
	}
}
