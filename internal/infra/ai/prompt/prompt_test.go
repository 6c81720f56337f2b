package prompt

import (
	"strings"
	"testing"

	"github.com/aydenden/companylens/internal/domain/analysis"
	"github.com/aydenden/companylens/internal/domain/company"
)

func TestImagePromptVariesByKind(t *testing.T) {
	var p Provider

	system, jobUser := p.ImagePrompt(company.SourceJobPosting)
	if !strings.Contains(system, `"sentiment"`) {
		t.Error("image system prompt missing sentiment field")
	}
	if !strings.Contains(jobUser, "job posting") {
		t.Errorf("job posting prompt lacks focus: %q", jobUser)
	}

	_, reviewUser := p.ImagePrompt(company.SourceReview)
	if jobUser == reviewUser {
		t.Error("review and job posting prompts are identical")
	}

	_, unknownUser := p.ImagePrompt(company.SourceKind("other"))
	if unknownUser == "" {
		t.Error("unknown kind produced empty prompt")
	}
}

func TestSynthesisPromptEmbedsResults(t *testing.T) {
	var p Provider

	results := []*analysis.ImageResult{
		{Category: "복지", Summary: "유연근무 제공", Sentiment: "positive"},
		{Category: "재무", Summary: "매출 성장", Sentiment: "neutral"},
	}
	system, user := p.SynthesisPrompt("Acme Corp", results)

	for _, want := range []string{`"score"`, `"recommendation"`, "recommend", "avoid"} {
		if !strings.Contains(system, want) {
			t.Errorf("synthesis system prompt missing %s", want)
		}
	}
	if !strings.Contains(user, "Acme Corp") {
		t.Error("synthesis user prompt missing company name")
	}
	if !strings.Contains(user, "유연근무 제공") {
		t.Error("synthesis user prompt missing per-image summary")
	}
	if !strings.Contains(user, "(2)") {
		t.Errorf("synthesis user prompt missing result count: %q", user)
	}
}
