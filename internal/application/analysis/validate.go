package analysis

import (
	"fmt"

	domain "github.com/aydenden/companylens/internal/domain/analysis"
)

var validSentiments = map[string]bool{
	"positive": true,
	"negative": true,
	"neutral":  true,
}

// validateImageResult checks a per-image payload against the expected shape.
// A failure here is recorded as a schema error, not retried: the model was
// reachable, it just answered in the wrong shape.
func validateImageResult(r *domain.ImageResult) error {
	if r.Category == "" {
		return fmt.Errorf("%w: missing category", domain.ErrSchema)
	}
	if r.Summary == "" {
		return fmt.Errorf("%w: missing summary", domain.ErrSchema)
	}
	if !validSentiments[r.Sentiment] {
		return fmt.Errorf("%w: invalid sentiment %q", domain.ErrSchema, r.Sentiment)
	}
	return nil
}

func validateSynthesis(v *domain.SynthesisResult) error {
	if v.Score < 0 || v.Score > 100 {
		return fmt.Errorf("%w: score %d out of range", domain.ErrSchema, v.Score)
	}
	if v.Summary == "" {
		return fmt.Errorf("%w: missing summary", domain.ErrSchema)
	}
	if v.Recommendation == "" {
		return fmt.Errorf("%w: missing recommendation", domain.ErrSchema)
	}
	return nil
}
