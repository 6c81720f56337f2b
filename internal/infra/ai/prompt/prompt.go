// Package prompt holds the template strings fed to the model. Templates are
// opaque configuration from the pipeline's point of view; only the output
// schema they demand is load-bearing.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aydenden/companylens/internal/domain/analysis"
	"github.com/aydenden/companylens/internal/domain/company"
)

// Provider implements the prompt-template port consumed by the session manager.
type Provider struct{}

// ImagePrompt returns the system and user prompts for analyzing one captured
// screenshot of the given source kind.
func (Provider) ImagePrompt(kind company.SourceKind) (string, string) {
	return imageSystemPrompt, imageUserPrompt(kind)
}

// SynthesisPrompt returns the system and user prompts for the final
// company-level synthesis over all successful per-image results.
func (Provider) SynthesisPrompt(companyName string, results []*analysis.ImageResult) (string, string) {
	return synthesisSystemPrompt, synthesisUserPrompt(companyName, results)
}

const imageSystemPrompt = `You are an analyst reviewing screenshots captured from Korean company-information websites (job postings, employee reviews, financial disclosures). The screenshots contain Korean text. You must answer with one valid JSON object only, following the schema below. No markdown, no commentary outside the JSON.

Schema:
{
  "category": "<string, short label for what the screenshot shows>",
  "summary": "<string, 2-3 sentence summary of the key information>",
  "keyPoints": ["<string>", "..."],
  "sentiment": "<positive|negative|neutral>"
}`

func imageUserPrompt(kind company.SourceKind) string {
	var focus string
	switch kind {
	case company.SourceJobPosting:
		focus = "This is a job posting. Focus on the role, required skills, compensation hints, and what the posting reveals about the team and workload."
	case company.SourceReview:
		focus = "This is an employee review page. Focus on recurring complaints and praise, work-life balance, management, and compensation satisfaction."
	case company.SourceFinancial:
		focus = "This is a financial disclosure. Focus on revenue, profit trends, headcount, and financial stability signals."
	default:
		focus = "Describe what the screenshot shows about the company."
	}
	return fmt.Sprintf("Analyze the attached screenshot and respond with the JSON per schema. %s", focus)
}

const synthesisSystemPrompt = `You are a career analyst producing a final verdict on a company from individual screenshot analyses. You must answer with one valid JSON object only, following the schema below. No markdown, no commentary outside the JSON.

Requirements:
- score is an integer 0-100, where 100 is an excellent employer.
- strengths and weaknesses are short bullet strings.
- recommendation is one of: "recommend", "neutral", "avoid".
- reasoning explains how the evidence led to the score.

Schema:
{
  "score": 0,
  "summary": "<string>",
  "strengths": ["<string>"],
  "weaknesses": ["<string>"],
  "recommendation": "<recommend|neutral|avoid>",
  "reasoning": "<string>"
}`

func synthesisUserPrompt(companyName string, results []*analysis.ImageResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Company: %s\n\nPer-image analyses (%d):\n", companyName, len(results))
	for i, r := range results {
		b, err := json.Marshal(r)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, b)
	}
	sb.WriteString("\nCombine the evidence above into one verdict JSON per schema.")
	return sb.String()
}
