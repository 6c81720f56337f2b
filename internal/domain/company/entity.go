package company

import "time"

// CompanyID identifier type
type CompanyID string

// SourceKind enum: which scraped surface a capture came from.
type SourceKind string

const (
	SourceJobPosting SourceKind = "job_posting"
	SourceReview     SourceKind = "review"
	SourceFinancial  SourceKind = "financial"
)

// Company is a scraped company record as captured by the extension.
type Company struct {
	ID        CompanyID `json:"id"`
	Name      string    `json:"name"`
	Site      string    `json:"site,omitempty"`
	ScrapedAt time.Time `json:"scraped_at"`
	Metadata  any       `json:"metadata,omitempty"`
}

// CapturedImage is screenshot metadata; the bytes live in the object store
// under ObjectKey. Each image belongs to exactly one company.
type CapturedImage struct {
	ID          string     `json:"id"`
	CompanyID   CompanyID  `json:"company_id"`
	Kind        SourceKind `json:"kind"`
	ObjectKey   string     `json:"object_key"`
	ContentType string     `json:"content_type"`
	Size        int64      `json:"size"`
	CapturedAt  time.Time  `json:"captured_at"`
}

// AnalysisRecord is a stored analysis verdict for auditing and retrieval.
// Result holds the synthesis JSON as produced by the model pipeline.
type AnalysisRecord struct {
	ID        string    `json:"id"`
	CompanyID CompanyID `json:"company_id"`
	Result    string    `json:"result"`
	CreatedAt time.Time `json:"created_at"`
}
