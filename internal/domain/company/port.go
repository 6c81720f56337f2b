package company

import "context"

// Repository port for companies, captured-image metadata, and analysis results.
// Per-image and synthesis results are stored as JSON strings; shape validation
// happens before they reach this boundary.
type Repository interface {
	SaveCompany(ctx context.Context, c *Company) error
	GetCompany(ctx context.Context, id CompanyID) (*Company, error)
	ListCompanies(ctx context.Context, limit int) ([]*Company, error)

	SaveImage(ctx context.Context, img *CapturedImage) error
	GetImage(ctx context.Context, id string) (*CapturedImage, error)
	ListImagesByCompany(ctx context.Context, id CompanyID) ([]*CapturedImage, error)
	SaveImageResult(ctx context.Context, imageID string, resultJSON string) error

	SaveAnalysis(ctx context.Context, rec *AnalysisRecord) error
	LatestAnalysis(ctx context.Context, id CompanyID) (*AnalysisRecord, error)
}

// ImageStore port for screenshot binaries.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}
