package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	domain "github.com/aydenden/companylens/internal/domain/company"
)

type CompanyRepository struct {
	db *sql.DB
}

func NewCompanyRepository(db *sql.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

func (r *CompanyRepository) SaveCompany(ctx context.Context, c *domain.Company) error {
	const q = `
INSERT INTO companies (id, name, site, scraped_at, metadata_json)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET
  name=EXCLUDED.name, site=EXCLUDED.site, scraped_at=EXCLUDED.scraped_at, metadata_json=EXCLUDED.metadata_json;
`
	name := stringOrDash(c.Name)
	scraped := c.ScrapedAt
	if scraped.IsZero() {
		scraped = time.Now()
	}
	var meta string
	if c.Metadata != nil {
		b, err := json.Marshal(c.Metadata)
		if err != nil {
			return err
		}
		meta = string(b)
	}
	_, err := r.db.ExecContext(ctx, q, c.ID, name, c.Site, scraped, meta)
	return err
}

func (r *CompanyRepository) GetCompany(ctx context.Context, id domain.CompanyID) (*domain.Company, error) {
	const q = `
SELECT id, name, site, scraped_at, metadata_json
FROM companies WHERE id=$1 LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, id)
	return scanCompany(row.Scan)
}

func (r *CompanyRepository) ListCompanies(ctx context.Context, limit int) ([]*domain.Company, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, name, site, scraped_at, metadata_json
FROM companies ORDER BY scraped_at DESC, id DESC LIMIT $1;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Company
	for rows.Next() {
		c, err := scanCompany(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCompany(scan func(...any) error) (*domain.Company, error) {
	var c domain.Company
	var meta sql.NullString
	if err := scan(&c.ID, &c.Name, &c.Site, &c.ScrapedAt, &meta); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if meta.Valid && meta.String != "" {
		var v any
		if err := json.Unmarshal([]byte(meta.String), &v); err == nil {
			c.Metadata = v
		}
	}
	return &c, nil
}

func (r *CompanyRepository) SaveImage(ctx context.Context, img *domain.CapturedImage) error {
	const q = `
INSERT INTO captured_images (id, company_id, kind, object_key, content_type, size_bytes, captured_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  kind=EXCLUDED.kind, object_key=EXCLUDED.object_key, content_type=EXCLUDED.content_type, size_bytes=EXCLUDED.size_bytes;
`
	captured := img.CapturedAt
	if captured.IsZero() {
		captured = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		img.ID, img.CompanyID, img.Kind, img.ObjectKey, img.ContentType, img.Size, captured,
	)
	return err
}

func (r *CompanyRepository) GetImage(ctx context.Context, id string) (*domain.CapturedImage, error) {
	const q = `
SELECT id, company_id, kind, object_key, content_type, size_bytes, captured_at
FROM captured_images WHERE id=$1 LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, id)
	var img domain.CapturedImage
	if err := row.Scan(&img.ID, &img.CompanyID, &img.Kind, &img.ObjectKey, &img.ContentType, &img.Size, &img.CapturedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &img, nil
}

func (r *CompanyRepository) ListImagesByCompany(ctx context.Context, id domain.CompanyID) ([]*domain.CapturedImage, error) {
	const q = `
SELECT id, company_id, kind, object_key, content_type, size_bytes, captured_at
FROM captured_images WHERE company_id=$1 ORDER BY captured_at ASC, id ASC;
`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.CapturedImage
	for rows.Next() {
		var img domain.CapturedImage
		if err := rows.Scan(&img.ID, &img.CompanyID, &img.Kind, &img.ObjectKey, &img.ContentType, &img.Size, &img.CapturedAt); err != nil {
			return nil, err
		}
		out = append(out, &img)
	}
	return out, rows.Err()
}

func (r *CompanyRepository) SaveImageResult(ctx context.Context, imageID string, resultJSON string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE captured_images SET result_json=$1 WHERE id=$2;`, resultJSON, imageID)
	return err
}

func (r *CompanyRepository) SaveAnalysis(ctx context.Context, rec *domain.AnalysisRecord) error {
	const q = `
INSERT INTO company_analyses (id, company_id, result_json, created_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET result_json=EXCLUDED.result_json;
`
	result := rec.Result
	if strings.TrimSpace(result) == "" {
		result = "{}"
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, rec.ID, rec.CompanyID, result, created)
	return err
}

func (r *CompanyRepository) LatestAnalysis(ctx context.Context, id domain.CompanyID) (*domain.AnalysisRecord, error) {
	const q = `
SELECT id, company_id, result_json, created_at
FROM company_analyses WHERE company_id=$1
ORDER BY created_at DESC, id DESC LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, id)
	var rec domain.AnalysisRecord
	if err := row.Scan(&rec.ID, &rec.CompanyID, &rec.Result, &rec.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
