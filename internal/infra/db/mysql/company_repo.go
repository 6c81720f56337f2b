package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	domain "github.com/aydenden/companylens/internal/domain/company"
)

type CompanyRepository struct {
	db *sql.DB
}

func NewCompanyRepository(db *sql.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// SaveCompany insert/update a company record
func (r *CompanyRepository) SaveCompany(ctx context.Context, c *domain.Company) error {
	const q = `
INSERT INTO companies (id, name, site, scraped_at, metadata_json)
VALUES (?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 name=VALUES(name), site=VALUES(site), scraped_at=VALUES(scraped_at), metadata_json=VALUES(metadata_json);
`
	name := stringOrDash(c.Name)
	scraped := c.ScrapedAt
	if scraped.IsZero() {
		scraped = time.Now()
	}
	meta, err := marshalMetadata(c.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q, c.ID, name, c.Site, scraped, meta)
	return err
}

func (r *CompanyRepository) GetCompany(ctx context.Context, id domain.CompanyID) (*domain.Company, error) {
	const q = `
SELECT id, name, site, scraped_at, metadata_json
FROM companies WHERE id=? LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, id)

	var c domain.Company
	var meta sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &c.Site, &c.ScrapedAt, &meta); err != nil {
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

func (r *CompanyRepository) ListCompanies(ctx context.Context, limit int) ([]*domain.Company, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, name, site, scraped_at, metadata_json
FROM companies ORDER BY scraped_at DESC, id DESC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Company
	for rows.Next() {
		var c domain.Company
		var meta sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Site, &c.ScrapedAt, &meta); err != nil {
			return nil, err
		}
		if meta.Valid && meta.String != "" {
			var v any
			if err := json.Unmarshal([]byte(meta.String), &v); err == nil {
				c.Metadata = v
			}
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// SaveImage insert captured-image metadata; bytes live in the object store
func (r *CompanyRepository) SaveImage(ctx context.Context, img *domain.CapturedImage) error {
	const q = `
INSERT INTO captured_images (id, company_id, kind, object_key, content_type, size_bytes, captured_at)
VALUES (?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 kind=VALUES(kind), object_key=VALUES(object_key), content_type=VALUES(content_type), size_bytes=VALUES(size_bytes);
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
FROM captured_images WHERE id=? LIMIT 1;
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
FROM captured_images WHERE company_id=? ORDER BY captured_at ASC, id ASC;
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

// SaveImageResult attaches the validated analysis JSON to one image
func (r *CompanyRepository) SaveImageResult(ctx context.Context, imageID string, resultJSON string) error {
	const q = `UPDATE captured_images SET result_json=? WHERE id=?;`
	_, err := r.db.ExecContext(ctx, q, resultJSON, imageID)
	return err
}

// SaveAnalysis stores a company-level synthesis verdict
func (r *CompanyRepository) SaveAnalysis(ctx context.Context, rec *domain.AnalysisRecord) error {
	const q = `
INSERT INTO company_analyses (id, company_id, result_json, created_at)
VALUES (?,?,?,?)
ON DUPLICATE KEY UPDATE result_json=VALUES(result_json);
`
	result := rec.Result
	if result == "" {
		result = "{}"
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, rec.ID, rec.CompanyID, result, created)
	return err
}

// LatestAnalysis returns the newest verdict for a company, nil when none
func (r *CompanyRepository) LatestAnalysis(ctx context.Context, id domain.CompanyID) (*domain.AnalysisRecord, error) {
	const q = `
SELECT id, company_id, result_json, created_at
FROM company_analyses WHERE company_id=?
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

func marshalMetadata(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
