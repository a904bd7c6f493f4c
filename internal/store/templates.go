package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Template is the subset of the platform's templates table this service
// touches. Link columns are empty strings when NULL in the database.
type Template struct {
	ID          int64
	Name        string
	DownloadURL string
	ImageURL    string
	UpdatedAt   time.Time
}

// TemplateRepo reads and updates template file links.
type TemplateRepo struct {
	pool *pgxpool.Pool
}

func NewTemplateRepo(pool *pgxpool.Pool) *TemplateRepo {
	return &TemplateRepo{pool: pool}
}

// ListWithFileLinks returns every template carrying at least one file link.
func (r *TemplateRepo) ListWithFileLinks(ctx context.Context) ([]Template, error) {
	query := `
		SELECT id, name, download_url, image_url, updated_at
		FROM templates
		WHERE download_url IS NOT NULL OR image_url IS NOT NULL
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var (
			t               Template
			name, down, img *string
		)
		if err := rows.Scan(&t.ID, &name, &down, &img, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		if name != nil {
			t.Name = *name
		}
		if down != nil {
			t.DownloadURL = *down
		}
		if img != nil {
			t.ImageURL = *img
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// UpdateLinks persists refreshed links for one template.
// Empty strings are stored as NULL.
func (r *TemplateRepo) UpdateLinks(ctx context.Context, id int64, downloadURL, imageURL string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE templates
		SET download_url = $2, image_url = $3, updated_at = NOW()
		WHERE id = $1
	`, id, nullString(downloadURL), nullString(imageURL))
	if err != nil {
		return fmt.Errorf("update template links: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// nullString returns nil for an empty string.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
