package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/parthsharma2/linksight/internal/domain"
	"github.com/parthsharma2/linksight/internal/pkg/metrics"
)

const uniqueViolation = "23505"

type PostgresLinkRepository struct {
	db *sqlx.DB
	m  *metrics.Metrics
}

func NewPostgresLinkRepository(db *sqlx.DB, m *metrics.Metrics) *PostgresLinkRepository {
	return &PostgresLinkRepository{db: db, m: m}
}

func (r *PostgresLinkRepository) observe(op string, start time.Time, err error) {
	if r.m == nil {
		return
	}
	r.m.DBQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		r.m.DBErrors.WithLabelValues(op).Inc()
	}
}

// Create inserts the record; the unique constraint on short_code is the final
// arbiter between two concurrent allocations of the same code.
func (r *PostgresLinkRepository) Create(ctx context.Context, link *domain.ShortLink) error {
	query := `
		INSERT INTO links (short_code, original_url, owner_id, is_active, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now

	start := time.Now()
	err := r.db.QueryRowContext(
		ctx,
		query,
		link.ShortID,
		link.OriginalURL,
		link.OwnerID,
		link.IsActive,
		link.ExpiresAt,
		link.CreatedAt,
		link.UpdatedAt,
	).Scan(&link.ID)
	r.observe("create_link", start, err)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrAliasTaken
		}
		return fmt.Errorf("insert link: %w", err)
	}

	return nil
}

func (r *PostgresLinkRepository) Get(ctx context.Context, shortID string) (*domain.ShortLink, error) {
	query := `
		SELECT id, short_code, original_url, owner_id, is_active, expires_at,
		       click_count, created_at, updated_at
		FROM links
		WHERE short_code = $1`

	var link domain.ShortLink
	start := time.Now()
	err := r.db.GetContext(ctx, &link, query, shortID)
	r.observe("get_link", start, err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get link: %w", err)
	}

	return &link, nil
}

// Update applies the patch after verifying ownership inside a transaction.
// A mismatched owner yields ErrForbidden, never ErrNotFound, so logs can
// distinguish "exists but not yours" from "doesn't exist".
func (r *PostgresLinkRepository) Update(ctx context.Context, shortID, ownerID string, patch domain.LinkPatch) (*domain.ShortLink, error) {
	start := time.Now()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.observe("update_link", start, err)
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	var link domain.ShortLink
	err = tx.GetContext(ctx, &link, `
		SELECT id, short_code, original_url, owner_id, is_active, expires_at,
		       click_count, created_at, updated_at
		FROM links WHERE short_code = $1 FOR UPDATE`, shortID)
	if err != nil {
		r.observe("update_link", start, err)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("lock link: %w", err)
	}
	if link.OwnerID != ownerID {
		r.observe("update_link", start, nil)
		return nil, domain.ErrForbidden
	}

	sets := []string{"updated_at = $1"}
	args := []interface{}{time.Now().UTC()}
	idx := 2

	if patch.OriginalURL != nil {
		sets = append(sets, fmt.Sprintf("original_url = $%d", idx))
		args = append(args, *patch.OriginalURL)
		idx++
	}
	if patch.IsActive != nil {
		sets = append(sets, fmt.Sprintf("is_active = $%d", idx))
		args = append(args, *patch.IsActive)
		idx++
	}
	if patch.ClearExpiry {
		sets = append(sets, "expires_at = NULL")
	} else if patch.ExpiresAt != nil {
		sets = append(sets, fmt.Sprintf("expires_at = $%d", idx))
		args = append(args, *patch.ExpiresAt)
		idx++
	}

	args = append(args, shortID)
	query := fmt.Sprintf(`
		UPDATE links SET %s WHERE short_code = $%d
		RETURNING id, short_code, original_url, owner_id, is_active, expires_at,
		          click_count, created_at, updated_at`,
		strings.Join(sets, ", "), idx)

	err = tx.GetContext(ctx, &link, query, args...)
	if err != nil {
		r.observe("update_link", start, err)
		return nil, fmt.Errorf("update link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		r.observe("update_link", start, err)
		return nil, fmt.Errorf("commit update: %w", err)
	}
	r.observe("update_link", start, nil)

	return &link, nil
}

// Delete removes the link; click records cascade at the schema level.
func (r *PostgresLinkRepository) Delete(ctx context.Context, shortID, ownerID string) error {
	start := time.Now()

	var recordOwner string
	err := r.db.GetContext(ctx, &recordOwner, `SELECT owner_id FROM links WHERE short_code = $1`, shortID)
	if err != nil {
		r.observe("delete_link", start, err)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get link owner: %w", err)
	}
	if recordOwner != ownerID {
		r.observe("delete_link", start, nil)
		return domain.ErrForbidden
	}

	_, err = r.db.ExecContext(ctx, `DELETE FROM links WHERE short_code = $1 AND owner_id = $2`, shortID, ownerID)
	r.observe("delete_link", start, err)
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	return nil
}

// IncrementClickCount is a single atomic increment at the storage layer so it
// stays correct under concurrent redirects.
func (r *PostgresLinkRepository) IncrementClickCount(ctx context.Context, shortID string, delta int64) error {
	start := time.Now()
	_, err := r.db.ExecContext(ctx,
		`UPDATE links SET click_count = click_count + $2 WHERE short_code = $1`,
		shortID, delta)
	r.observe("increment_click_count", start, err)
	if err != nil {
		return fmt.Errorf("increment click count: %w", err)
	}
	return nil
}

func (r *PostgresLinkRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.ShortLink, int64, error) {
	start := time.Now()

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM links WHERE owner_id = $1`, ownerID); err != nil {
		r.observe("list_links", start, err)
		return nil, 0, fmt.Errorf("count links: %w", err)
	}

	links := []domain.ShortLink{}
	err := r.db.SelectContext(ctx, &links, `
		SELECT id, short_code, original_url, owner_id, is_active, expires_at,
		       click_count, created_at, updated_at
		FROM links
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	r.observe("list_links", start, err)
	if err != nil {
		return nil, 0, fmt.Errorf("list links: %w", err)
	}

	return links, total, nil
}
