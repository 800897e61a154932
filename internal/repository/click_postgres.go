package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/parthsharma2/linksight/internal/domain"
	"github.com/parthsharma2/linksight/internal/pkg/metrics"
)

type PostgresClickRepository struct {
	db *sqlx.DB
	m  *metrics.Metrics
}

func NewPostgresClickRepository(db *sqlx.DB, m *metrics.Metrics) *PostgresClickRepository {
	return &PostgresClickRepository{db: db, m: m}
}

func (r *PostgresClickRepository) observe(op string, start time.Time, err error) {
	if r.m == nil {
		return
	}
	r.m.DBQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		r.m.DBErrors.WithLabelValues(op).Inc()
	}
}

func (r *PostgresClickRepository) Insert(ctx context.Context, click *domain.Click) error {
	query := `
		INSERT INTO click_events (short_code, ip_address, referrer, country, city,
		                          latitude, longitude, device, browser, os, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	start := time.Now()
	err := r.db.QueryRowContext(
		ctx,
		query,
		click.ShortID,
		click.IPAddress,
		click.Referrer,
		click.Location.Country,
		click.Location.City,
		click.Location.Latitude,
		click.Location.Longitude,
		click.Device.Type,
		click.Device.Browser,
		click.Device.OS,
		click.Timestamp,
	).Scan(&click.ID)
	r.observe("insert_click", start, err)
	if err != nil {
		return fmt.Errorf("insert click: %w", err)
	}
	return nil
}

func (r *PostgresClickRepository) CountByLink(ctx context.Context, shortID string) (int64, error) {
	var count int64
	start := time.Now()
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM click_events WHERE short_code = $1`, shortID)
	r.observe("count_clicks", start, err)
	if err != nil {
		return 0, fmt.Errorf("count clicks: %w", err)
	}
	return count, nil
}

func (r *PostgresClickRepository) LastClicked(ctx context.Context, shortID string) (*time.Time, error) {
	var last time.Time
	start := time.Now()
	err := r.db.GetContext(ctx, &last,
		`SELECT created_at FROM click_events WHERE short_code = $1 ORDER BY created_at DESC LIMIT 1`,
		shortID)
	r.observe("last_clicked", start, err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last clicked: %w", err)
	}
	return &last, nil
}

// scopeClause builds the WHERE fragment for a ClickScope. Owner scoping joins
// through links since click rows only carry the short code.
func scopeClause(scope domain.ClickScope, args []interface{}) (string, []interface{}) {
	where := ""
	if scope.ShortID != "" {
		args = append(args, scope.ShortID)
		where += fmt.Sprintf(" AND c.short_code = $%d", len(args))
	}
	if scope.OwnerID != "" {
		args = append(args, scope.OwnerID)
		where += fmt.Sprintf(" AND l.owner_id = $%d", len(args))
	}
	return where, args
}

func (r *PostgresClickRepository) DailySeries(ctx context.Context, scope domain.ClickScope, since time.Time) ([]domain.DayCount, error) {
	args := []interface{}{since.UTC()}
	where, args := scopeClause(scope, args)

	// buckets by UTC calendar date; days with zero clicks are not synthesized
	query := fmt.Sprintf(`
		SELECT to_char(date_trunc('day', c.created_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day,
		       COUNT(*) AS count
		FROM click_events c
		JOIN links l ON l.short_code = c.short_code
		WHERE c.created_at >= $1%s
		GROUP BY day
		ORDER BY day ASC`, where)

	series := []domain.DayCount{}
	start := time.Now()
	err := r.db.SelectContext(ctx, &series, query, args...)
	r.observe("daily_series", start, err)
	if err != nil {
		return nil, fmt.Errorf("daily series: %w", err)
	}
	return series, nil
}

var dimensionColumns = map[domain.ClickDimension]string{
	domain.DimensionDevice:  "c.device",
	domain.DimensionBrowser: "c.browser",
	domain.DimensionCountry: "c.country",
}

func (r *PostgresClickRepository) GroupBy(ctx context.Context, dimension domain.ClickDimension, scope domain.ClickScope) ([]domain.BucketCount, error) {
	column, ok := dimensionColumns[dimension]
	if !ok {
		return nil, fmt.Errorf("unknown click dimension %q", dimension)
	}

	args := []interface{}{}
	where, args := scopeClause(scope, args)
	if where != "" {
		where = "WHERE " + where[len(" AND "):]
	}

	// MIN(c.id) makes the count-descending order deterministic: ties break by
	// first occurrence
	query := fmt.Sprintf(`
		SELECT COALESCE(NULLIF(%s, ''), 'Unknown') AS name,
		       COUNT(*) AS count
		FROM click_events c
		JOIN links l ON l.short_code = c.short_code
		%s
		GROUP BY name
		ORDER BY count DESC, MIN(c.id) ASC`, column, where)

	buckets := []domain.BucketCount{}
	start := time.Now()
	err := r.db.SelectContext(ctx, &buckets, query, args...)
	r.observe("group_by", start, err)
	if err != nil {
		return nil, fmt.Errorf("group by %s: %w", dimension, err)
	}
	return buckets, nil
}

func (r *PostgresClickRepository) PlatformStats(ctx context.Context, now time.Time) (*domain.PlatformStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM click_events) AS total_clicks,
			(SELECT COUNT(*) FROM links) AS total_links,
			(SELECT COUNT(*) FROM links
			 WHERE is_active = true AND (expires_at IS NULL OR expires_at > $1)) AS active_links,
			(SELECT COUNT(DISTINCT owner_id) FROM links) AS total_users,
			(SELECT COUNT(*) FROM click_events
			 WHERE created_at >= $2) AS clicks_today`

	var stats struct {
		TotalClicks int64 `db:"total_clicks"`
		TotalLinks  int64 `db:"total_links"`
		ActiveLinks int64 `db:"active_links"`
		TotalUsers  int64 `db:"total_users"`
		ClicksToday int64 `db:"clicks_today"`
	}
	// the "today" boundary is UTC midnight regardless of the session TZ,
	// so both comparisons stay timestamptz against timestamptz
	dayStart := now.UTC().Truncate(24 * time.Hour)

	start := time.Now()
	err := r.db.GetContext(ctx, &stats, query, now.UTC(), dayStart)
	r.observe("platform_stats", start, err)
	if err != nil {
		return nil, fmt.Errorf("platform stats: %w", err)
	}

	return &domain.PlatformStats{
		TotalClicks: stats.TotalClicks,
		TotalLinks:  stats.TotalLinks,
		ActiveLinks: stats.ActiveLinks,
		TotalUsers:  stats.TotalUsers,
		ClicksToday: stats.ClicksToday,
	}, nil
}
