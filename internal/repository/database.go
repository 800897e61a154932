package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/parthsharma2/linksight/internal/config"
	"go.uber.org/zap"
)

// NewPostgresConnection creates a new PostgreSQL connection pool.
func NewPostgresConnection(cfg config.DatabaseConfig, logger *zap.Logger) (*sqlx.DB, error) {
	logger.Info("connecting to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
	)

	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to PostgreSQL successfully")
	return db, nil
}

// RunMigrations applies the schema. Statements are idempotent so startup can
// always run them.
func RunMigrations(db *sqlx.DB, logger *zap.Logger) error {
	logger.Info("running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS links (
			id BIGSERIAL PRIMARY KEY,
			short_code VARCHAR(50) NOT NULL UNIQUE,
			original_url TEXT NOT NULL,
			owner_id VARCHAR(255) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT true,
			expires_at TIMESTAMP WITH TIME ZONE,
			click_count BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_links_short_code ON links(short_code) WHERE is_active = true`,

		`CREATE INDEX IF NOT EXISTS idx_links_owner_id ON links(owner_id)`,

		`CREATE INDEX IF NOT EXISTS idx_links_expires_at ON links(expires_at) WHERE expires_at IS NOT NULL`,

		`CREATE INDEX IF NOT EXISTS idx_links_created_at ON links(created_at DESC)`,

		// Click records cascade with their link; a click always references a
		// link that existed at the time of the hit.
		`CREATE TABLE IF NOT EXISTS click_events (
			id BIGSERIAL PRIMARY KEY,
			short_code VARCHAR(50) NOT NULL REFERENCES links(short_code) ON DELETE CASCADE,
			ip_address VARCHAR(45),
			referrer TEXT,
			country VARCHAR(100),
			city VARCHAR(100),
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			device VARCHAR(20),
			browser VARCHAR(100),
			os VARCHAR(100),
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_click_events_short_code ON click_events(short_code)`,

		`CREATE INDEX IF NOT EXISTS idx_click_events_created_at ON click_events(created_at DESC)`,

		`CREATE INDEX IF NOT EXISTS idx_click_events_short_code_created ON click_events(short_code, created_at DESC)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}

	logger.Info("database migrations completed successfully")
	return nil
}

// Close closes the database connection.
func Close(db *sqlx.DB, logger *zap.Logger) {
	if db != nil {
		logger.Info("closing database connection")
		db.Close()
	}
}
