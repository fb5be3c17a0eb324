package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/cart/models"
)

// PostgresStore keeps the snapshot as a single JSONB row keyed by the cart
// namespace. The whole record is replaced on every save.
type PostgresStore struct {
	pool   *pgxpool.Pool
	key    string
	logger *slog.Logger
}

func NewPostgres(pool *pgxpool.Pool, key string, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, key: key, logger: logger}
}

// InitSchema creates the snapshot table if it does not exist yet.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS cart_snapshots (
			cart_key   TEXT PRIMARY KEY,
			lines      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("init cart_snapshots schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]models.Line, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT lines FROM cart_snapshots WHERE cart_key = $1`, s.key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart snapshot: %w", err)
	}
	return decodeLines(data, s.logger), nil
}

func (s *PostgresStore) Save(ctx context.Context, lines []models.Line) error {
	data, err := encodeLines(lines)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO cart_snapshots (cart_key, lines, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (cart_key) DO UPDATE
		SET lines = EXCLUDED.lines, updated_at = now()`, s.key, data)
	if err != nil {
		return fmt.Errorf("save cart snapshot: %w", err)
	}
	return nil
}
