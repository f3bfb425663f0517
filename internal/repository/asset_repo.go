package repository

import (
	"context"
	"fmt"

	"github.com/epeers/allocator/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AssetRepository handles the asset metadata cache
type AssetRepository struct {
	pool *pgxpool.Pool
}

// NewAssetRepository creates a new AssetRepository
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepository {
	return &AssetRepository{pool: pool}
}

// Upsert inserts or refreshes an asset keyed by symbol. Metadata fields that
// are nil keep their stored value. ID and the stored fields are written back
// into a.
func (r *AssetRepository) Upsert(ctx context.Context, tx pgx.Tx, a *models.Asset) error {
	query := `
		INSERT INTO asset (id, symbol, name, exchange, currency, created, updated)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (symbol) DO UPDATE SET
			name     = COALESCE(EXCLUDED.name, asset.name),
			exchange = COALESCE(EXCLUDED.exchange, asset.exchange),
			currency = COALESCE(EXCLUDED.currency, asset.currency),
			updated  = NOW()
		RETURNING id, name, exchange, currency
	`
	err := tx.QueryRow(ctx, query, uuid.NewString(), a.Symbol, a.Name, a.Exchange, a.Currency).
		Scan(&a.ID, &a.Name, &a.Exchange, &a.Currency)
	if err != nil {
		return fmt.Errorf("failed to upsert asset %s: %w", a.Symbol, err)
	}
	return nil
}
