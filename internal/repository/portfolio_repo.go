package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/epeers/allocator/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrItemNotFound      = errors.New("portfolio item not found")
)

// PortfolioRepository handles database operations for portfolios
type PortfolioRepository struct {
	pool *pgxpool.Pool
}

// NewPortfolioRepository creates a new PortfolioRepository
func NewPortfolioRepository(pool *pgxpool.Pool) *PortfolioRepository {
	return &PortfolioRepository{pool: pool}
}

// Create creates a new portfolio
func (r *PortfolioRepository) Create(ctx context.Context, tx pgx.Tx, p *models.Portfolio) error {
	query := `
		INSERT INTO portfolio (id, owner, name, initial_invest_amount, created)
		VALUES ($1, $2, $3, $4, clock_timestamp())
		RETURNING created
	`
	if err := checkFinite(map[string]float64{"initial_invest_amount": p.InitialInvestAmount}); err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}

	id := uuid.NewString()
	err := tx.QueryRow(ctx, query, id, p.OwnerID, p.Name, toNumeric(p.InitialInvestAmount)).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	p.ID = id
	return nil
}

// CreateItem creates a line item. AssetID, PortfolioID and Position must be set.
func (r *PortfolioRepository) CreateItem(ctx context.Context, tx pgx.Tx, item *models.PortfolioItem) error {
	query := `
		INSERT INTO portfolio_item (id, portfolio_id, asset_id, position, target_weight, tolerance,
			entry_price, initial_quantity, current_quantity, created, updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`
	numbers := map[string]float64{
		"target_weight":    item.TargetWeight,
		"entry_price":      item.EntryPrice,
		"initial_quantity": item.InitialQuantity,
		"current_quantity": item.CurrentQuantity,
	}
	if item.Tolerance != nil {
		numbers["tolerance"] = *item.Tolerance
	}
	if err := checkFinite(numbers); err != nil {
		return fmt.Errorf("failed to create portfolio item: %w", err)
	}

	id := uuid.NewString()
	_, err := tx.Exec(ctx, query, id, item.PortfolioID, item.AssetID, item.Position,
		toNumeric(item.TargetWeight), toNullNumeric(item.Tolerance), toNumeric(item.EntryPrice),
		toNumeric(item.InitialQuantity), toNumeric(item.CurrentQuantity))
	if err != nil {
		return fmt.Errorf("failed to create portfolio item: %w", err)
	}
	item.ID = id
	return nil
}

// GetByIDForOwner retrieves a portfolio by ID. Portfolios of other owners are
// reported as not found.
func (r *PortfolioRepository) GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.Portfolio, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrPortfolioNotFound
	}

	query := `
		SELECT id, owner, name, initial_invest_amount, created
		FROM portfolio
		WHERE id = $1 AND owner = $2
	`
	p := &models.Portfolio{}
	var amount decimal.Decimal
	err := r.pool.QueryRow(ctx, query, id, ownerID).Scan(&p.ID, &p.OwnerID, &p.Name, &amount, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPortfolioNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	p.InitialInvestAmount = fromNumeric(amount)
	return p, nil
}

// GetByOwner retrieves all portfolios of a user, newest first
func (r *PortfolioRepository) GetByOwner(ctx context.Context, ownerID string) ([]models.Portfolio, error) {
	query := `
		SELECT id, owner, name, initial_invest_amount, created
		FROM portfolio
		WHERE owner = $1
		ORDER BY created DESC
	`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []models.Portfolio
	for rows.Next() {
		var p models.Portfolio
		var amount decimal.Decimal
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &amount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		p.InitialInvestAmount = fromNumeric(amount)
		portfolios = append(portfolios, p)
	}
	return portfolios, rows.Err()
}

// GetItems retrieves the line items of a portfolio with their asset, in
// creation order
func (r *PortfolioRepository) GetItems(ctx context.Context, portfolioID string) ([]models.PortfolioItem, error) {
	query := `
		SELECT i.id, i.portfolio_id, i.position, i.target_weight, i.tolerance, i.entry_price,
			i.initial_quantity, i.current_quantity,
			a.id, a.symbol, a.name, a.exchange, a.currency
		FROM portfolio_item i
		JOIN asset a ON a.id = i.asset_id
		WHERE i.portfolio_id = $1
		ORDER BY i.position
	`
	rows, err := r.pool.Query(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio items: %w", err)
	}
	defer rows.Close()

	items := []models.PortfolioItem{}
	for rows.Next() {
		var (
			it   models.PortfolioItem
			a    models.Asset
			nums itemNumerics
		)
		if err := rows.Scan(&it.ID, &it.PortfolioID, &it.Position, &nums.target, &nums.tolerance,
			&nums.entry, &nums.initial, &nums.current,
			&a.ID, &a.Symbol, &a.Name, &a.Exchange, &a.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio item: %w", err)
		}
		nums.apply(&it)
		it.AssetID = a.ID
		it.Asset = &a
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateItem overwrites the quantity and/or tolerance of an item that belongs
// to portfolioID. Last write wins.
func (r *PortfolioRepository) UpdateItem(ctx context.Context, portfolioID, itemID string, upd models.ItemUpdate) (*models.PortfolioItem, error) {
	if _, err := uuid.Parse(itemID); err != nil {
		return nil, ErrItemNotFound
	}

	numbers := map[string]float64{}
	if upd.CurrentQuantity != nil {
		numbers["current_quantity"] = *upd.CurrentQuantity
	}
	if upd.Tolerance.Value != nil {
		numbers["tolerance"] = *upd.Tolerance.Value
	}
	if err := checkFinite(numbers); err != nil {
		return nil, fmt.Errorf("failed to update portfolio item: %w", err)
	}

	var quantity *decimal.Decimal
	if upd.CurrentQuantity != nil {
		q := toNumeric(*upd.CurrentQuantity)
		quantity = &q
	}

	query := `
		UPDATE portfolio_item
		SET current_quantity = COALESCE($3, current_quantity),
			tolerance = CASE WHEN $4 THEN $5 ELSE tolerance END,
			updated = NOW()
		WHERE id = $1 AND portfolio_id = $2
		RETURNING id, portfolio_id, position, target_weight, tolerance, entry_price,
			initial_quantity, current_quantity
	`
	var (
		it   models.PortfolioItem
		nums itemNumerics
	)
	err := r.pool.QueryRow(ctx, query, itemID, portfolioID, quantity,
		upd.Tolerance.Set, toNullNumeric(upd.Tolerance.Value)).
		Scan(&it.ID, &it.PortfolioID, &it.Position, &nums.target, &nums.tolerance,
			&nums.entry, &nums.initial, &nums.current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update portfolio item: %w", err)
	}
	nums.apply(&it)
	return &it, nil
}

// BeginTx starts a new transaction
func (r *PortfolioRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// itemNumerics collects the NUMERIC columns of a portfolio_item row
type itemNumerics struct {
	target, entry, initial, current decimal.Decimal
	tolerance                       decimal.NullDecimal
}

func (n itemNumerics) apply(it *models.PortfolioItem) {
	it.TargetWeight = fromNumeric(n.target)
	it.Tolerance = fromNullNumeric(n.tolerance)
	it.EntryPrice = fromNumeric(n.entry)
	it.InitialQuantity = fromNumeric(n.initial)
	it.CurrentQuantity = fromNumeric(n.current)
}
