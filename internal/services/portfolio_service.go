package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/epeers/allocator/internal/drift"
	"github.com/epeers/allocator/internal/models"
	"github.com/epeers/allocator/internal/repository"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

var (
	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrItemNotFound      = errors.New("portfolio item not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNoFields          = errors.New("no fields to update")
)

// PortfolioStore persists portfolios and their line items
type PortfolioStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, p *models.Portfolio) error
	CreateItem(ctx context.Context, tx pgx.Tx, item *models.PortfolioItem) error
	GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.Portfolio, error)
	GetByOwner(ctx context.Context, ownerID string) ([]models.Portfolio, error)
	GetItems(ctx context.Context, portfolioID string) ([]models.PortfolioItem, error)
	UpdateItem(ctx context.Context, portfolioID, itemID string, upd models.ItemUpdate) (*models.PortfolioItem, error)
}

// AssetStore persists asset metadata
type AssetStore interface {
	Upsert(ctx context.Context, tx pgx.Tx, a *models.Asset) error
}

// PortfolioService handles portfolio business logic
type PortfolioService struct {
	portfolioRepo PortfolioStore
	assetRepo     AssetStore
	quotes        *QuoteService
}

// NewPortfolioService creates a new PortfolioService
func NewPortfolioService(portfolioRepo PortfolioStore, assetRepo AssetStore, quotes *QuoteService) *PortfolioService {
	return &PortfolioService{
		portfolioRepo: portfolioRepo,
		assetRepo:     assetRepo,
		quotes:        quotes,
	}
}

// ListPortfolios returns the portfolios of a user, newest first
func (s *PortfolioService) ListPortfolios(ctx context.Context, ownerID string) ([]models.Portfolio, error) {
	portfolios, err := s.portfolioRepo.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	if portfolios == nil {
		portfolios = []models.Portfolio{}
	}
	return portfolios, nil
}

// CreatePortfolio prices every requested symbol, sizes the initial positions
// and stores the portfolio with its items. All quotes are fetched before the
// transaction opens; any failed quote aborts without writing anything.
func (s *PortfolioService) CreatePortfolio(ctx context.Context, ownerID string, req *models.CreatePortfolioRequest) (*models.PortfolioWithItems, error) {
	defer TrackTime("CreatePortfolio", time.Now())

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name must not be blank", ErrInvalidInput)
	}

	symbols := make([]string, len(req.Items))
	for i, it := range req.Items {
		symbols[i] = strings.TrimSpace(it.Symbol)
		if symbols[i] == "" {
			return nil, fmt.Errorf("%w: items[%d].symbol must not be blank", ErrInvalidInput, i)
		}
	}

	quotes, err := s.quotes.QuoteMany(ctx, symbols)
	if err != nil {
		return nil, err
	}

	sizings := make([]drift.Sizing, len(req.Items))
	for i, it := range req.Items {
		sizings[i] = drift.Size(req.InitialInvestAmount, it.TargetWeight, quotes[i].Price)
		if !isFinite(sizings[i].Invest) || !isFinite(sizings[i].Quantity) {
			return nil, fmt.Errorf("%w: items[%d] cannot be sized: initialInvestAmount %g at price %g is out of range",
				ErrInvalidInput, i, req.InitialInvestAmount, quotes[i].Price)
		}
	}

	tx, err := s.portfolioRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	portfolio := &models.Portfolio{
		OwnerID:             ownerID,
		Name:                name,
		InitialInvestAmount: req.InitialInvestAmount,
	}
	if err := s.portfolioRepo.Create(ctx, tx, portfolio); err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}

	items := make([]models.PortfolioItem, 0, len(req.Items))
	for i, it := range req.Items {
		q := quotes[i]

		asset := models.AssetFromQuote(q)
		if err := s.assetRepo.Upsert(ctx, tx, &asset); err != nil {
			return nil, fmt.Errorf("failed to upsert asset %s: %w", q.Symbol, err)
		}

		sizing := sizings[i]
		item := models.PortfolioItem{
			PortfolioID:     portfolio.ID,
			AssetID:         asset.ID,
			Position:        i,
			TargetWeight:    it.TargetWeight,
			Tolerance:       it.Tolerance,
			EntryPrice:      sizing.EntryPrice,
			InitialQuantity: sizing.Quantity,
			CurrentQuantity: sizing.Quantity,
			Asset:           &asset,
		}
		if err := s.portfolioRepo.CreateItem(ctx, tx, &item); err != nil {
			return nil, fmt.Errorf("failed to create item for %s: %w", q.Symbol, err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Infof("created portfolio %s with %d items for user %s", portfolio.ID, len(items), ownerID)
	return &models.PortfolioWithItems{
		Portfolio: *portfolio,
		Items:     items,
	}, nil
}

// GetPortfolio retrieves a portfolio of the owner with its items
func (s *PortfolioService) GetPortfolio(ctx context.Context, id, ownerID string) (*models.PortfolioWithItems, error) {
	defer TrackTime("GetPortfolio", time.Now())

	portfolio, err := s.getOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	items, err := s.portfolioRepo.GetItems(ctx, portfolio.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}

	return &models.PortfolioWithItems{
		Portfolio: *portfolio,
		Items:     items,
	}, nil
}

// UpdateItem overwrites the current quantity and/or tolerance of one item.
// The item must belong to a portfolio of the owner.
func (s *PortfolioService) UpdateItem(ctx context.Context, portfolioID, itemID, ownerID string, upd models.ItemUpdate) (*models.PortfolioItem, error) {
	if upd.Empty() {
		return nil, ErrNoFields
	}
	if upd.CurrentQuantity != nil && (*upd.CurrentQuantity < 0 || !isFinite(*upd.CurrentQuantity)) {
		return nil, fmt.Errorf("%w: currentQuantity must be a non-negative number", ErrInvalidInput)
	}
	if v := upd.Tolerance.Value; upd.Tolerance.Set && v != nil && (*v <= 0 || !isFinite(*v)) {
		return nil, fmt.Errorf("%w: tolerance must be positive or null", ErrInvalidInput)
	}

	if _, err := s.getOwned(ctx, portfolioID, ownerID); err != nil {
		return nil, err
	}

	item, err := s.portfolioRepo.UpdateItem(ctx, portfolioID, itemID, upd)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return item, nil
}

// RefreshPortfolio prices every item of the portfolio with a live quote and
// returns the drift report. Nothing is persisted.
func (s *PortfolioService) RefreshPortfolio(ctx context.Context, id, ownerID string) (*drift.Report, error) {
	defer TrackTime("RefreshPortfolio", time.Now())

	portfolio, err := s.getOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	items, err := s.portfolioRepo.GetItems(ctx, portfolio.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}

	symbols := make([]string, len(items))
	for i, it := range items {
		symbols[i] = it.Asset.Symbol
	}
	quotes, err := s.quotes.QuoteMany(ctx, symbols)
	if err != nil {
		return nil, err
	}

	priced := make([]drift.Item, len(items))
	targetSum := 0.0
	for i, it := range items {
		q := quotes[i]
		priced[i] = drift.Item{
			ID:              it.ID,
			Symbol:          q.Symbol,
			Name:            displayName(it.Asset, q),
			TargetWeight:    it.TargetWeight,
			Tolerance:       it.Tolerance,
			CurrentQuantity: it.CurrentQuantity,
			Price:           q.Price,
		}
		targetSum += it.TargetWeight
	}

	report := drift.Calculate(priced)
	if !reportFinite(report) {
		return nil, fmt.Errorf("%w: portfolio value is out of range, check the current quantities", ErrInvalidInput)
	}

	WarnAllocation(ctx, targetSum, report)

	return &report, nil
}

func (s *PortfolioService) getOwned(ctx context.Context, id, ownerID string) (*models.Portfolio, error) {
	portfolio, err := s.portfolioRepo.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrPortfolioNotFound) {
			return nil, ErrPortfolioNotFound
		}
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return portfolio, nil
}

// displayName prefers the stored asset name, then the quote name, then the symbol
func displayName(a *models.Asset, q models.Quote) string {
	if a != nil && a.Name != nil && *a.Name != "" {
		return *a.Name
	}
	if q.Name != "" {
		return q.Name
	}
	return q.Symbol
}

// reportFinite reports whether every number in r can be encoded as JSON.
// Stored quantities are finite but their products with prices need not be.
func reportFinite(r drift.Report) bool {
	if !isFinite(r.TotalValue) {
		return false
	}
	for _, row := range r.Items {
		if !isFinite(row.Value) || !isFinite(row.CurrentWeight) || !isFinite(row.Diff) {
			return false
		}
	}
	return true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
