package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/epeers/allocator/internal/models"
	"github.com/epeers/allocator/internal/services"
	"github.com/epeers/allocator/internal/testutil"
	"github.com/epeers/allocator/internal/yahoo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	owner    = "owner-1"
	intruder = "owner-2"
)

func newPortfolioService(t *testing.T) (*services.PortfolioService, *testutil.MockStore, *testutil.MockQuoteProvider) {
	t.Helper()
	store := testutil.NewMockStore()
	provider := testutil.NewMockQuoteProvider()
	svc := services.NewPortfolioService(store.Portfolios(), store, services.NewQuoteService(provider, nil))
	return svc, store, provider
}

func ptr(f float64) *float64 { return &f }

func createRequest(amount float64, items ...models.CreateItemRequest) *models.CreatePortfolioRequest {
	return &models.CreatePortfolioRequest{Name: "Core", InitialInvestAmount: amount, Items: items}
}

func TestCreatePortfolio_SizesPositions(t *testing.T) {
	svc, store, provider := newPortfolioService(t)
	provider.SetQuote("VWCE.DE", yahoo.ParsedQuote{Name: "Vanguard FTSE All-World", Exchange: "XETRA", Currency: "EUR", Price: 100})
	provider.SetPrice("IS3N.DE", 50)

	p, err := svc.CreatePortfolio(context.Background(), owner, createRequest(10000,
		models.CreateItemRequest{Symbol: "VWCE.DE", TargetWeight: 60, Tolerance: ptr(5)},
		models.CreateItemRequest{Symbol: " IS3N.DE ", TargetWeight: 40},
	))
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Core", p.Name)
	assert.Equal(t, 10000.0, p.InitialInvestAmount)
	require.Len(t, p.Items, 2)

	vwce := p.Items[0]
	assert.Equal(t, 60.0, vwce.TargetWeight)
	assert.Equal(t, 100.0, vwce.EntryPrice)
	assert.InDelta(t, 60.0, vwce.InitialQuantity, 1e-9)
	assert.Equal(t, vwce.InitialQuantity, vwce.CurrentQuantity)
	require.NotNil(t, vwce.Tolerance)
	assert.Equal(t, 5.0, *vwce.Tolerance)

	is3n := p.Items[1]
	assert.Nil(t, is3n.Tolerance)
	assert.InDelta(t, 80.0, is3n.InitialQuantity, 1e-9)
	assert.Equal(t, "IS3N.DE", is3n.Asset.Symbol)

	txs := store.Txs()
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Committed)
	assert.Equal(t, 1, store.PortfolioCount())

	asset, ok := store.Asset("VWCE.DE")
	require.True(t, ok)
	require.NotNil(t, asset.Name)
	assert.Equal(t, "Vanguard FTSE All-World", *asset.Name)
	assert.Equal(t, "EUR", *asset.Currency)
}

func TestCreatePortfolio_ReusesAssets(t *testing.T) {
	svc, store, provider := newPortfolioService(t)
	provider.SetQuote("AAPL", yahoo.ParsedQuote{Name: "Apple Inc.", Price: 10})

	first, err := svc.CreatePortfolio(context.Background(), owner, createRequest(100,
		models.CreateItemRequest{Symbol: "AAPL", TargetWeight: 50},
		models.CreateItemRequest{Symbol: "AAPL", TargetWeight: 50},
	))
	require.NoError(t, err)
	assert.Equal(t, first.Items[0].AssetID, first.Items[1].AssetID)

	// a later quote without a name keeps the stored one
	provider.SetPrice("AAPL", 20)
	second, err := svc.CreatePortfolio(context.Background(), owner, createRequest(100,
		models.CreateItemRequest{Symbol: "AAPL", TargetWeight: 100},
	))
	require.NoError(t, err)
	assert.Equal(t, first.Items[0].AssetID, second.Items[0].AssetID)

	asset, _ := store.Asset("AAPL")
	require.NotNil(t, asset.Name)
	assert.Equal(t, "Apple Inc.", *asset.Name)
}

func TestCreatePortfolio_QuoteFailuresWriteNothing(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(p *testutil.MockQuoteProvider)
		wantErr error
	}{
		{"unknown symbol", func(p *testutil.MockQuoteProvider) {}, services.ErrSymbolNotFound},
		{"provider down", func(p *testutil.MockQuoteProvider) { p.SetQuoteError("BAD", yahoo.ErrUnavailable) }, services.ErrQuoteUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, provider := newPortfolioService(t)
			provider.SetPrice("GOOD", 10)
			tc.setup(provider)

			_, err := svc.CreatePortfolio(context.Background(), owner, createRequest(100,
				models.CreateItemRequest{Symbol: "GOOD", TargetWeight: 50},
				models.CreateItemRequest{Symbol: "BAD", TargetWeight: 50},
			))
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, store.Txs(), "no transaction may start before all prices are known")
			assert.Zero(t, store.PortfolioCount())
		})
	}
}

func TestCreatePortfolio_RollsBackOnWriteFailure(t *testing.T) {
	svc, store, provider := newPortfolioService(t)
	provider.SetPrice("A", 10)
	store.SetCreateItemError(errors.New("disk full"))

	_, err := svc.CreatePortfolio(context.Background(), owner, createRequest(100,
		models.CreateItemRequest{Symbol: "A", TargetWeight: 100},
	))
	require.Error(t, err)

	txs := store.Txs()
	require.Len(t, txs, 1)
	assert.True(t, txs[0].RolledBack)
	assert.False(t, txs[0].Committed)
	assert.Zero(t, store.PortfolioCount())
	_, ok := store.Asset("A")
	assert.False(t, ok)
}

func TestCreatePortfolio_CommitFailure(t *testing.T) {
	svc, store, provider := newPortfolioService(t)
	provider.SetPrice("A", 10)
	store.SetCommitError(errors.New("serialization failure"))

	_, err := svc.CreatePortfolio(context.Background(), owner, createRequest(100,
		models.CreateItemRequest{Symbol: "A", TargetWeight: 100},
	))
	require.Error(t, err)
	assert.Zero(t, store.PortfolioCount())
}

func TestCreatePortfolio_BlankInput(t *testing.T) {
	svc, _, provider := newPortfolioService(t)

	_, err := svc.CreatePortfolio(context.Background(), owner, createRequest(100,
		models.CreateItemRequest{Symbol: "   ", TargetWeight: 100},
	))
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	req := createRequest(100, models.CreateItemRequest{Symbol: "A", TargetWeight: 100})
	req.Name = "  "
	_, err = svc.CreatePortfolio(context.Background(), owner, req)
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	assert.Zero(t, provider.QuoteCalls())
}

func TestListPortfolios_NewestFirstAndScoped(t *testing.T) {
	svc, _, provider := newPortfolioService(t)
	provider.SetPrice("A", 10)

	for _, name := range []string{"first", "second"} {
		req := createRequest(100, models.CreateItemRequest{Symbol: "A", TargetWeight: 100})
		req.Name = name
		_, err := svc.CreatePortfolio(context.Background(), owner, req)
		require.NoError(t, err)
	}

	list, err := svc.ListPortfolios(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Name)
	assert.Equal(t, "first", list[1].Name)

	empty, err := svc.ListPortfolios(context.Background(), intruder)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestGetPortfolio(t *testing.T) {
	svc, _, provider := newPortfolioService(t)
	provider.SetPrice("A", 10)
	provider.SetPrice("B", 20)
	created, err := svc.CreatePortfolio(context.Background(), owner, createRequest(100,
		models.CreateItemRequest{Symbol: "B", TargetWeight: 30},
		models.CreateItemRequest{Symbol: "A", TargetWeight: 70},
	))
	require.NoError(t, err)

	got, err := svc.GetPortfolio(context.Background(), created.ID, owner)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "B", got.Items[0].Asset.Symbol)
	assert.Equal(t, "A", got.Items[1].Asset.Symbol)

	_, err = svc.GetPortfolio(context.Background(), created.ID, intruder)
	assert.ErrorIs(t, err, services.ErrPortfolioNotFound)

	_, err = svc.GetPortfolio(context.Background(), "missing", owner)
	assert.ErrorIs(t, err, services.ErrPortfolioNotFound)
}

func TestUpdateItem(t *testing.T) {
	svc, _, provider := newPortfolioService(t)
	provider.SetPrice("A", 10)
	created, err := svc.CreatePortfolio(context.Background(), owner, createRequest(100,
		models.CreateItemRequest{Symbol: "A", TargetWeight: 100, Tolerance: ptr(2)},
	))
	require.NoError(t, err)
	itemID := created.Items[0].ID

	item, err := svc.UpdateItem(context.Background(), created.ID, itemID, owner, models.ItemUpdate{CurrentQuantity: ptr(42)})
	require.NoError(t, err)
	assert.Equal(t, 42.0, item.CurrentQuantity)
	require.NotNil(t, item.Tolerance)
	assert.Equal(t, 2.0, *item.Tolerance)

	item, err = svc.UpdateItem(context.Background(), created.ID, itemID, owner,
		models.ItemUpdate{Tolerance: models.OptionalFloat{Set: true}})
	require.NoError(t, err)
	assert.Nil(t, item.Tolerance)
	assert.Equal(t, 42.0, item.CurrentQuantity)

	item, err = svc.UpdateItem(context.Background(), created.ID, itemID, owner,
		models.ItemUpdate{Tolerance: models.OptionalFloat{Set: true, Value: ptr(3.5)}})
	require.NoError(t, err)
	assert.Equal(t, 3.5, *item.Tolerance)
}

func TestUpdateItem_Errors(t *testing.T) {
	svc, _, provider := newPortfolioService(t)
	provider.SetPrice("A", 10)
	created, err := svc.CreatePortfolio(context.Background(), owner, createRequest(100,
		models.CreateItemRequest{Symbol: "A", TargetWeight: 100},
	))
	require.NoError(t, err)
	itemID := created.Items[0].ID
	qty := models.ItemUpdate{CurrentQuantity: ptr(1)}

	_, err = svc.UpdateItem(context.Background(), created.ID, itemID, owner, models.ItemUpdate{})
	assert.ErrorIs(t, err, services.ErrNoFields)

	_, err = svc.UpdateItem(context.Background(), created.ID, itemID, owner, models.ItemUpdate{CurrentQuantity: ptr(-1)})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	_, err = svc.UpdateItem(context.Background(), created.ID, itemID, owner,
		models.ItemUpdate{Tolerance: models.OptionalFloat{Set: true, Value: ptr(0)}})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	_, err = svc.UpdateItem(context.Background(), created.ID, itemID, intruder, qty)
	assert.ErrorIs(t, err, services.ErrPortfolioNotFound)

	_, err = svc.UpdateItem(context.Background(), created.ID, "other-item", owner, qty)
	assert.ErrorIs(t, err, services.ErrItemNotFound)

	// an item of another portfolio of the same owner is not reachable
	other, err := svc.CreatePortfolio(context.Background(), owner, createRequest(100,
		models.CreateItemRequest{Symbol: "A", TargetWeight: 100},
	))
	require.NoError(t, err)
	_, err = svc.UpdateItem(context.Background(), other.ID, itemID, owner, qty)
	assert.ErrorIs(t, err, services.ErrItemNotFound)
}

func TestRefreshPortfolio(t *testing.T) {
	svc, _, provider := newPortfolioService(t)
	provider.SetQuote("A", yahoo.ParsedQuote{Name: "Alpha Corp", Price: 100})
	provider.SetPrice("B", 100)
	created, err := svc.CreatePortfolio(context.Background(), owner, createRequest(10000,
		models.CreateItemRequest{Symbol: "A", TargetWeight: 50, Tolerance: ptr(5)},
		models.CreateItemRequest{Symbol: "B", TargetWeight: 50},
	))
	require.NoError(t, err)

	provider.SetPrice("A", 150)
	ctx, wc := services.NewWarningContext(context.Background())
	report, err := svc.RefreshPortfolio(ctx, created.ID, owner)
	require.NoError(t, err)
	assert.Empty(t, wc.GetWarnings())

	assert.InDelta(t, 12500, report.TotalValue, 1e-9)
	require.Len(t, report.Items, 2)

	a := report.Items[0]
	assert.Equal(t, created.Items[0].ID, a.ID)
	assert.Equal(t, "Alpha Corp", a.Name)
	assert.Equal(t, 150.0, a.LatestPrice)
	assert.InDelta(t, 7500, a.Value, 1e-9)
	assert.InDelta(t, 60, a.CurrentWeight, 1e-9)
	assert.InDelta(t, 10, a.Diff, 1e-9)
	require.NotNil(t, a.Bounds)
	assert.Equal(t, 45.0, a.Bounds.Lower)
	assert.Equal(t, 55.0, a.Bounds.Upper)
	assert.True(t, a.OutOfRange)

	b := report.Items[1]
	assert.Equal(t, "B", b.Name, "falls back to the symbol when no name is known")
	assert.InDelta(t, 40, b.CurrentWeight, 1e-9)
	assert.Nil(t, b.Tolerance)
	assert.Nil(t, b.Bounds)
	assert.False(t, b.OutOfRange)
}

func TestRefreshPortfolio_QuoteNameFallback(t *testing.T) {
	svc, _, provider := newPortfolioService(t)
	provider.SetPrice("B", 10)
	created, err := svc.CreatePortfolio(context.Background(), owner, createRequest(100,
		models.CreateItemRequest{Symbol: "B", TargetWeight: 100},
	))
	require.NoError(t, err)

	provider.SetQuote("B", yahoo.ParsedQuote{Name: "Beta Inc.", Price: 10})
	report, err := svc.RefreshPortfolio(context.Background(), created.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "Beta Inc.", report.Items[0].Name)
}

func TestRefreshPortfolio_Warnings(t *testing.T) {
	svc, store, provider := newPortfolioService(t)
	provider.SetPrice("A", 10)
	provider.SetPrice("B", 10)
	created, err := svc.CreatePortfolio(context.Background(), owner, createRequest(100,
		models.CreateItemRequest{Symbol: "A", TargetWeight: 60, Tolerance: ptr(1)},
		models.CreateItemRequest{Symbol: "B", TargetWeight: 30},
	))
	require.NoError(t, err)
	store.SetQuantity(created.ID, "A", 0)
	store.SetQuantity(created.ID, "B", 0)

	ctx, wc := services.NewWarningContext(context.Background())
	report, err := svc.RefreshPortfolio(ctx, created.ID, owner)
	require.NoError(t, err)

	assert.Zero(t, report.TotalValue)
	for _, row := range report.Items {
		assert.Zero(t, row.CurrentWeight)
	}

	codes := []models.WarningCode{}
	for _, w := range wc.GetWarnings() {
		codes = append(codes, w.Code)
	}
	assert.ElementsMatch(t, []models.WarningCode{models.WarnTargetWeightsNot100, models.WarnZeroTotalValue}, codes)
}

func TestRefreshPortfolio_Failures(t *testing.T) {
	svc, _, provider := newPortfolioService(t)
	provider.SetPrice("A", 10)
	created, err := svc.CreatePortfolio(context.Background(), owner, createRequest(100,
		models.CreateItemRequest{Symbol: "A", TargetWeight: 100},
	))
	require.NoError(t, err)

	_, err = svc.RefreshPortfolio(context.Background(), created.ID, intruder)
	assert.ErrorIs(t, err, services.ErrPortfolioNotFound)

	provider.SetQuoteError("A", yahoo.ErrUnavailable)
	_, err = svc.RefreshPortfolio(context.Background(), created.ID, owner)
	assert.ErrorIs(t, err, services.ErrQuoteUnavailable)
}

func TestCreatePortfolio_RejectsOverflowingSizing(t *testing.T) {
	svc, store, provider := newPortfolioService(t)
	provider.SetPrice("A", 1e-10)

	_, err := svc.CreatePortfolio(context.Background(), owner, createRequest(1e308,
		models.CreateItemRequest{Symbol: "A", TargetWeight: 100},
	))
	assert.ErrorIs(t, err, services.ErrInvalidInput)
	assert.Empty(t, store.Txs(), "sizing is checked before the transaction opens")
	assert.Zero(t, store.PortfolioCount())
}

func TestCreatePortfolio_LargeAmountWithinRange(t *testing.T) {
	svc, _, provider := newPortfolioService(t)
	provider.SetPrice("A", 1)

	p, err := svc.CreatePortfolio(context.Background(), owner, createRequest(1e307,
		models.CreateItemRequest{Symbol: "A", TargetWeight: 100},
	))
	require.NoError(t, err)
	assert.Equal(t, 1e307, p.Items[0].InitialQuantity)
}

func TestRefreshPortfolio_RejectsOverflowingValues(t *testing.T) {
	tests := []struct {
		name     string
		quantity float64
	}{
		{"value overflows", 1e308},
		{"weight overflows", 1e307},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, provider := newPortfolioService(t)
			provider.SetPrice("A", 10)
			provider.SetPrice("B", 10)
			created, err := svc.CreatePortfolio(context.Background(), owner, createRequest(100,
				models.CreateItemRequest{Symbol: "A", TargetWeight: 50},
				models.CreateItemRequest{Symbol: "B", TargetWeight: 50},
			))
			require.NoError(t, err)
			store.SetQuantity(created.ID, "A", tt.quantity)

			_, err = svc.RefreshPortfolio(context.Background(), created.ID, owner)
			assert.ErrorIs(t, err, services.ErrInvalidInput)
		})
	}
}
