// Package testutil provides in-memory stand-ins for the database and the
// quote provider.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/epeers/allocator/internal/models"
	"github.com/epeers/allocator/internal/repository"
	"github.com/epeers/allocator/internal/yahoo"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MockTx is a transaction whose writes are applied to its store on Commit.
// Only Commit and Rollback are implemented.
type MockTx struct {
	pgx.Tx

	store      *MockStore
	pending    []func()
	assets     map[string]models.Asset // upserts staged in this tx, by symbol
	Committed  bool
	RolledBack bool
}

// Commit applies every staged write
func (t *MockTx) Commit(ctx context.Context) error {
	if t.Committed || t.RolledBack {
		return pgx.ErrTxClosed
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.commitErr != nil {
		return t.store.commitErr
	}
	for _, apply := range t.pending {
		apply()
	}
	t.pending = nil
	t.Committed = true
	return nil
}

// Rollback discards staged writes. Calling it after Commit is harmless.
func (t *MockTx) Rollback(ctx context.Context) error {
	if t.Committed || t.RolledBack {
		return pgx.ErrTxClosed
	}
	t.pending = nil
	t.RolledBack = true
	return nil
}

// MockStore is an in-memory implementation of the user, asset and portfolio stores
type MockStore struct {
	mu         sync.RWMutex
	users      map[string]models.User
	portfolios []models.Portfolio
	items      map[string][]models.PortfolioItem
	assets     map[string]models.Asset // by symbol
	txs        []*MockTx
	clock      time.Time

	createItemErr error
	commitErr     error
	err           error
}

// NewMockStore creates an empty store
func NewMockStore() *MockStore {
	return &MockStore{
		users:  make(map[string]models.User),
		items:  make(map[string][]models.PortfolioItem),
		assets: make(map[string]models.Asset),
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// SetError makes every read and write fail with err
func (m *MockStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetCreateItemError makes CreateItem fail with err
func (m *MockStore) SetCreateItemError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createItemErr = err
}

// SetCommitError makes Commit fail with err
func (m *MockStore) SetCommitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitErr = err
}

// Txs returns every transaction begun so far
func (m *MockStore) Txs() []*MockTx {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*MockTx(nil), m.txs...)
}

// PortfolioCount returns the number of committed portfolios
func (m *MockStore) PortfolioCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.portfolios)
}

// Asset returns the committed asset for symbol
func (m *MockStore) Asset(symbol string) (models.Asset, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[symbol]
	return a, ok
}

// AddUser stores a user directly and returns it with an ID
func (m *MockStore) AddUser(email, passwordHash string) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := models.User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, CreatedAt: m.tick()}
	m.users[u.ID] = u
	return u
}

// tick returns a strictly increasing timestamp. Callers hold mu.
func (m *MockStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *MockStore) mockTx(tx pgx.Tx) (*MockTx, error) {
	mt, ok := tx.(*MockTx)
	if !ok || mt.store != m {
		return nil, errors.New("transaction does not belong to this store")
	}
	if mt.Committed || mt.RolledBack {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

// --- users ---

// Create inserts a user
func (m *MockStore) Create(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return repository.ErrEmailTaken
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = m.tick()
	m.users[u.ID] = *u
	return nil
}

// GetByEmail retrieves a user by email
func (m *MockStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// GetByID retrieves a user by ID
func (m *MockStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

// --- assets ---

// Upsert stages an asset insert or metadata update. Present fields overwrite,
// absent ones keep the stored value.
func (m *MockStore) Upsert(ctx context.Context, tx pgx.Tx, a *models.Asset) error {
	mt, err := m.mockTx(tx)
	if err != nil {
		return err
	}
	m.mu.RLock()
	if m.err != nil {
		m.mu.RUnlock()
		return m.err
	}
	current, ok := mt.assets[a.Symbol]
	if !ok {
		current, ok = m.assets[a.Symbol]
	}
	m.mu.RUnlock()

	if !ok {
		current = models.Asset{ID: uuid.NewString(), Symbol: a.Symbol}
	}
	if a.Name != nil {
		current.Name = a.Name
	}
	if a.Exchange != nil {
		current.Exchange = a.Exchange
	}
	if a.Currency != nil {
		current.Currency = a.Currency
	}
	*a = current

	mt.assets[a.Symbol] = current
	mt.pending = append(mt.pending, func() { m.assets[current.Symbol] = current })
	return nil
}

// --- portfolios ---

// BeginTx starts a mock transaction
func (m *MockStore) BeginTx(ctx context.Context) (pgx.Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	tx := &MockTx{store: m, assets: make(map[string]models.Asset)}
	m.txs = append(m.txs, tx)
	return tx, nil
}

// Portfolio methods are reached through Portfolios() because Create is taken
// by the user store.
func (m *MockStore) createPortfolio(tx pgx.Tx, p *models.Portfolio) error {
	mt, err := m.mockTx(tx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	p.ID = uuid.NewString()
	p.CreatedAt = m.tick()
	stored := *p
	mt.pending = append(mt.pending, func() { m.portfolios = append(m.portfolios, stored) })
	return nil
}

func (m *MockStore) createItem(tx pgx.Tx, item *models.PortfolioItem) error {
	mt, err := m.mockTx(tx)
	if err != nil {
		return err
	}
	m.mu.RLock()
	failWith := m.createItemErr
	if m.err != nil {
		failWith = m.err
	}
	m.mu.RUnlock()
	if failWith != nil {
		return failWith
	}

	item.ID = uuid.NewString()
	stored := *item
	stored.Asset = nil
	mt.pending = append(mt.pending, func() {
		m.items[stored.PortfolioID] = append(m.items[stored.PortfolioID], stored)
	})
	return nil
}

func (m *MockStore) getByIDForOwner(id, ownerID string) (*models.Portfolio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.portfolios {
		if p.ID == id && p.OwnerID == ownerID {
			return &p, nil
		}
	}
	return nil, repository.ErrPortfolioNotFound
}

func (m *MockStore) getByOwner(ownerID string) ([]models.Portfolio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Portfolio
	for _, p := range m.portfolios {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockStore) getItems(portfolioID string) ([]models.PortfolioItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	byID := make(map[string]models.Asset, len(m.assets))
	for _, a := range m.assets {
		byID[a.ID] = a
	}

	items := make([]models.PortfolioItem, 0, len(m.items[portfolioID]))
	for _, it := range m.items[portfolioID] {
		a, ok := byID[it.AssetID]
		if !ok {
			return nil, fmt.Errorf("item %s references unknown asset %s", it.ID, it.AssetID)
		}
		it.Asset = &a
		items = append(items, it)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return items, nil
}

func (m *MockStore) updateItem(portfolioID, itemID string, upd models.ItemUpdate) (*models.PortfolioItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	items := m.items[portfolioID]
	for i := range items {
		if items[i].ID != itemID {
			continue
		}
		if upd.CurrentQuantity != nil {
			items[i].CurrentQuantity = *upd.CurrentQuantity
		}
		if upd.Tolerance.Set {
			items[i].Tolerance = upd.Tolerance.Value
		}
		updated := items[i]
		return &updated, nil
	}
	return nil, repository.ErrItemNotFound
}

// SetQuantity overwrites the current quantity of the item with the given symbol
func (m *MockStore) SetQuantity(portfolioID, symbol string, quantity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.items[portfolioID] {
		for _, a := range m.assets {
			if a.ID == it.AssetID && strings.EqualFold(a.Symbol, symbol) {
				m.items[portfolioID][i].CurrentQuantity = quantity
			}
		}
	}
}

// Portfolios returns a view of the store implementing the portfolio store
// interface.
func (m *MockStore) Portfolios() *MockPortfolioStore {
	return &MockPortfolioStore{m: m}
}

// MockPortfolioStore adapts MockStore to the portfolio store method set
type MockPortfolioStore struct {
	m *MockStore
}

func (p *MockPortfolioStore) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return p.m.BeginTx(ctx)
}

func (p *MockPortfolioStore) Create(ctx context.Context, tx pgx.Tx, portfolio *models.Portfolio) error {
	return p.m.createPortfolio(tx, portfolio)
}

func (p *MockPortfolioStore) CreateItem(ctx context.Context, tx pgx.Tx, item *models.PortfolioItem) error {
	return p.m.createItem(tx, item)
}

func (p *MockPortfolioStore) GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.Portfolio, error) {
	return p.m.getByIDForOwner(id, ownerID)
}

func (p *MockPortfolioStore) GetByOwner(ctx context.Context, ownerID string) ([]models.Portfolio, error) {
	return p.m.getByOwner(ownerID)
}

func (p *MockPortfolioStore) GetItems(ctx context.Context, portfolioID string) ([]models.PortfolioItem, error) {
	return p.m.getItems(portfolioID)
}

func (p *MockPortfolioStore) UpdateItem(ctx context.Context, portfolioID, itemID string, upd models.ItemUpdate) (*models.PortfolioItem, error) {
	return p.m.updateItem(portfolioID, itemID, upd)
}

// MockQuoteProvider serves canned quotes and search results
type MockQuoteProvider struct {
	mu          sync.Mutex
	quotes      map[string]yahoo.ParsedQuote
	errs        map[string]error
	search      []yahoo.ParsedSearchResult
	searchErr   error
	quoteCalls  int
	searchCalls int
}

// NewMockQuoteProvider creates a provider that knows no symbols
func NewMockQuoteProvider() *MockQuoteProvider {
	return &MockQuoteProvider{
		quotes: make(map[string]yahoo.ParsedQuote),
		errs:   make(map[string]error),
	}
}

// SetQuote registers a quote for symbol
func (p *MockQuoteProvider) SetQuote(symbol string, q yahoo.ParsedQuote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	p.quotes[symbol] = q
	delete(p.errs, symbol)
}

// SetPrice registers a bare quote for symbol
func (p *MockQuoteProvider) SetPrice(symbol string, price float64) {
	p.SetQuote(symbol, yahoo.ParsedQuote{Symbol: symbol, Price: price})
}

// SetQuoteError makes quotes for symbol fail with err
func (p *MockQuoteProvider) SetQuoteError(symbol string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[symbol] = err
}

// SetSearchResults sets the results returned for every query
func (p *MockQuoteProvider) SetSearchResults(results []yahoo.ParsedSearchResult, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.search = results
	p.searchErr = err
}

// QuoteCalls returns how many quotes were requested
func (p *MockQuoteProvider) QuoteCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quoteCalls
}

// SearchCalls returns how many searches were requested
func (p *MockQuoteProvider) SearchCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.searchCalls
}

// GetQuote returns the registered quote, or yahoo.ErrSymbolNotFound
func (p *MockQuoteProvider) GetQuote(ctx context.Context, symbol string) (*yahoo.ParsedQuote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quoteCalls++
	if err, ok := p.errs[symbol]; ok {
		return nil, err
	}
	q, ok := p.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("quote %s: %w", symbol, yahoo.ErrSymbolNotFound)
	}
	return &q, nil
}

// Search returns the configured results
func (p *MockQuoteProvider) Search(ctx context.Context, query string) ([]yahoo.ParsedSearchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searchCalls++
	if p.searchErr != nil {
		return nil, p.searchErr
	}
	return append([]yahoo.ParsedSearchResult(nil), p.search...), nil
}
