package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/epeers/allocator/internal/cache"
	"github.com/epeers/allocator/internal/models"
	"github.com/epeers/allocator/internal/yahoo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrSymbolNotFound   = errors.New("symbol not found")
	ErrQuoteUnavailable = errors.New("quote provider unavailable")
)

// QuoteProvider is the external market data source
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (*yahoo.ParsedQuote, error)
	Search(ctx context.Context, query string) ([]yahoo.ParsedSearchResult, error)
}

// QuoteService fetches live quotes and symbol search results
type QuoteService struct {
	provider QuoteProvider
	cache    *cache.MemoryCache
}

// NewQuoteService creates a new QuoteService. cache may be nil to disable
// search caching.
func NewQuoteService(provider QuoteProvider, searchCache *cache.MemoryCache) *QuoteService {
	return &QuoteService{
		provider: provider,
		cache:    searchCache,
	}
}

// Quote returns the current price of one symbol
func (s *QuoteService) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrSymbolNotFound)
	}

	pq, err := s.provider.GetQuote(ctx, symbol)
	if err != nil {
		return nil, mapProviderError(symbol, err)
	}
	return &models.Quote{
		Symbol:   pq.Symbol,
		Name:     pq.Name,
		Exchange: pq.Exchange,
		Currency: pq.Currency,
		Price:    pq.Price,
	}, nil
}

// QuoteMany fetches quotes for every symbol concurrently. The result is in
// input order. The first failure cancels the remaining fetches and fails the
// whole batch.
func (s *QuoteService) QuoteMany(ctx context.Context, symbols []string) ([]models.Quote, error) {
	quotes := make([]models.Quote, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	for i, symbol := range symbols {
		g.Go(func() error {
			q, err := s.Quote(gctx, symbol)
			if err != nil {
				return err
			}
			quotes[i] = *q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return quotes, nil
}

// Search returns up to 20 candidate symbols for a free-text query.
// Results are cached per normalized query.
func (s *QuoteService) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.SearchResult{}, nil
	}

	if s.cache != nil {
		if cached, ok := s.cache.GetSearch(query); ok {
			log.Debugf("search cache hit for %q", query)
			return cached, nil
		}
	}

	found, err := s.provider.Search(ctx, query)
	if err != nil {
		// A search names no symbol, so every provider failure is an outage.
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}

	results := make([]models.SearchResult, 0, len(found))
	for _, r := range found {
		results = append(results, models.SearchResult{
			Symbol:   r.Symbol,
			Name:     r.Name,
			Exchange: r.Exchange,
			Type:     r.Type,
		})
	}

	if s.cache != nil {
		s.cache.SetSearch(query, results)
	}
	return results, nil
}

func mapProviderError(symbol string, err error) error {
	if errors.Is(err, yahoo.ErrSymbolNotFound) {
		return fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
}
