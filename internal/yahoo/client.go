package yahoo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/wnjoon/go-yfinance/pkg/lookup"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

const maxSearchResults = 20

var (
	// ErrSymbolNotFound means the provider has no current price for the symbol.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrUnavailable means the provider could not be reached or answered badly.
	ErrUnavailable = errors.New("quote provider unavailable")
)

// go-yfinance reports upstream failures as plain errors. These fragments mark
// the ones that mean Yahoo does not know the symbol.
var notFoundMarkers = []string{"not found", "no data", "404", "delisted", "invalid symbol"}

type (
	quoteFunc  func(symbol string) (*ParsedQuote, error)
	searchFunc func(query string, limit int) ([]ParsedSearchResult, error)
)

// Client fetches quotes and symbol lookups from Yahoo Finance
type Client struct {
	timeout time.Duration
	quote   quoteFunc
	search  searchFunc
}

// NewClient creates a Yahoo Finance client. Every call is bounded by timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		timeout: timeout,
		quote:   fetchQuote,
		search:  lookupSymbols,
	}
}

// GetQuote fetches the current price and display metadata for a symbol
func (c *Client) GetQuote(ctx context.Context, symbol string) (*ParsedQuote, error) {
	q, err := call(ctx, c.timeout, func() (*ParsedQuote, error) { return c.quote(symbol) })
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}
	if q == nil || !usablePrice(q.Price) {
		return nil, fmt.Errorf("no usable price for symbol %s: %w", symbol, ErrSymbolNotFound)
	}
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	return q, nil
}

// Search looks up candidate symbols for a free-text query. A query Yahoo has
// nothing for is an empty result, not an error.
func (c *Client) Search(ctx context.Context, query string) ([]ParsedSearchResult, error) {
	found, err := call(ctx, c.timeout, func() ([]ParsedSearchResult, error) {
		return c.search(query, maxSearchResults)
	})
	if errors.Is(err, ErrSymbolNotFound) {
		return []ParsedSearchResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	results := make([]ParsedSearchResult, 0, len(found))
	for _, r := range found {
		if r.Symbol == "" {
			continue
		}
		results = append(results, r)
		if len(results) == maxSearchResults {
			break
		}
	}
	return results, nil
}

// call runs fetch until it returns or ctx (bounded by timeout) is done.
// go-yfinance takes no context, so an abandoned fetch finishes in the background.
func call[T any](ctx context.Context, timeout time.Duration, fetch func() (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fetch()
		done <- result{val, err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
}

func fetchQuote(symbol string) (*ParsedQuote, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, classify(err)
	}
	defer t.Close()

	quote, err := t.Quote()
	if err != nil {
		return nil, classify(err)
	}
	if quote == nil {
		return nil, ErrSymbolNotFound
	}
	q := &ParsedQuote{
		Symbol: symbol,
		Price:  marketPrice(quote.RegularMarketPrice, quote.PreMarketPrice, quote.PostMarketPrice),
	}

	// Display metadata is optional; a price without it is still a quote.
	info, err := t.Info()
	if err != nil {
		log.WithError(err).Debugf("no info for %s", symbol)
		return q, nil
	}
	if info != nil {
		q.Name = firstNonEmpty(info.LongName, info.ShortName)
		q.Exchange = info.Exchange
	}
	return q, nil
}

func lookupSymbols(query string, limit int) ([]ParsedSearchResult, error) {
	l, err := lookup.New(query)
	if err != nil {
		return nil, classify(err)
	}
	defer l.Close()

	found, err := l.Stock(limit)
	if err != nil {
		return nil, classify(err)
	}
	results := make([]ParsedSearchResult, 0, len(found))
	for _, r := range found {
		results = append(results, ParsedSearchResult{Symbol: r.Symbol, Type: "EQUITY"})
	}
	return results, nil
}

// classify maps a go-yfinance error onto ErrSymbolNotFound or ErrUnavailable
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range notFoundMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrSymbolNotFound, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// marketPrice prefers the regular session price and falls back to the
// pre- and post-market prices, in that order. Zero means no price.
func marketPrice(prices ...float64) float64 {
	for _, p := range prices {
		if usablePrice(p) {
			return p
		}
	}
	return 0
}

func usablePrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
