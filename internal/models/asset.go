package models

// Asset is the cached metadata of a tradable symbol
type Asset struct {
	ID       string  `json:"id"`
	Symbol   string  `json:"symbol"`
	Name     *string `json:"name"`
	Exchange *string `json:"exchange"`
	Currency *string `json:"currency"`
}

// Quote is a live price for a symbol together with its display metadata
type Quote struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name,omitempty"`
	Exchange string  `json:"exchange,omitempty"`
	Currency string  `json:"currency,omitempty"`
	Price    float64 `json:"price"`
}

// AssetFromQuote builds asset metadata from a quote. Empty fields stay nil so
// an upsert keeps whatever was stored before.
func AssetFromQuote(q Quote) Asset {
	return Asset{
		Symbol:   q.Symbol,
		Name:     optional(q.Name),
		Exchange: optional(q.Exchange),
		Currency: optional(q.Currency),
	}
}

// SearchResult is a candidate symbol returned by an asset search
type SearchResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Exchange string `json:"exchange,omitempty"`
	Type     string `json:"type,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
