package yahoo

// ParsedQuote represents a parsed quote ready for use
type ParsedQuote struct {
	Symbol   string
	Name     string
	Exchange string
	Currency string
	Price    float64
}

// ParsedSearchResult represents a parsed search hit
type ParsedSearchResult struct {
	Symbol   string
	Name     string
	Exchange string
	Type     string
}
