package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Portfolio represents a user's portfolio
type Portfolio struct {
	ID                  string    `json:"id"`
	OwnerID             string    `json:"-"`
	Name                string    `json:"name"`
	InitialInvestAmount float64   `json:"initialInvestAmount"`
	CreatedAt           time.Time `json:"createdAt"`
}

// PortfolioItem is a single asset allocation within a portfolio.
// Weights and tolerance are percentage points.
type PortfolioItem struct {
	ID              string   `json:"id"`
	PortfolioID     string   `json:"-"`
	AssetID         string   `json:"-"`
	Position        int      `json:"-"` // creation order within the portfolio
	TargetWeight    float64  `json:"targetWeight"`
	Tolerance       *float64 `json:"tolerance"`
	EntryPrice      float64  `json:"entryPrice"`
	InitialQuantity float64  `json:"initialQuantity"`
	CurrentQuantity float64  `json:"currentQuantity"`
	Asset           *Asset   `json:"asset,omitempty"`
}

// PortfolioWithItems combines a portfolio with its line items
type PortfolioWithItems struct {
	Portfolio
	Items []PortfolioItem `json:"items"`
}

// ItemUpdate carries the fields a PATCH may overwrite.
// A nil CurrentQuantity leaves the quantity alone; Tolerance.Set with a nil
// Value clears the tolerance.
type ItemUpdate struct {
	CurrentQuantity *float64
	Tolerance       OptionalFloat
}

// Empty reports whether the update touches nothing.
func (u ItemUpdate) Empty() bool {
	return u.CurrentQuantity == nil && !u.Tolerance.Set
}

// OptionalFloat distinguishes an absent JSON key from an explicit null.
type OptionalFloat struct {
	Set   bool
	Value *float64
}

// UnmarshalJSON is only invoked when the key is present.
func (o *OptionalFloat) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	o.Value = &f
	return nil
}

// MarshalJSON renders the value or null.
func (o OptionalFloat) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}
