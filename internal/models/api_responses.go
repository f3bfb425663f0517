package models

import (
	"github.com/epeers/allocator/internal/drift"
)

// RegisterRequest represents the request body for creating an account
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents the request body for logging in
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// MeResponse is returned by /auth/me. User is null when the account no longer exists.
type MeResponse struct {
	User *User `json:"user"`
}

// SearchAssetsRequest represents the query parameters of an asset search
type SearchAssetsRequest struct {
	Query string `form:"q" json:"q" binding:"required"`
}

// SearchAssetsResponse wraps asset search results
type SearchAssetsResponse struct {
	Results []SearchResult `json:"results"`
}

// QuoteRequest represents the query parameters of a quote lookup
type QuoteRequest struct {
	Symbol string `form:"symbol" json:"symbol" binding:"required"`
}

// QuoteResponse wraps a single quote
type QuoteResponse struct {
	Quote Quote `json:"quote"`
}

// CreatePortfolioRequest represents the request body for creating a portfolio
type CreatePortfolioRequest struct {
	Name                string              `json:"name" binding:"required"`
	InitialInvestAmount float64             `json:"initialInvestAmount" binding:"required,gt=0"`
	Items               []CreateItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CreateItemRequest represents one requested allocation
type CreateItemRequest struct {
	Symbol       string   `json:"symbol" binding:"required"`
	TargetWeight float64  `json:"targetWeight" binding:"required,gt=0"`
	Tolerance    *float64 `json:"tolerance" binding:"omitempty,gt=0"`
}

// UpdateItemRequest represents the request body for patching a line item
type UpdateItemRequest struct {
	CurrentQuantity *float64      `json:"currentQuantity" binding:"omitempty,gte=0"`
	Tolerance       OptionalFloat `json:"tolerance"`
}

// PortfolioResponse wraps a single portfolio
type PortfolioResponse struct {
	Portfolio Portfolio `json:"portfolio"`
}

// PortfolioDetailResponse wraps a portfolio with its items
type PortfolioDetailResponse struct {
	Portfolio PortfolioWithItems `json:"portfolio"`
}

// PortfolioListResponse wraps the portfolios of a user
type PortfolioListResponse struct {
	Portfolios []Portfolio `json:"portfolios"`
}

// ItemResponse wraps a single line item
type ItemResponse struct {
	Item PortfolioItem `json:"item"`
}

// RefreshResponse is the drift report of a portfolio plus any warnings
type RefreshResponse struct {
	drift.Report
	Warnings []Warning `json:"warnings,omitempty"`
}

// HealthResponse is returned by /health
type HealthResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}
