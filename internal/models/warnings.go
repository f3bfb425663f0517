package models

// WarningCode categorizes warnings by subsystem.
// W2xxx = pricing, W3xxx = validation.
type WarningCode string

const (
	WarnZeroTotalValue      WarningCode = "W2001" // every holding is worth zero, weights reported as 0
	WarnTargetWeightsNot100 WarningCode = "W3001" // target weights of the portfolio do not add up to 100
)

// Warning represents a non-fatal issue encountered during processing.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}
