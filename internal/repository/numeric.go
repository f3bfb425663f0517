package repository

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrNotFinite is returned instead of writing NaN or ±Inf to a NUMERIC column,
// which decimal cannot represent.
var ErrNotFinite = errors.New("value is not a finite number")

// NUMERIC columns round-trip through decimal so no precision is lost in the
// database; the API and the drift math work in float64.

func checkFinite(values map[string]float64) error {
	for column, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: %w", column, ErrNotFinite)
		}
	}
	return nil
}

func toNumeric(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func toNullNumeric(f *float64) decimal.NullDecimal {
	if f == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*f))
}

func fromNumeric(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func fromNullNumeric(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}
