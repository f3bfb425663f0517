// Package drift computes how far a portfolio's current holdings have moved
// away from their target allocation.
//
// Everything here is pure arithmetic over float64. Callers are expected to
// hand in finite, non-negative quantities and positive prices; anything else
// flows through the math unchanged.
package drift

// Item is a portfolio line item joined with a freshly fetched price.
type Item struct {
	ID              string
	Symbol          string
	Name            string
	TargetWeight    float64  // percentage points
	Tolerance       *float64 // percentage points, nil disables alerting
	CurrentQuantity float64
	Price           float64
}

// Bounds is the tolerance band around a target weight.
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Row is the drift of a single line item.
type Row struct {
	ID              string   `json:"id"`
	Symbol          string   `json:"symbol"`
	Name            string   `json:"name"`
	LatestPrice     float64  `json:"latestPrice"`
	CurrentQuantity float64  `json:"currentQuantity"`
	Value           float64  `json:"value"`
	TargetWeight    float64  `json:"targetWeight"`
	CurrentWeight   float64  `json:"currentWeight"`
	Diff            float64  `json:"diff"`
	Tolerance       *float64 `json:"tolerance"`
	Bounds          *Bounds  `json:"bounds"`
	OutOfRange      bool     `json:"outOfRange"`
}

// Report is the drift of a whole portfolio. Items keep the input order.
type Report struct {
	TotalValue float64 `json:"totalValue"`
	Items      []Row   `json:"items"`
}

// Calculate builds a drift report from priced line items.
//
// Weights depend on the fully summed total, so values are computed in a first
// pass and weights in a second. A zero total yields zero weights.
func Calculate(items []Item) Report {
	values := make([]float64, len(items))
	var total float64
	for i, it := range items {
		values[i] = it.CurrentQuantity * it.Price
		total += values[i]
	}

	rows := make([]Row, len(items))
	for i, it := range items {
		weight := 0.0
		if total > 0 {
			weight = 100 * values[i] / total
		}

		row := Row{
			ID:              it.ID,
			Symbol:          it.Symbol,
			Name:            it.Name,
			LatestPrice:     it.Price,
			CurrentQuantity: it.CurrentQuantity,
			Value:           values[i],
			TargetWeight:    it.TargetWeight,
			CurrentWeight:   weight,
			Diff:            weight - it.TargetWeight,
		}
		if it.Tolerance != nil {
			tol := *it.Tolerance
			b := Bounds{Lower: it.TargetWeight - tol, Upper: it.TargetWeight + tol}
			row.Tolerance = &tol
			row.Bounds = &b
			row.OutOfRange = weight < b.Lower || weight > b.Upper
		}
		rows[i] = row
	}

	return Report{TotalValue: total, Items: rows}
}

// Sizing is the initial position computed when a portfolio is created.
type Sizing struct {
	Invest     float64 // cash allotted to the item
	Quantity   float64
	EntryPrice float64
}

// Size splits investAmount according to targetWeight and converts the share
// into units at price. The entry price is the price used for sizing. Extreme
// inputs can overflow to ±Inf; callers that persist the result must check.
func Size(investAmount, targetWeight, price float64) Sizing {
	invest := investAmount * (targetWeight / 100)
	return Sizing{
		Invest:     invest,
		Quantity:   invest / price,
		EntryPrice: price,
	}
}
