package drift

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestCalculate_TwoItems(t *testing.T) {
	report := Calculate([]Item{
		{ID: "a", Symbol: "AAA", TargetWeight: 50, CurrentQuantity: 2, Price: 100},
		{ID: "b", Symbol: "BBB", TargetWeight: 50, CurrentQuantity: 3, Price: 200},
	})

	require.Len(t, report.Items, 2)
	assert.Equal(t, 800.0, report.TotalValue)
	assert.Equal(t, 200.0, report.Items[0].Value)
	assert.Equal(t, 600.0, report.Items[1].Value)
	assert.InDelta(t, 25.0, report.Items[0].CurrentWeight, 1e-9)
	assert.InDelta(t, 75.0, report.Items[1].CurrentWeight, 1e-9)
	assert.InDelta(t, -25.0, report.Items[0].Diff, 1e-9)
	assert.InDelta(t, 25.0, report.Items[1].Diff, 1e-9)
}

func TestCalculate_SingleItemOutOfBand(t *testing.T) {
	report := Calculate([]Item{
		{ID: "x", TargetWeight: 50, Tolerance: ptr(5), CurrentQuantity: 1, Price: 40},
	})

	require.Len(t, report.Items, 1)
	row := report.Items[0]
	assert.Equal(t, 40.0, report.TotalValue)
	assert.Equal(t, 100.0, row.CurrentWeight)
	assert.Equal(t, 50.0, row.Diff)
	require.NotNil(t, row.Bounds)
	assert.Equal(t, 45.0, row.Bounds.Lower)
	assert.Equal(t, 55.0, row.Bounds.Upper)
	require.NotNil(t, row.Tolerance)
	assert.Equal(t, 5.0, *row.Tolerance)
	assert.True(t, row.OutOfRange)
}

func TestCalculate_Empty(t *testing.T) {
	report := Calculate(nil)
	assert.Equal(t, 0.0, report.TotalValue)
	assert.NotNil(t, report.Items)
	assert.Len(t, report.Items, 0)

	body, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalValue":0,"items":[]}`, string(body))
}

func TestCalculate_ZeroTotal(t *testing.T) {
	report := Calculate([]Item{
		{ID: "a", TargetWeight: 60, Tolerance: ptr(100), CurrentQuantity: 0, Price: 10},
		{ID: "b", TargetWeight: 40, Tolerance: ptr(1), CurrentQuantity: 0, Price: 20},
	})

	assert.Equal(t, 0.0, report.TotalValue)
	for _, row := range report.Items {
		assert.Equal(t, 0.0, row.CurrentWeight, row.ID)
	}
	// a: [−40, 160] contains 0. b: [39, 41] does not.
	assert.False(t, report.Items[0].OutOfRange)
	assert.True(t, report.Items[1].OutOfRange)
}

func TestCalculate_ZeroTotalWithoutTolerance(t *testing.T) {
	report := Calculate([]Item{
		{ID: "a", TargetWeight: 60, CurrentQuantity: 0, Price: 10},
		{ID: "b", TargetWeight: 40, CurrentQuantity: 0, Price: 20},
	})
	for _, row := range report.Items {
		assert.Equal(t, 0.0, row.CurrentWeight)
		assert.False(t, row.OutOfRange)
	}
}

func TestCalculate_NoToleranceNoBounds(t *testing.T) {
	report := Calculate([]Item{
		{ID: "a", TargetWeight: 1, CurrentQuantity: 10, Price: 10},
		{ID: "b", TargetWeight: 99, CurrentQuantity: 0.5, Price: 10},
	})
	for _, row := range report.Items {
		assert.Nil(t, row.Bounds)
		assert.Nil(t, row.Tolerance)
		assert.False(t, row.OutOfRange)
	}

	body, err := json.Marshal(report.Items[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), `"bounds":null`)
	assert.Contains(t, string(body), `"tolerance":null`)
}

func TestCalculate_BandEdgesAreInRange(t *testing.T) {
	// 1×25 of 100 is exactly 25%, target 30 ± 5 puts it on the lower edge.
	report := Calculate([]Item{
		{ID: "edge", TargetWeight: 30, Tolerance: ptr(5), CurrentQuantity: 1, Price: 25},
		{ID: "rest", TargetWeight: 70, Tolerance: ptr(5), CurrentQuantity: 3, Price: 25},
	})
	assert.Equal(t, 25.0, report.Items[0].CurrentWeight)
	assert.False(t, report.Items[0].OutOfRange)
	assert.Equal(t, 75.0, report.Items[1].CurrentWeight)
	assert.False(t, report.Items[1].OutOfRange)
}

func TestCalculate_Properties(t *testing.T) {
	items := []Item{
		{ID: "1", TargetWeight: 10, Tolerance: ptr(2), CurrentQuantity: 13.5, Price: 17.31},
		{ID: "2", TargetWeight: 30, CurrentQuantity: 0, Price: 412.9},
		{ID: "3", TargetWeight: 25, Tolerance: ptr(0.5), CurrentQuantity: 1.25, Price: 1999.99},
		{ID: "4", TargetWeight: 35, Tolerance: ptr(10), CurrentQuantity: 700, Price: 3.07},
	}
	report := Calculate(items)

	require.Len(t, report.Items, len(items))
	var sum, weights float64
	for i, row := range report.Items {
		assert.Equal(t, items[i].ID, row.ID, "order must be preserved")
		assert.Equal(t, items[i].CurrentQuantity*items[i].Price, row.Value)
		assert.Equal(t, row.CurrentWeight-row.TargetWeight, row.Diff)
		if items[i].Tolerance != nil {
			tol := *items[i].Tolerance
			want := row.CurrentWeight < items[i].TargetWeight-tol || row.CurrentWeight > items[i].TargetWeight+tol
			assert.Equal(t, want, row.OutOfRange, row.ID)
		} else {
			assert.False(t, row.OutOfRange)
			assert.Nil(t, row.Bounds)
		}
		sum += row.Value
		weights += row.CurrentWeight
	}
	assert.InDelta(t, report.TotalValue, sum, 1e-9)
	assert.InDelta(t, 100.0, weights, 1e-9)
}

func TestCalculate_ToleranceIsCopied(t *testing.T) {
	tol := 3.0
	items := []Item{{ID: "a", TargetWeight: 100, Tolerance: &tol, CurrentQuantity: 1, Price: 1}}
	report := Calculate(items)
	tol = 99
	assert.Equal(t, 3.0, *report.Items[0].Tolerance)
}

func TestCalculate_BadPricePropagates(t *testing.T) {
	report := Calculate([]Item{
		{ID: "a", TargetWeight: 50, CurrentQuantity: 1, Price: math.NaN()},
		{ID: "b", TargetWeight: 50, CurrentQuantity: 1, Price: 10},
	})
	assert.True(t, math.IsNaN(report.TotalValue))
	assert.True(t, math.IsNaN(report.Items[0].Value))
}

func TestSize(t *testing.T) {
	s := Size(1_000_000, 40, 500)
	assert.Equal(t, 400_000.0, s.Invest)
	assert.Equal(t, 800.0, s.Quantity)
	assert.Equal(t, 500.0, s.EntryPrice)
}

func TestSize_FractionalUnits(t *testing.T) {
	s := Size(1000, 33, 7)
	assert.Equal(t, 330.0, s.Invest)
	assert.InDelta(t, 47.142857142857, s.Quantity, 1e-9)
}
