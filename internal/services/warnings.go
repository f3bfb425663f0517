package services

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/epeers/allocator/internal/drift"
	"github.com/epeers/allocator/internal/models"
)

// weightSumTolerance absorbs float noise when checking that targets add up to 100
const weightSumTolerance = 1e-6

type warningsKey struct{}

// WarningCollector gathers the non-fatal findings of one request. Refresh
// handlers attach one to the request context and return its contents next
// to the drift report.
type WarningCollector struct {
	mu   sync.Mutex
	list []models.Warning
}

// NewWarningContext derives a context that records warnings into the returned collector
func NewWarningContext(ctx context.Context) (context.Context, *WarningCollector) {
	wc := &WarningCollector{}
	return context.WithValue(ctx, warningsKey{}, wc), wc
}

// AddWarning records w on the collector carried by ctx. Without a collector
// the warning is dropped.
func AddWarning(ctx context.Context, w models.Warning) {
	wc, _ := ctx.Value(warningsKey{}).(*WarningCollector)
	if wc == nil {
		return
	}
	wc.mu.Lock()
	wc.list = append(wc.list, w)
	wc.mu.Unlock()
}

// GetWarnings returns the recorded warnings, oldest first, or nil if there are none
func (wc *WarningCollector) GetWarnings() []models.Warning {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	if len(wc.list) == 0 {
		return nil
	}
	return append([]models.Warning(nil), wc.list...)
}

// WarnAllocation flags a refreshed portfolio whose target weights do not add
// up to 100 (W3001) or whose holdings are worth nothing (W2001). An empty
// portfolio raises neither. The report itself is left untouched.
func WarnAllocation(ctx context.Context, targetSum float64, report drift.Report) {
	if len(report.Items) == 0 {
		return
	}
	if math.Abs(targetSum-100) > weightSumTolerance {
		AddWarning(ctx, models.Warning{
			Code:    models.WarnTargetWeightsNot100,
			Message: fmt.Sprintf("target weights add up to %g, not 100", targetSum),
		})
	}
	if report.TotalValue == 0 {
		AddWarning(ctx, models.Warning{
			Code:    models.WarnZeroTotalValue,
			Message: "total portfolio value is zero; current weights are reported as 0",
		})
	}
}
