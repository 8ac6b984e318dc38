package split

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/marketpay-backend/pkg/errors"
	"github.com/angelmondragon/marketpay-backend/pkg/types"
)

// Line is one order line item's contribution to a manufacturer's transfer.
type Line struct {
	ManufacturerID  uuid.UUID
	TotalMinor      int64
	CommissionMinor int64
}

// ForPayment groups lines by manufacturer and computes each manufacturer's
// transfer as total minus commission. The platform share is the remainder
// against the order total, never summed independently, so rounding drift
// accrues to the platform and the split is always exhaustive.
func ForPayment(orderTotalMinor int64, lines []Line) (types.SplitDetails, error) {
	if orderTotalMinor <= 0 {
		return types.SplitDetails{}, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}
	if len(lines) == 0 {
		return types.SplitDetails{}, pkgerrors.New(pkgerrors.CodeValidation, "order has no line items")
	}

	totals := map[uuid.UUID]int64{}
	order := []uuid.UUID{}
	for _, line := range lines {
		if line.TotalMinor < 0 || line.CommissionMinor < 0 || line.CommissionMinor > line.TotalMinor {
			return types.SplitDetails{}, pkgerrors.New(pkgerrors.CodeValidation, "line item amounts are inconsistent")
		}
		if _, seen := totals[line.ManufacturerID]; !seen {
			order = append(order, line.ManufacturerID)
		}
		totals[line.ManufacturerID] += line.TotalMinor - line.CommissionMinor
	}

	details := types.SplitDetails{Transfers: make([]types.SplitLine, 0, len(order))}
	var transferred int64
	for _, id := range order {
		details.Transfers = append(details.Transfers, types.SplitLine{
			ManufacturerID: id,
			AmountMinor:    totals[id],
		})
		transferred += totals[id]
	}
	details.PlatformAmountMinor = orderTotalMinor - transferred

	if err := checkExhaustive(details, orderTotalMinor); err != nil {
		return types.SplitDetails{}, err
	}
	return details, nil
}

// ForRefund distributes a refund proportionally across the original payment
// split. The ratio refund/captured is kept rational until each share is
// rounded, and the platform share is the residual against the refund amount.
func ForRefund(refundMinor, capturedMinor int64, original types.SplitDetails) (types.SplitDetails, error) {
	if capturedMinor <= 0 {
		return types.SplitDetails{}, pkgerrors.New(pkgerrors.CodeValidation, "captured amount must be positive")
	}
	if refundMinor <= 0 || refundMinor > capturedMinor {
		return types.SplitDetails{}, pkgerrors.New(pkgerrors.CodeValidation, "refund amount out of range")
	}

	refund := decimal.NewFromInt(refundMinor)
	captured := decimal.NewFromInt(capturedMinor)

	details := types.SplitDetails{Transfers: make([]types.SplitLine, 0, len(original.Transfers))}
	var distributed int64
	for _, line := range original.Transfers {
		share := decimal.NewFromInt(line.AmountMinor).
			Mul(refund).
			Div(captured).
			Round(0).
			IntPart()
		details.Transfers = append(details.Transfers, types.SplitLine{
			ManufacturerID: line.ManufacturerID,
			AmountMinor:    share,
		})
		distributed += share
	}
	details.PlatformAmountMinor = refundMinor - distributed

	if err := checkExhaustive(details, refundMinor); err != nil {
		return types.SplitDetails{}, err
	}
	return details, nil
}

// checkExhaustive asserts the computed shares reconcile exactly against the
// input total. A mismatch is a programming error, not a user error.
func checkExhaustive(details types.SplitDetails, totalMinor int64) error {
	if details.PlatformAmountMinor < 0 {
		return pkgerrors.New(pkgerrors.CodeInternal, "split allocation exceeded input total").
			WithDetails(map[string]any{"platform_amount_minor": details.PlatformAmountMinor})
	}
	if got := details.Total(); got != totalMinor {
		return pkgerrors.New(pkgerrors.CodeInternal, "split allocation does not reconcile").
			WithDetails(map[string]any{"expected_minor": totalMinor, "allocated_minor": got})
	}
	return nil
}
