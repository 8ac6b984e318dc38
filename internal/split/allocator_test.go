package split

import (
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/marketpay-backend/pkg/errors"
	"github.com/angelmondragon/marketpay-backend/pkg/types"
)

func TestForPaymentTwoManufacturers(t *testing.T) {
	m1 := uuid.New()
	m2 := uuid.New()

	details, err := ForPayment(10000, []Line{
		{ManufacturerID: m1, TotalMinor: 7000, CommissionMinor: 700},
		{ManufacturerID: m2, TotalMinor: 3000, CommissionMinor: 300},
	})
	if err != nil {
		t.Fatalf("ForPayment returned error: %v", err)
	}

	if got := shareFor(details, m1); got != 6300 {
		t.Fatalf("m1 share: expected 6300 got %d", got)
	}
	if got := shareFor(details, m2); got != 2700 {
		t.Fatalf("m2 share: expected 2700 got %d", got)
	}
	if details.PlatformAmountMinor != 1000 {
		t.Fatalf("platform share: expected 1000 got %d", details.PlatformAmountMinor)
	}
	if details.Total() != 10000 {
		t.Fatalf("split not exhaustive: %d", details.Total())
	}
}

func TestForPaymentGroupsLinesByManufacturer(t *testing.T) {
	m1 := uuid.New()

	details, err := ForPayment(5000, []Line{
		{ManufacturerID: m1, TotalMinor: 2000, CommissionMinor: 200},
		{ManufacturerID: m1, TotalMinor: 2500, CommissionMinor: 250},
	})
	if err != nil {
		t.Fatalf("ForPayment returned error: %v", err)
	}
	if len(details.Transfers) != 1 {
		t.Fatalf("expected one grouped transfer, got %d", len(details.Transfers))
	}
	if got := shareFor(details, m1); got != 4050 {
		t.Fatalf("grouped share: expected 4050 got %d", got)
	}
	if details.PlatformAmountMinor != 950 {
		t.Fatalf("platform share: expected 950 got %d", details.PlatformAmountMinor)
	}
}

func TestForPaymentRejectsInconsistentLines(t *testing.T) {
	_, err := ForPayment(1000, []Line{
		{ManufacturerID: uuid.New(), TotalMinor: 100, CommissionMinor: 200},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := ForPayment(1000, nil); err == nil {
		t.Fatal("expected error for empty line items")
	}
}

func TestForRefundProportionalHalf(t *testing.T) {
	m1 := uuid.New()
	m2 := uuid.New()
	original := types.SplitDetails{
		PlatformAmountMinor: 1000,
		Transfers: []types.SplitLine{
			{ManufacturerID: m1, AmountMinor: 6300},
			{ManufacturerID: m2, AmountMinor: 2700},
		},
	}

	details, err := ForRefund(5000, 10000, original)
	if err != nil {
		t.Fatalf("ForRefund returned error: %v", err)
	}
	if got := shareFor(details, m1); got != 3150 {
		t.Fatalf("m1 refund share: expected 3150 got %d", got)
	}
	if got := shareFor(details, m2); got != 1350 {
		t.Fatalf("m2 refund share: expected 1350 got %d", got)
	}
	if details.PlatformAmountMinor != 500 {
		t.Fatalf("platform refund share: expected 500 got %d", details.PlatformAmountMinor)
	}
	if details.Total() != 5000 {
		t.Fatalf("refund split not exhaustive: %d", details.Total())
	}
}

func TestForRefundFullAmountReturnsOriginalShares(t *testing.T) {
	m1 := uuid.New()
	original := types.SplitDetails{
		PlatformAmountMinor: 400,
		Transfers:           []types.SplitLine{{ManufacturerID: m1, AmountMinor: 3600}},
	}

	details, err := ForRefund(4000, 4000, original)
	if err != nil {
		t.Fatalf("ForRefund returned error: %v", err)
	}
	if got := shareFor(details, m1); got != 3600 {
		t.Fatalf("full refund share: expected 3600 got %d", got)
	}
	if details.PlatformAmountMinor != 400 {
		t.Fatalf("full refund platform: expected 400 got %d", details.PlatformAmountMinor)
	}
}

func TestForRefundRoundingResidualGoesToPlatform(t *testing.T) {
	m1 := uuid.New()
	original := types.SplitDetails{
		PlatformAmountMinor: 1,
		Transfers:           []types.SplitLine{{ManufacturerID: m1, AmountMinor: 9999}},
	}

	// ratio 3333/10000: round(9999 * 0.3333) = 3333, residual 0 to platform.
	details, err := ForRefund(3333, 10000, original)
	if err != nil {
		t.Fatalf("ForRefund returned error: %v", err)
	}
	if details.Total() != 3333 {
		t.Fatalf("refund split not exhaustive: %d", details.Total())
	}
	if details.PlatformAmountMinor < 0 {
		t.Fatalf("platform residual must not be negative: %d", details.PlatformAmountMinor)
	}
}

func TestForRefundRejectsOutOfRangeAmounts(t *testing.T) {
	original := types.SplitDetails{Transfers: []types.SplitLine{{ManufacturerID: uuid.New(), AmountMinor: 900}}}

	if _, err := ForRefund(0, 1000, original); err == nil {
		t.Fatal("expected error for zero refund")
	}
	if _, err := ForRefund(1001, 1000, original); err == nil {
		t.Fatal("expected error for refund above captured amount")
	}
	if _, err := ForRefund(100, 0, original); err == nil {
		t.Fatal("expected error for zero captured amount")
	}
}

func shareFor(details types.SplitDetails, id uuid.UUID) int64 {
	for _, line := range details.Transfers {
		if line.ManufacturerID == id {
			return line.AmountMinor
		}
	}
	return -1
}
