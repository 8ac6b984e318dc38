package types

import "github.com/google/uuid"

// SplitLine is one manufacturer's share of a payment or refund amount,
// in integer minor units.
type SplitLine struct {
	ManufacturerID uuid.UUID `json:"manufacturer_id"`
	AmountMinor    int64     `json:"amount_minor"`
}

// SplitDetails records how an amount was divided between manufacturer
// transfers and the platform's retained portion. The transfer amounts plus
// the platform amount always sum to the amount they were computed from.
type SplitDetails struct {
	PlatformAmountMinor int64       `json:"platform_amount_minor"`
	Transfers           []SplitLine `json:"transfers"`
}

// Total returns the sum of all transfer shares plus the platform portion.
func (s SplitDetails) Total() int64 {
	total := s.PlatformAmountMinor
	for _, line := range s.Transfers {
		total += line.AmountMinor
	}
	return total
}
