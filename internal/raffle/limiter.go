// Package raffle holds the raffle-side business rules: ticket purchase
// limits and the seeded development fixtures.
package raffle

import "errors"

var (
	// ErrPerRaffleLimitExceeded is returned when a purchase would push a
	// wallet's ticket count in one raffle beyond the per-raffle maximum.
	ErrPerRaffleLimitExceeded = errors.New("raffle: per-raffle ticket limit exceeded")

	// ErrBeneficiaryLimitExceeded is returned when a purchase would push
	// a wallet's aggregate ticket count across raffles sharing the same
	// beneficiary beyond the aggregate maximum.
	ErrBeneficiaryLimitExceeded = errors.New("raffle: beneficiary ticket limit exceeded")
)

// TicketLimiter enforces purchase limits per wallet. Raffles that pay out
// to the same beneficiary are treated as one correlated group: a wallet
// cannot stack entries across them past MaxPerBeneficiary.
type TicketLimiter struct {
	// MaxPerRaffle is the maximum ticket count one wallet may hold in a
	// single raffle.
	MaxPerRaffle int

	// MaxPerBeneficiary is the maximum aggregate ticket count one wallet
	// may hold across all raffles sharing a beneficiary address.
	MaxPerBeneficiary int
}

// NewTicketLimiter creates a limiter with the given per-raffle and
// per-beneficiary limits.
func NewTicketLimiter(maxPerRaffle, maxPerBeneficiary int) *TicketLimiter {
	return &TicketLimiter{
		MaxPerRaffle:      maxPerRaffle,
		MaxPerBeneficiary: maxPerBeneficiary,
	}
}

// CheckLimit validates whether a purchase respects the limits.
//
// Parameters:
//   - targetRaffle: raffle being entered
//   - quantity: tickets being bought now
//   - existing: raffle ID → tickets this wallet already holds
//   - beneficiaryOf: raffle ID → beneficiary address (target included)
//
// Returns nil if the purchase is within limits.
func (l *TicketLimiter) CheckLimit(
	targetRaffle string,
	quantity int,
	existing map[string]int,
	beneficiaryOf map[string]string,
) error {
	// 1. Per-raffle limit.
	newCount := existing[targetRaffle] + quantity
	if newCount > l.MaxPerRaffle {
		return ErrPerRaffleLimitExceeded
	}

	// 2. Aggregate across raffles with the same beneficiary.
	target := beneficiaryOf[targetRaffle]
	totalForBeneficiary := newCount

	for raffleID, count := range existing {
		if raffleID == targetRaffle {
			continue // already counted via newCount above
		}
		if beneficiaryOf[raffleID] == target {
			totalForBeneficiary += count
		}
	}

	if totalForBeneficiary > l.MaxPerBeneficiary {
		return ErrBeneficiaryLimitExceeded
	}

	return nil
}
