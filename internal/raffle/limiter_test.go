package raffle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckLimitPerRaffle(t *testing.T) {
	l := NewTicketLimiter(10, 100)

	assert.NoError(t, l.CheckLimit("r1", 10, nil, nil), "exactly at the limit")
	assert.ErrorIs(t, l.CheckLimit("r1", 11, nil, nil), ErrPerRaffleLimitExceeded)

	existing := map[string]int{"r1": 7}
	assert.NoError(t, l.CheckLimit("r1", 3, existing, nil))
	assert.ErrorIs(t, l.CheckLimit("r1", 4, existing, nil), ErrPerRaffleLimitExceeded)
}

func TestCheckLimitAggregatesAcrossSameBeneficiary(t *testing.T) {
	l := NewTicketLimiter(10, 15)

	beneficiaryOf := map[string]string{
		"r1": "0xcharityA",
		"r2": "0xcharityA",
		"r3": "0xcharityB",
	}
	existing := map[string]int{"r1": 8, "r3": 9}

	// 8 already with charity A + 7 now = 15 = limit.
	assert.NoError(t, l.CheckLimit("r2", 7, existing, beneficiaryOf))

	// 8 + 8 = 16 exceeds the aggregate, though r2 itself is within 10.
	assert.ErrorIs(t, l.CheckLimit("r2", 8, existing, beneficiaryOf), ErrBeneficiaryLimitExceeded)
}

func TestCheckLimitDifferentBeneficiariesIndependent(t *testing.T) {
	l := NewTicketLimiter(10, 12)

	beneficiaryOf := map[string]string{
		"r1": "0xcharityA",
		"r2": "0xcharityB",
	}
	existing := map[string]int{"r1": 10}

	// Charity B is a separate group; r1's tickets do not count against it.
	assert.NoError(t, l.CheckLimit("r2", 10, existing, beneficiaryOf))
}

func TestCheckLimitTargetCountedOnce(t *testing.T) {
	l := NewTicketLimiter(10, 10)

	beneficiaryOf := map[string]string{"r1": "0xcharityA"}
	existing := map[string]int{"r1": 5}

	// 5 existing + 5 new = 10: within both limits, not double counted.
	require.NoError(t, l.CheckLimit("r1", 5, existing, beneficiaryOf))
	assert.ErrorIs(t, l.CheckLimit("r1", 6, existing, beneficiaryOf), ErrPerRaffleLimitExceeded)
}

func TestSeedFixturesAreConsistent(t *testing.T) {
	seeds := SeedBeneficiaries()
	raffles := SeedRaffles()
	require.Len(t, raffles, len(seeds))

	byAddress := make(map[string]bool, len(seeds))
	for _, b := range seeds {
		byAddress[b.WalletAddress] = true
	}
	for _, r := range raffles {
		assert.True(t, byAddress[r.BeneficiaryAddress], "raffle %s points at a seeded beneficiary", r.ID)
		assert.True(t, r.TicketPrice.IsPositive())
		assert.Equal(t, "open", r.Status)
	}
}
