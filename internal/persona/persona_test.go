package persona

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByIDKnownPersonas(t *testing.T) {
	for _, id := range All() {
		u, err := ByID(id)
		require.NoError(t, err, "persona %s", id)
		assert.Equal(t, id, u.Persona)
		assert.True(t, ValidAddress(u.WalletAddress), "persona %s address %q", id, u.WalletAddress)
		assert.NotEmpty(t, u.Username)
	}
}

func TestByIDUnknownPersona(t *testing.T) {
	_, err := ByID("ghost-user")
	require.ErrorIs(t, err, ErrUnknownPersona)
}

func TestDefaultPersona(t *testing.T) {
	assert.Equal(t, ActiveUser, Default())
	assert.True(t, Valid(Default()))
}

func TestProblemUserBalance(t *testing.T) {
	u, err := ByID(ProblemUser)
	require.NoError(t, err)
	assert.True(t, u.Balance.Equal(decimal.NewFromFloat(0.01)),
		"problem user balance = %s", u.Balance)
}

func TestCanPay(t *testing.T) {
	active, err := ByID(ActiveUser)
	require.NoError(t, err)
	wallet := Wallet(active)

	assert.True(t, wallet.CanPay(decimal.NewFromFloat(25.5)), "exact balance pays")
	assert.True(t, wallet.CanPay(decimal.NewFromInt(1)))
	assert.False(t, wallet.CanPay(decimal.NewFromFloat(25.51)))

	problem, err := ByID(ProblemUser)
	require.NoError(t, err)
	broke := Wallet(problem)
	assert.False(t, broke.CanPay(decimal.NewFromInt(100)))
	assert.True(t, broke.CanPay(decimal.NewFromFloat(0.01)))
}

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress("0x1234567890abcdefABCDEF1234567890abcdefAB"))
	assert.False(t, ValidAddress("1234567890abcdefABCDEF1234567890abcdefAB"))
	assert.False(t, ValidAddress("0x1234"))
	assert.False(t, ValidAddress("0x1234567890abcdefABCDEF1234567890abcdefABcd"))
	assert.False(t, ValidAddress("0x1234567890abcdefABCDEF1234567890abcdefZZ"))
	assert.False(t, ValidAddress(""))
}
