// Package persona defines the closed set of mock user fixtures used by the
// development harness. Profiles are immutable — switching the active user
// replaces the reference, never mutates a profile in place.
package persona

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// The five supported persona identifiers. The set is closed: lookups for
// anything else fail loudly rather than silently defaulting.
const (
	NewUser     = "new-user"
	ActiveUser  = "active-user"
	PowerUser   = "power-user"
	VIPUser     = "vip-user"
	ProblemUser = "problem-user"
)

// ErrUnknownPersona is returned for identifiers outside the closed set.
var ErrUnknownPersona = errors.New("persona: unknown persona")

// addressRegex matches a 0x-prefixed 40-hex-digit wallet address.
var addressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// MockUser is an immutable persona fixture: wallet address, display data,
// WLD balance, and verification capability.
type MockUser struct {
	Persona        string          `json:"persona"`
	WalletAddress  string          `json:"wallet_address"`
	Username       string          `json:"username"`
	ProfilePicture string          `json:"profile_picture"`
	Balance        decimal.Decimal `json:"balance"` // WLD
	OrbVerified    bool            `json:"orb_verified"`
	DeviceVerified bool            `json:"device_verified"`
}

// MockWallet exposes the pay capability derived from a user's balance.
type MockWallet struct {
	Address string
	Balance decimal.Decimal
}

// CanPay reports whether the wallet balance covers the given amount.
func (w MockWallet) CanPay(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}

var profiles = map[string]MockUser{
	NewUser: {
		Persona:        NewUser,
		WalletAddress:  "0x1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b",
		Username:       "fresh.eyes",
		ProfilePicture: "https://static.raffletime.dev/avatars/new-user.png",
		Balance:        decimal.NewFromInt(0),
		DeviceVerified: true,
	},
	ActiveUser: {
		Persona:        ActiveUser,
		WalletAddress:  "0x2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c",
		Username:       "steady.hand",
		ProfilePicture: "https://static.raffletime.dev/avatars/active-user.png",
		Balance:        decimal.NewFromFloat(25.5),
		OrbVerified:    true,
		DeviceVerified: true,
	},
	PowerUser: {
		Persona:        PowerUser,
		WalletAddress:  "0x3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d",
		Username:       "whale.watcher",
		ProfilePicture: "https://static.raffletime.dev/avatars/power-user.png",
		Balance:        decimal.NewFromInt(500),
		OrbVerified:    true,
		DeviceVerified: true,
	},
	VIPUser: {
		Persona:        VIPUser,
		WalletAddress:  "0x4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d3e",
		Username:       "diamond.member",
		ProfilePicture: "https://static.raffletime.dev/avatars/vip-user.png",
		Balance:        decimal.NewFromInt(10000),
		OrbVerified:    true,
		DeviceVerified: true,
	},
	ProblemUser: {
		Persona:        ProblemUser,
		WalletAddress:  "0x5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d3e4f",
		Username:       "empty.pockets",
		ProfilePicture: "https://static.raffletime.dev/avatars/problem-user.png",
		Balance:        decimal.NewFromFloat(0.01),
		DeviceVerified: true,
	},
}

// All returns the persona identifiers in a stable order.
func All() []string {
	return []string{NewUser, ActiveUser, PowerUser, VIPUser, ProblemUser}
}

// Default is the persona activated when none has been chosen.
func Default() string { return ActiveUser }

// Valid reports membership in the closed persona set.
func Valid(id string) bool {
	_, ok := profiles[id]
	return ok
}

// ByID looks up the fixture for a persona identifier.
func ByID(id string) (MockUser, error) {
	u, ok := profiles[id]
	if !ok {
		return MockUser{}, fmt.Errorf("%w: %q", ErrUnknownPersona, id)
	}
	return u, nil
}

// Wallet derives the pay-capability view of a user.
func Wallet(u MockUser) MockWallet {
	return MockWallet{Address: u.WalletAddress, Balance: u.Balance}
}

// ValidAddress reports whether s is a 0x-prefixed 40-hex-digit address.
func ValidAddress(s string) bool {
	return addressRegex.MatchString(s)
}
