// Package mock implements the development-harness Client: a stateful
// shadow of the host SDK that resolves wallet auth, pay, and verify
// commands with realistic delays, persona-backed users, and injectable
// failures — matching the real payload contract so call sites cannot tell
// the two apart.
package mock

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/raffletime/miniapp-engine/internal/minikit"
	"github.com/raffletime/miniapp-engine/internal/persona"
)

// Command identifiers used for forced-error injection.
const (
	CommandWalletAuth = "walletAuth"
	CommandPay        = "pay"
	CommandVerify     = "verify"
)

// DefaultDelay is the simulated network round trip applied when delay
// simulation is on.
const DefaultDelay = 400 * time.Millisecond

// Simulator implements minikit.Client. It is safe for concurrent use, but
// deliberately does not serialize a user switch against an in-flight
// command: commands read the active user at resolution time, so a switch
// mid-flight is an accepted race, the same nondeterminism the real host
// exhibits. Callers needing atomicity must await the switch first.
type Simulator struct {
	mu           sync.Mutex
	installed    bool
	user         *persona.MockUser
	delay        time.Duration
	forcedErrors map[string]bool
	customTxHash string
}

// NewSimulator creates an uninstalled simulator with no delay.
func NewSimulator() *Simulator {
	return &Simulator{forcedErrors: make(map[string]bool)}
}

// Install marks the simulator installed and assigns the default persona if
// no user is active. Idempotent.
func (s *Simulator) Install() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installed = true
	if s.user == nil {
		u, _ := persona.ByID(persona.Default())
		s.user = &u
	}
}

// Reset clears the active user and detaches all forced-error and custom
// hash configuration. Idempotent.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.forcedErrors = make(map[string]bool)
	s.customTxHash = ""
}

// SwitchUser validates the persona and replaces the active user.
func (s *Simulator) SwitchUser(personaID string) error {
	u, err := persona.ByID(personaID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	slog.Debug("mock user switched", "persona", personaID, "address", u.WalletAddress)
	return nil
}

// SetDelay configures the simulated network delay; zero disables it.
func (s *Simulator) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Delay returns the currently configured simulated network delay.
func (s *Simulator) Delay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delay
}

// ForceError makes the named command resolve with an error payload until
// cleared. Unknown command names are ignored.
func (s *Simulator) ForceError(command string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forcedErrors[command] = true
}

// ClearErrors removes all forced-error configuration.
func (s *Simulator) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forcedErrors = make(map[string]bool)
}

// SetTxHash injects a fixed transaction hash for deterministic tests.
func (s *Simulator) SetTxHash(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customTxHash = hash
}

// IsInstalled reports whether Install has been called.
func (s *Simulator) IsInstalled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.installed
}

// User returns the active mock user, or nil before install/after reset.
func (s *Simulator) User() *persona.MockUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Balance returns the active user's WLD balance, zero when no user is set.
func (s *Simulator) Balance() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return decimal.Zero
	}
	return s.user.Balance
}

// sleep applies the configured delay, honoring context cancellation.
// A cancelled context is a transport-class failure.
func (s *Simulator) sleep(ctx context.Context) error {
	s.mu.Lock()
	d := s.delay
	s.mu.Unlock()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Simulator) forced(command string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forcedErrors[command]
}

// WalletAuth resolves with the active user's address. A forced failure
// resolves (never rejects) with an error payload, mirroring the host
// contract: only transport problems reject.
func (s *Simulator) WalletAuth(ctx context.Context, req minikit.WalletAuthRequest) (minikit.WalletAuthPayload, error) {
	if err := s.sleep(ctx); err != nil {
		return minikit.WalletAuthPayload{}, err
	}

	if s.forced(CommandWalletAuth) {
		return minikit.WalletAuthPayload{
			Status:    minikit.StatusError,
			ErrorCode: minikit.ErrCodeUserRejected,
		}, nil
	}

	// Read the active user at resolution time, not dispatch time.
	user := s.User()
	if user == nil {
		return minikit.WalletAuthPayload{
			Status:    minikit.StatusError,
			ErrorCode: minikit.ErrCodeUserRejected,
		}, nil
	}

	return minikit.WalletAuthPayload{
		Status:    minikit.StatusSuccess,
		Address:   user.WalletAddress,
		Message:   "raffletime.dev wants you to sign in with nonce " + req.Nonce,
		Signature: "0x" + deterministicHex(user.WalletAddress+req.Nonce, 130),
	}, nil
}

// Pay resolves with a fresh 64-hex-digit transaction hash, or the injected
// custom hash. A forced failure resolves with user_cancelled.
func (s *Simulator) Pay(ctx context.Context, req minikit.PayRequest) (minikit.PayPayload, error) {
	if err := s.sleep(ctx); err != nil {
		return minikit.PayPayload{}, err
	}

	if s.forced(CommandPay) {
		return minikit.PayPayload{
			Status:    minikit.StatusError,
			Reference: req.Reference,
			ErrorCode: minikit.ErrCodeUserCancelled,
		}, nil
	}

	s.mu.Lock()
	hash := s.customTxHash
	s.mu.Unlock()
	if hash == "" {
		hash = "0x" + randomHex(64)
	}

	slog.Debug("mock payment resolved", "reference", req.Reference, "to", req.To, "amount", req.TokenAmount)

	return minikit.PayPayload{
		Status:          minikit.StatusSuccess,
		TransactionHash: hash,
		Reference:       req.Reference,
	}, nil
}

// Verify resolves with a proof payload echoing the requested verification
// level. A forced failure resolves with verification_rejected.
func (s *Simulator) Verify(ctx context.Context, req minikit.VerifyRequest) (minikit.VerifyPayload, error) {
	if err := s.sleep(ctx); err != nil {
		return minikit.VerifyPayload{}, err
	}

	if s.forced(CommandVerify) {
		return minikit.VerifyPayload{
			Status:    minikit.StatusError,
			ErrorCode: minikit.ErrCodeVerificationRejected,
		}, nil
	}

	level := req.VerificationLevel
	if level == "" {
		level = minikit.VerificationOrb
	}

	user := s.User()
	seed := req.Action + req.Signal
	if user != nil {
		seed += user.WalletAddress
	}

	return minikit.VerifyPayload{
		Status:            minikit.StatusSuccess,
		NullifierHash:     "0x" + deterministicHex("nullifier:"+seed, 64),
		MerkleRoot:        "0x" + deterministicHex("root:"+seed, 64),
		Proof:             "0x" + deterministicHex("proof:"+seed, 256),
		VerificationLevel: level,
	}, nil
}

// randomHex returns n random lowercase hex digits.
func randomHex(n int) string {
	buf := make([]byte, (n+1)/2)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure is unrecoverable; fall back to a fixed
		// pattern so the mock still resolves.
		for i := range buf {
			buf[i] = byte(i)
		}
	}
	return hex.EncodeToString(buf)[:n]
}

// deterministicHex derives n hex digits from a seed string, so repeated
// mock verifications for the same user/action produce stable hashes.
func deterministicHex(seed string, n int) string {
	var out []byte
	sum := sha256.Sum256([]byte(seed))
	for len(out) < (n+1)/2 {
		out = append(out, sum[:]...)
		sum = sha256.Sum256(sum[:])
	}
	return hex.EncodeToString(out)[:n]
}

var _ minikit.Client = (*Simulator)(nil)
