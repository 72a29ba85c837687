// Package minikit defines the wallet/identity command surface the UI
// screens program against, mirroring the host-app SDK contract: three
// async commands (wallet auth, pay, verify) that resolve with a final
// payload whose Status is "success" or "error".
//
// User-level failures (rejection, cancellation, failed verification) are
// carried inside the payload with a nil Go error, exactly as the real SDK
// resolves rather than rejects. Transport failures are ordinary Go errors.
package minikit

import (
	"context"
	"errors"
	"regexp"

	"github.com/raffletime/miniapp-engine/internal/persona"
)

// Payload statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// User-level error codes carried in error payloads.
const (
	ErrCodeUserRejected         = "user_rejected"
	ErrCodeUserCancelled        = "user_cancelled"
	ErrCodeVerificationRejected = "verification_rejected"
)

// Verification levels accepted by the verify command.
const (
	VerificationOrb    = "orb"
	VerificationDevice = "device"
)

// ErrMissingRecipient and friends are synchronous validation failures,
// raised before any command is dispatched.
var (
	ErrMissingRecipient = errors.New("minikit: payment recipient is required")
	ErrInvalidAmount    = errors.New("minikit: payment amount must be positive")
	ErrNoWallet         = errors.New("minikit: no wallet connected")
)

// TxHashRegex matches a 0x-prefixed 64-hex-digit transaction hash.
var TxHashRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)

// WalletAuthRequest carries the SIWE nonce and statement.
type WalletAuthRequest struct {
	Nonce     string `json:"nonce"`
	Statement string `json:"statement,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// WalletAuthPayload is the final payload of the wallet auth command.
type WalletAuthPayload struct {
	Status    string `json:"status"`
	Address   string `json:"address,omitempty"`
	Message   string `json:"message,omitempty"`
	Signature string `json:"signature,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// PayRequest describes a WLD payment. Amount is a decimal string to keep
// the wire shape aligned with the backend endpoints.
type PayRequest struct {
	Reference   string `json:"reference"`
	To          string `json:"to"`
	TokenAmount string `json:"token_amount"`
	Description string `json:"description,omitempty"`
}

// PayPayload is the final payload of the pay command.
type PayPayload struct {
	Status          string `json:"status"`
	TransactionHash string `json:"transaction_id,omitempty"`
	Reference       string `json:"reference,omitempty"`
	ErrorCode       string `json:"error_code,omitempty"`
}

// VerifyRequest asks for a World ID proof at the given level.
type VerifyRequest struct {
	Action            string `json:"action"`
	Signal            string `json:"signal,omitempty"`
	VerificationLevel string `json:"verification_level"`
}

// VerifyPayload is the final payload of the verify command.
type VerifyPayload struct {
	Status            string `json:"status"`
	NullifierHash     string `json:"nullifier_hash,omitempty"`
	MerkleRoot        string `json:"merkle_root,omitempty"`
	Proof             string `json:"proof,omitempty"`
	VerificationLevel string `json:"verification_level,omitempty"`
	ErrorCode         string `json:"error_code,omitempty"`
}

// Client is the unified command surface. Two implementations exist: the
// mock simulator (development harness) and the HTTP bridge adapter. The
// instance is constructed once at startup and injected — never a mutable
// module-level global.
type Client interface {
	IsInstalled() bool
	User() *persona.MockUser
	WalletAuth(ctx context.Context, req WalletAuthRequest) (WalletAuthPayload, error)
	Pay(ctx context.Context, req PayRequest) (PayPayload, error)
	Verify(ctx context.Context, req VerifyRequest) (VerifyPayload, error)
}
