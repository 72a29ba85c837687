package minikit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/raffletime/miniapp-engine/internal/persona"
)

// Bridge is the production Client: it forwards each command to the host
// app's local command endpoint as an opaque HTTP round trip and decodes
// the final payload. The bridge adds no semantics of its own — user-level
// failures come back inside the payload, transport failures as errors.
type Bridge struct {
	baseURL string
	http    *http.Client
}

// NewBridge creates a bridge adapter for the host command endpoint.
// Pass nil to use a default client with a 30s timeout.
func NewBridge(baseURL string, client *http.Client) *Bridge {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Bridge{baseURL: baseURL, http: client}
}

// IsInstalled always reports true: the bridge only exists when the host
// app injected its command endpoint.
func (b *Bridge) IsInstalled() bool { return true }

// User returns nil; the authenticated user is established through the
// wallet auth round trip, not held by the bridge.
func (b *Bridge) User() *persona.MockUser { return nil }

// WalletAuth forwards the wallet auth command.
func (b *Bridge) WalletAuth(ctx context.Context, req WalletAuthRequest) (WalletAuthPayload, error) {
	var payload WalletAuthPayload
	err := b.post(ctx, "/command/wallet-auth", req, &payload)
	return payload, err
}

// Pay forwards the pay command.
func (b *Bridge) Pay(ctx context.Context, req PayRequest) (PayPayload, error) {
	var payload PayPayload
	err := b.post(ctx, "/command/pay", req, &payload)
	return payload, err
}

// Verify forwards the verify command.
func (b *Bridge) Verify(ctx context.Context, req VerifyRequest) (VerifyPayload, error) {
	var payload VerifyPayload
	err := b.post(ctx, "/command/verify", req, &payload)
	return payload, err
}

func (b *Bridge) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("minikit: encode %s request: %w", path, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("minikit: build %s request: %w", path, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("minikit: %s round trip: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("minikit: %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("minikit: decode %s payload: %w", path, err)
	}
	return nil
}

var _ Client = (*Bridge)(nil)
