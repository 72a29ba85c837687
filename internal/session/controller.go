package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/raffletime/miniapp-engine/internal/config"
	"github.com/raffletime/miniapp-engine/internal/metrics"
	"github.com/raffletime/miniapp-engine/internal/minikit"
	"github.com/raffletime/miniapp-engine/internal/minikit/mock"
	"github.com/raffletime/miniapp-engine/internal/persona"
)

// SessionKey is the fixed key-value slot the session snapshot lives under.
const SessionKey = "raffletime:mock-session"

// ErrInsufficientBalance is the pre-dispatch wallet-capability rejection:
// the payment never reaches the command simulator and no transaction hash
// is generated.
var ErrInsufficientBalance = fmt.Errorf("session: wallet balance cannot cover payment")

// Preferences are the per-session developer toggles.
type Preferences struct {
	SimulateDelays         bool `json:"simulate_delays"`
	AutoLogin              bool `json:"auto_login"`
	Persist                bool `json:"persist"`
	ShowTransactionDetails bool `json:"show_transaction_details"`
}

// State is the observable mock-mode session state.
type State struct {
	Active            bool        `json:"active"`
	CurrentPersona    string      `json:"current_persona"` // empty = none
	AvailablePersonas []string    `json:"available_personas"`
	StartedAt         time.Time   `json:"started_at"`
	Preferences       Preferences `json:"preferences"`
	InteractionCount  int         `json:"interaction_count"`
	ErrorCount        int         `json:"error_count"`
}

// snapshot is the persisted subset of State.
type snapshot struct {
	Persona          string      `json:"persona"`
	Preferences      Preferences `json:"preferences"`
	InteractionCount int         `json:"interaction_count"`
	ErrorCount       int         `json:"error_count"`
	StartedAt        time.Time   `json:"started_at"`
}

// Notifier receives mock interaction events, e.g. the websocket dev feed.
type Notifier interface {
	Notify(event string, data map[string]any)
}

// Controller owns the mock session state. All mutation goes through its
// action methods; no other component touches persona/session state
// directly. State access is serialized by an internal mutex, so the dev
// harness can mount the actions as concurrent HTTP handlers. When the
// resolved configuration says mock mode is disabled, every action is a
// no-op — the production-safety boundary holds even if a caller invokes
// actions directly.
type Controller struct {
	cfg      config.MockEnvironmentConfig
	sim      *mock.Simulator
	kv       KV
	notifier Notifier

	mu    sync.Mutex
	state State
}

// NewController wires the controller to its simulator and persistence
// slot. notifier may be nil. The delay preference starts from the
// MOCK_NETWORK_DELAY feature flag; a persisted snapshot may override it
// on Activate.
func NewController(cfg config.MockEnvironmentConfig, sim *mock.Simulator, kv KV, notifier Notifier) *Controller {
	return &Controller{
		cfg:      cfg,
		sim:      sim,
		kv:       kv,
		notifier: notifier,
		state: State{
			AvailablePersonas: persona.All(),
			Preferences:       defaultPreferences(cfg),
		},
	}
}

// defaultPreferences are the session preferences before any snapshot or
// explicit SetPreferences call.
func defaultPreferences(cfg config.MockEnvironmentConfig) Preferences {
	return Preferences{
		Persist:        true,
		SimulateDelays: cfg.Features.SimulateNetworkDelay,
	}
}

// Simulator exposes the underlying command simulator for the facade.
func (c *Controller) Simulator() *mock.Simulator { return c.sim }

// Activate turns mock mode on: restores a persisted snapshot when one
// exists (corrupt or missing data falls back to defaults — never fatal),
// installs the simulator, and applies the restored preferences.
func (c *Controller) Activate(ctx context.Context) {
	if !c.cfg.IsMockEnabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Active = true
	c.state.StartedAt = time.Now().UTC()
	restored := c.loadSnapshot(ctx)

	c.sim.Install()
	if restored != "" {
		if err := c.sim.SwitchUser(restored); err != nil {
			// Persisted persona fell out of the closed set; keep default.
			slog.Warn("persisted persona no longer valid, using default", "persona", restored)
			restored = ""
		}
	}
	if restored == "" {
		restored = persona.Default()
	}
	c.state.CurrentPersona = restored

	if c.state.Preferences.SimulateDelays {
		c.sim.SetDelay(mock.DefaultDelay)
	} else {
		c.sim.SetDelay(0)
	}

	slog.Info("mock mode activated",
		"persona", c.state.CurrentPersona,
		"interactions", c.state.InteractionCount,
	)
}

// Deactivate turns mock mode off without clearing persisted state.
func (c *Controller) Deactivate() {
	if !c.cfg.IsMockEnabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Active = false
}

// SwitchUser replaces the active persona. Unknown personas fail with
// persona.ErrUnknownPersona; nothing is mutated on failure.
func (c *Controller) SwitchUser(ctx context.Context, personaID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cfg.IsMockEnabled || !c.state.Active {
		return nil
	}
	if !c.cfg.Features.AllowUserSwitching {
		return nil
	}

	if err := c.sim.SwitchUser(personaID); err != nil {
		return err
	}

	c.state.CurrentPersona = personaID
	c.state.InteractionCount++
	metrics.MockInteractions.WithLabelValues("switch_user").Inc()
	c.persist(ctx)
	c.notify("user_switched", map[string]any{"persona": personaID})
	return nil
}

// SimulateError arms a forced failure for the given command on the
// simulator and counts it. It never fails; unknown commands are ignored
// by the simulator.
func (c *Controller) SimulateError(ctx context.Context, command string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cfg.IsMockEnabled || !c.state.Active {
		return
	}
	if !c.cfg.Features.EnableErrorScenarios {
		return
	}

	c.sim.ForceError(command)
	c.state.ErrorCount++
	metrics.MockInteractions.WithLabelValues("simulate_error").Inc()
	c.persist(ctx)
	c.notify("error_armed", map[string]any{"command": command})
}

// ResetSession restores the default persona, clears forced errors, zeroes
// the counters, and deletes the persisted snapshot.
func (c *Controller) ResetSession(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cfg.IsMockEnabled || !c.state.Active {
		return
	}

	c.sim.ClearErrors()
	_ = c.sim.SwitchUser(persona.Default())
	c.state.CurrentPersona = persona.Default()
	c.state.InteractionCount = 0
	c.state.ErrorCount = 0
	c.state.Preferences = defaultPreferences(c.cfg)
	if c.state.Preferences.SimulateDelays {
		c.sim.SetDelay(mock.DefaultDelay)
	} else {
		c.sim.SetDelay(0)
	}

	if err := c.kv.RemoveItem(ctx, SessionKey); err != nil {
		slog.Warn("failed to delete persisted session", "err", err)
	}
	c.notify("session_reset", nil)
	slog.Info("mock session reset")
}

// SetPreferences replaces the session preferences and persists them.
func (c *Controller) SetPreferences(ctx context.Context, prefs Preferences) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cfg.IsMockEnabled || !c.state.Active {
		return
	}
	c.state.Preferences = prefs
	if prefs.SimulateDelays {
		c.sim.SetDelay(mock.DefaultDelay)
	} else {
		c.sim.SetDelay(0)
	}
	c.persist(ctx)
}

// Snapshot returns a copy of the observable session state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state
	st.AvailablePersonas = append([]string(nil), c.state.AvailablePersonas...)
	return st
}

// RequestPayment runs the wallet-capability check before dispatching the
// pay command: an insufficient balance is rejected here, synchronously,
// and no transaction hash is ever generated for it.
func (c *Controller) RequestPayment(ctx context.Context, reference, to string, amount decimal.Decimal) (minikit.PayPayload, error) {
	c.mu.Lock()

	if !c.cfg.IsMockEnabled || !c.state.Active {
		c.mu.Unlock()
		return minikit.PayPayload{}, nil
	}

	if to == "" {
		c.mu.Unlock()
		return minikit.PayPayload{}, minikit.ErrMissingRecipient
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		c.mu.Unlock()
		return minikit.PayPayload{}, minikit.ErrInvalidAmount
	}

	user := c.sim.User()
	if user == nil {
		c.mu.Unlock()
		return minikit.PayPayload{}, minikit.ErrNoWallet
	}
	if !persona.Wallet(*user).CanPay(amount) {
		c.mu.Unlock()
		return minikit.PayPayload{}, fmt.Errorf("%w: balance %s, amount %s",
			ErrInsufficientBalance, user.Balance.String(), amount.String())
	}

	c.state.InteractionCount++
	metrics.MockInteractions.WithLabelValues("pay").Inc()
	c.persist(ctx)

	// The dispatch itself runs outside the lock: the simulator serializes
	// its own state, and a simulated network delay must not stall other
	// controller actions.
	c.mu.Unlock()
	return c.sim.Pay(ctx, minikit.PayRequest{
		Reference:   reference,
		To:          to,
		TokenAmount: amount.String(),
	})
}

// MockResponse returns the canned payload for a command/scenario pair,
// used by UI harness code that renders responses without dispatching.
func (c *Controller) MockResponse(command, scenario string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	success := scenario == "success"
	switch command {
	case mock.CommandWalletAuth:
		if success {
			u, _ := persona.ByID(c.currentOrDefault())
			return minikit.WalletAuthPayload{Status: minikit.StatusSuccess, Address: u.WalletAddress}, nil
		}
		return minikit.WalletAuthPayload{Status: minikit.StatusError, ErrorCode: minikit.ErrCodeUserRejected}, nil
	case mock.CommandPay:
		if success {
			return minikit.PayPayload{Status: minikit.StatusSuccess}, nil
		}
		return minikit.PayPayload{Status: minikit.StatusError, ErrorCode: minikit.ErrCodeUserCancelled}, nil
	case mock.CommandVerify:
		if success {
			return minikit.VerifyPayload{Status: minikit.StatusSuccess, VerificationLevel: minikit.VerificationOrb}, nil
		}
		return minikit.VerifyPayload{Status: minikit.StatusError, ErrorCode: minikit.ErrCodeVerificationRejected}, nil
	}
	return nil, fmt.Errorf("session: unknown command %q", command)
}

// LogInteraction records a harness interaction for the debug feed.
func (c *Controller) LogInteraction(action string, data map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cfg.IsMockEnabled || !c.state.Active {
		return
	}
	c.state.InteractionCount++
	metrics.MockInteractions.WithLabelValues(action).Inc()
	if c.cfg.EnableDebugLogging {
		slog.Debug("mock interaction", "action", action, "data", data)
	}
	c.notify(action, data)
}

func (c *Controller) currentOrDefault() string {
	if c.state.CurrentPersona != "" {
		return c.state.CurrentPersona
	}
	return persona.Default()
}

// loadSnapshot restores persisted state. Any read or parse failure is
// treated as a cache miss — corrupted persisted state is never fatal.
// Returns the restored persona id, or "" when nothing usable was stored.
func (c *Controller) loadSnapshot(ctx context.Context) string {
	raw, err := c.kv.GetItem(ctx, SessionKey)
	if err != nil {
		if err != ErrNotFound {
			slog.Warn("failed to load persisted session", "err", err)
		}
		return ""
	}

	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		slog.Warn("persisted session is corrupt, using defaults", "err", err)
		return ""
	}

	c.state.Preferences = snap.Preferences
	c.state.InteractionCount = snap.InteractionCount
	c.state.ErrorCount = snap.ErrorCount
	if !snap.StartedAt.IsZero() {
		c.state.StartedAt = snap.StartedAt
	}
	return snap.Persona
}

// persist writes the session snapshot. Best effort: a failed write is
// logged and absorbed, it never fails an action.
func (c *Controller) persist(ctx context.Context) {
	if !c.state.Preferences.Persist {
		return
	}
	data, err := json.Marshal(snapshot{
		Persona:          c.state.CurrentPersona,
		Preferences:      c.state.Preferences,
		InteractionCount: c.state.InteractionCount,
		ErrorCount:       c.state.ErrorCount,
		StartedAt:        c.state.StartedAt,
	})
	if err != nil {
		return
	}
	if err := c.kv.SetItem(ctx, SessionKey, string(data)); err != nil {
		slog.Warn("failed to persist session snapshot", "err", err)
	}
}

func (c *Controller) notify(event string, data map[string]any) {
	if c.notifier != nil {
		c.notifier.Notify(event, data)
	}
}
