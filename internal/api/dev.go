// Package api — development harness routes. Mounted only when mock mode
// is enabled; in production builds of the binary these handlers never
// exist on the router.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/raffletime/miniapp-engine/internal/game"
	"github.com/raffletime/miniapp-engine/internal/metrics"
	"github.com/raffletime/miniapp-engine/internal/minikit"
	"github.com/raffletime/miniapp-engine/internal/persona"
	"github.com/raffletime/miniapp-engine/internal/priceengine"
	"github.com/raffletime/miniapp-engine/internal/session"
)

// DevService exposes the mock session controller, the simulated SDK
// commands, and the hold-the-price minigame over HTTP so the front end
// (and the bridge adapter) can drive them during development.
type DevService struct {
	ctrl   *session.Controller
	client minikit.Client
	hub    *Hub

	mu      sync.Mutex
	current *game.Session
}

// NewDevService creates the dev harness. hub may be nil.
func NewDevService(ctrl *session.Controller, client minikit.Client, hub *Hub) *DevService {
	return &DevService{ctrl: ctrl, client: client, hub: hub}
}

// --- Mock session control ---

// ActivateSession handles POST /api/dev/session/activate
func (d *DevService) ActivateSession(w http.ResponseWriter, r *http.Request) {
	d.ctrl.Activate(r.Context())
	writeJSON(w, http.StatusOK, d.ctrl.Snapshot())
}

// DeactivateSession handles POST /api/dev/session/deactivate
func (d *DevService) DeactivateSession(w http.ResponseWriter, r *http.Request) {
	d.ctrl.Deactivate()
	writeJSON(w, http.StatusOK, d.ctrl.Snapshot())
}

// GetSession handles GET /api/dev/session
func (d *DevService) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.ctrl.Snapshot())
}

// SwitchUser handles POST /api/dev/session/switch-user
func (d *DevService) SwitchUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Persona string `json:"persona"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := d.ctrl.SwitchUser(r.Context(), req.Persona); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, d.ctrl.Snapshot())
}

// ResetSession handles POST /api/dev/session/reset
func (d *DevService) ResetSession(w http.ResponseWriter, r *http.Request) {
	d.ctrl.ResetSession(r.Context())
	writeJSON(w, http.StatusOK, d.ctrl.Snapshot())
}

// SimulateError handles POST /api/dev/session/simulate-error
func (d *DevService) SimulateError(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	d.ctrl.SimulateError(r.Context(), req.Command)
	writeJSON(w, http.StatusOK, d.ctrl.Snapshot())
}

// SetPreferences handles POST /api/dev/session/preferences
func (d *DevService) SetPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs session.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	d.ctrl.SetPreferences(r.Context(), prefs)
	writeJSON(w, http.StatusOK, d.ctrl.Snapshot())
}

// ListPersonas handles GET /api/dev/personas
func (d *DevService) ListPersonas(w http.ResponseWriter, r *http.Request) {
	users := make([]persona.MockUser, 0, len(persona.All()))
	for _, id := range persona.All() {
		u, err := persona.ByID(id)
		if err != nil {
			continue
		}
		users = append(users, u)
	}
	writeJSON(w, http.StatusOK, users)
}

// --- Simulated SDK commands ---
// These are the endpoints the HTTP bridge adapter posts to; they resolve
// through whichever minikit.Client the server was wired with.

// CommandWalletAuth handles POST /api/dev/command/wallet-auth
func (d *DevService) CommandWalletAuth(w http.ResponseWriter, r *http.Request) {
	var req minikit.WalletAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	payload, err := d.client.WalletAuth(r.Context(), req)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	metrics.CommandsSimulated.WithLabelValues("wallet-auth", payload.Status).Inc()
	writeJSON(w, http.StatusOK, payload)
}

// CommandPay handles POST /api/dev/command/pay
// Routed through the session controller so the balance check runs before
// the command is dispatched.
func (d *DevService) CommandPay(w http.ResponseWriter, r *http.Request) {
	var req minikit.PayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(req.TokenAmount)
	if err != nil {
		writeError(w, "invalid token amount", http.StatusBadRequest)
		return
	}
	payload, err := d.ctrl.RequestPayment(r.Context(), req.Reference, req.To, amount)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	metrics.CommandsSimulated.WithLabelValues("pay", payload.Status).Inc()
	writeJSON(w, http.StatusOK, payload)
}

// CommandVerify handles POST /api/dev/command/verify
func (d *DevService) CommandVerify(w http.ResponseWriter, r *http.Request) {
	var req minikit.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	payload, err := d.client.Verify(r.Context(), req)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	metrics.CommandsSimulated.WithLabelValues("verify", payload.Status).Inc()
	writeJSON(w, http.StatusOK, payload)
}

// --- Minigame driver ---

// StartGameRequest is the JSON body for POST /api/dev/game/start.
type StartGameRequest struct {
	StartingPrice float64         `json:"starting_price"`
	Deposit       decimal.Decimal `json:"deposit"`
}

// StartGame handles POST /api/dev/game/start
// One session at a time; starting a new game tears down the old one.
func (d *DevService) StartGame(w http.ResponseWriter, r *http.Request) {
	var req StartGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.StartingPrice <= 0 {
		req.StartingPrice = 100
	}

	d.mu.Lock()
	if d.current != nil {
		// Replacing an unfinished session counts it as abandoned, same as
		// an explicit stop, so the active-sessions gauge stays balanced.
		if d.current.Phase() != game.PhaseSold {
			metrics.ActiveGameSessions.Dec()
			metrics.GameSessionsTotal.WithLabelValues("abandoned").Inc()
		}
		d.current.Stop()
	}

	sess := game.NewSession(game.Config{
		StartingPrice: req.StartingPrice,
		Deposit:       req.Deposit,
		Engine:        priceengine.NewEngine(),
		OnPriceUpdate: func(point priceengine.PricePoint) {
			d.broadcast("price_tick", map[string]any{
				"price": point.Price,
				"held":  point.Held,
			})
		},
		OnHeld: func(price float64) {
			d.broadcast("price_held", map[string]any{"price": price})
		},
		OnGameEnd: func(res game.Result) {
			metrics.ActiveGameSessions.Dec()
			metrics.GameSessionsTotal.WithLabelValues("sold").Inc()
			d.broadcast("game_ended", map[string]any{
				"final_price":   res.FinalPrice,
				"held_duration": res.HeldDuration.Seconds(),
				"total_holds":   res.Stats.TotalHolds,
				"total_misses":  res.Stats.TotalMisses,
			})
		},
	})
	d.current = sess
	d.mu.Unlock()

	metrics.ActiveGameSessions.Inc()
	sess.Start()

	slog.Info("game session started", "starting_price", req.StartingPrice)
	writeJSON(w, http.StatusOK, map[string]any{
		"phase": sess.Phase(),
		"price": sess.CurrentPrice(),
	})
}

// TapGame handles POST /api/dev/game/tap
func (d *DevService) TapGame(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	sess := d.current
	d.mu.Unlock()
	if sess == nil {
		writeError(w, "no active game", http.StatusNotFound)
		return
	}
	sess.Tap()
	writeJSON(w, http.StatusOK, map[string]any{
		"phase": sess.Phase(),
		"price": sess.CurrentPrice(),
	})
}

// StopGame handles POST /api/dev/game/stop
func (d *DevService) StopGame(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	sess := d.current
	d.current = nil
	d.mu.Unlock()
	if sess == nil {
		writeError(w, "no active game", http.StatusNotFound)
		return
	}
	if sess.Phase() != game.PhaseSold {
		metrics.ActiveGameSessions.Dec()
		metrics.GameSessionsTotal.WithLabelValues("abandoned").Inc()
	}
	sess.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"phase": sess.Phase()})
}

// GameState handles GET /api/dev/game
func (d *DevService) GameState(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	sess := d.current
	d.mu.Unlock()
	if sess == nil {
		writeError(w, "no active game", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"phase":   sess.Phase(),
		"price":   sess.CurrentPrice(),
		"history": sess.History(),
		"stats":   sess.Stats(),
	})
}

func (d *DevService) broadcast(event string, data map[string]any) {
	if d.hub != nil {
		d.hub.Notify(event, data)
	}
}
