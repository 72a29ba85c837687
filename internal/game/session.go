// Package game drives a Diamond Hands session: an intro countdown, a
// timer-driven price-tick loop, and a per-tick hold window the player must
// tap inside to stay alive. Missing a window ends the game.
package game

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/raffletime/miniapp-engine/internal/priceengine"
)

// Phase is the session lifecycle state.
type Phase string

const (
	PhaseIdle  Phase = "idle"
	PhaseIntro Phase = "intro"
	// PhaseActive is the price-tick loop; each tick opens a hold window.
	PhaseActive Phase = "active"
	// PhaseSold is terminal: a hold window expired without a tap.
	PhaseSold Phase = "sold"
)

// Default timings. Tests inject shorter durations through Config.
const (
	DefaultIntroDuration = 3 * time.Second
	DefaultCountdownTick = time.Second
	DefaultTickInterval  = 5 * time.Second
	DefaultHoldWindow    = 5 * time.Second
)

// Result is delivered to OnGameEnd exactly once when the session reaches
// the terminal sold state.
type Result struct {
	FinalPrice   float64
	Deposit      decimal.Decimal
	HeldDuration time.Duration // from session start
	Stats        priceengine.Statistics
}

// Config configures a session. Zero durations fall back to the defaults,
// so tests can run the whole machine in milliseconds. Callbacks are
// optional and are invoked outside the session lock; they must not assume
// a particular goroutine.
type Config struct {
	StartingPrice float64
	Deposit       decimal.Decimal
	IntroDuration time.Duration
	CountdownTick time.Duration
	TickInterval  time.Duration
	HoldWindow    time.Duration
	Engine        *priceengine.Engine

	OnCountdown   func(remaining int)                // cosmetic intro ticks
	OnPriceUpdate func(point priceengine.PricePoint) // one per tick
	OnHeld        func(price float64)                // tap landed in window
	OnGameEnd     func(Result)
}

// Session is the minigame state machine. All transitions are serialized by
// an internal mutex; timer callbacks that arrive after teardown are no-ops.
type Session struct {
	cfg     Config
	engine  *priceengine.Engine
	history *priceengine.History

	mu         sync.Mutex
	phase      Phase
	price      float64
	windowOpen bool
	startedAt  time.Time
	stopped    bool
	ended      bool

	introTimer  *time.Timer
	windowTimer *time.Timer
	tickerDone  chan struct{}
}

// NewSession creates an idle session; Start arms the intro countdown.
func NewSession(cfg Config) *Session {
	if cfg.IntroDuration <= 0 {
		cfg.IntroDuration = DefaultIntroDuration
	}
	if cfg.CountdownTick <= 0 {
		cfg.CountdownTick = DefaultCountdownTick
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.HoldWindow <= 0 {
		cfg.HoldWindow = DefaultHoldWindow
	}
	engine := cfg.Engine
	if engine == nil {
		engine = priceengine.NewEngine()
	}
	price := cfg.StartingPrice
	if price < priceengine.MinPrice {
		// Degenerate seeds are clamped, never rejected.
		price = priceengine.MinPrice
	}
	return &Session{
		cfg:     cfg,
		engine:  engine,
		history: priceengine.NewHistory(price),
		phase:   PhaseIdle,
		price:   price,
	}
}

// Start begins the intro countdown. Calling Start on a session that is not
// idle has no effect.
func (s *Session) Start() {
	s.mu.Lock()
	if s.phase != PhaseIdle || s.stopped {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseIntro
	s.startedAt = time.Now()
	s.introTimer = time.AfterFunc(s.cfg.IntroDuration, s.beginActive)
	s.mu.Unlock()

	if s.cfg.OnCountdown != nil {
		go s.runCountdown()
	}
}

// runCountdown emits cosmetic intro ticks. Purely visual; the intro timer,
// not this loop, drives the transition to active.
func (s *Session) runCountdown() {
	total := int(s.cfg.IntroDuration / s.cfg.CountdownTick)
	ticker := time.NewTicker(s.cfg.CountdownTick)
	defer ticker.Stop()

	for remaining := total; remaining > 0; remaining-- {
		s.cfg.OnCountdown(remaining)
		<-ticker.C
		s.mu.Lock()
		done := s.stopped || s.phase == PhaseSold
		s.mu.Unlock()
		if done {
			return
		}
	}
}

// beginActive transitions intro → active and starts the price-tick driver.
func (s *Session) beginActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseIntro || s.stopped {
		return
	}
	s.phase = PhaseActive
	s.tickerDone = make(chan struct{})
	go s.runTicks(s.tickerDone)
}

// runTicks drives the price updates while active. The first update fires
// as soon as the active phase begins — only the intro delays the game —
// and later updates follow the tick interval. Ticks are strictly
// serialized: each update completes under the lock before the next timer
// fires.
func (s *Session) runTicks(done chan struct{}) {
	s.priceTick()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.priceTick()
		}
	}
}

// priceTick recomputes the price and opens a hold window.
func (s *Session) priceTick() {
	s.mu.Lock()
	if s.phase != PhaseActive || s.stopped {
		s.mu.Unlock()
		return
	}
	if s.windowOpen {
		// Previous window unresolved; its expiry ends the game.
		s.mu.Unlock()
		return
	}

	volatility := s.engine.GenerateVolatility()
	s.price = priceengine.CalculateNewPrice(s.price, volatility)
	point := priceengine.PricePoint{
		Timestamp: time.Now().UTC(),
		Price:     s.price,
	}

	s.windowOpen = true
	s.windowTimer = time.AfterFunc(s.cfg.HoldWindow, s.windowExpired)
	cb := s.cfg.OnPriceUpdate
	s.mu.Unlock()

	if cb != nil {
		cb(point)
	}
}

// Tap registers a player reaction. Only meaningful while a hold window is
// open; taps during the intro or between windows are no-ops.
func (s *Session) Tap() {
	s.mu.Lock()
	if s.phase != PhaseActive || !s.windowOpen || s.stopped {
		s.mu.Unlock()
		return
	}
	s.windowOpen = false
	if s.windowTimer != nil {
		s.windowTimer.Stop()
		s.windowTimer = nil
	}
	price := s.price
	s.history.AddPrice(price, true)
	cb := s.cfg.OnHeld
	s.mu.Unlock()

	if cb != nil {
		cb(price)
	}
}

// windowExpired is the terminal transition: the countdown hit zero without
// a tap. Fixes the final price, records the miss, and tears down every
// timer so nothing mutates terminal state afterwards.
func (s *Session) windowExpired() {
	s.mu.Lock()
	if s.phase != PhaseActive || !s.windowOpen || s.stopped || s.ended {
		s.mu.Unlock()
		return
	}
	s.windowOpen = false
	s.windowTimer = nil
	s.history.AddPrice(s.price, false)
	s.phase = PhaseSold
	s.ended = true
	s.teardownLocked()

	result := Result{
		FinalPrice:   s.price,
		Deposit:      s.cfg.Deposit,
		HeldDuration: time.Since(s.startedAt),
		Stats:        s.history.Stats(),
	}
	cb := s.cfg.OnGameEnd
	s.mu.Unlock()

	slog.Info("game session ended",
		"final_price", result.FinalPrice,
		"held_for", result.HeldDuration.String(),
		"holds", result.Stats.TotalHolds,
		"misses", result.Stats.TotalMisses,
	)

	if cb != nil {
		cb(result)
	}
}

// Stop cancels the session without producing a result — the unmount path.
// Idempotent; no callback fires after Stop returns.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.teardownLocked()
}

// teardownLocked stops all pending timers. Caller holds the lock.
func (s *Session) teardownLocked() {
	if s.introTimer != nil {
		s.introTimer.Stop()
		s.introTimer = nil
	}
	if s.windowTimer != nil {
		s.windowTimer.Stop()
		s.windowTimer = nil
	}
	if s.tickerDone != nil {
		close(s.tickerDone)
		s.tickerDone = nil
	}
}

// Phase returns the current lifecycle state.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// CurrentPrice returns the latest computed price.
func (s *Session) CurrentPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.price
}

// History returns the points recorded so far, oldest first.
func (s *Session) History() []priceengine.PricePoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Points()
}

// Stats recomputes summary statistics from the recorded points.
func (s *Session) Stats() priceengine.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Stats()
}
