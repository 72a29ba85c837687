// Package config resolves the deployment environment flags that gate mock
// mode. Flags are captured once at startup into an Environment value and
// threaded explicitly — nothing in this module reads the process environment
// ad hoc, so the "mock mode is impossible outside development" invariant is
// auditable in one place.
package config

import (
	"log/slog"
	"os"
)

// Deployment stages. Mock mode only ever activates in StageDevelopment.
const (
	StageDevelopment = "development"
	StageStaging     = "staging"
	StageProduction  = "production"
)

// MockLevelFull is the default mock detail level.
const MockLevelFull = "full"

// Environment holds the raw deployment flags, captured once.
// Zero value means "flag absent", which always resolves to safe defaults.
type Environment struct {
	Stage            string // APP_ENV
	MockEnabled      string // MOCK_MODE
	VisualIndicators string // MOCK_VISUAL_INDICATORS
	DebugLogging     string // MOCK_DEBUG_LOGGING
	MockLevel        string // MOCK_LEVEL
	NetworkDelay     string // MOCK_NETWORK_DELAY
	ErrorScenarios   string // MOCK_ERROR_SCENARIOS
}

// Features are the independently togglable mock sub-flags.
type Features struct {
	AllowUserSwitching   bool `json:"allow_user_switching"`
	SimulateNetworkDelay bool `json:"simulate_network_delay"`
	EnableErrorScenarios bool `json:"enable_error_scenarios"`
}

// MockEnvironmentConfig is the derived mock-mode configuration record.
type MockEnvironmentConfig struct {
	IsMockEnabled        bool     `json:"is_mock_enabled"`
	ShowVisualIndicators bool     `json:"show_visual_indicators"`
	EnableDebugLogging   bool     `json:"enable_debug_logging"`
	CurrentEnvironment   string   `json:"current_environment"`
	MockLevel            string   `json:"mock_level"`
	Features             Features `json:"features"`
}

// FromLookup builds an Environment from a flag lookup function.
// Absent flags stay empty and resolve to defaults downstream.
func FromLookup(lookup func(string) (string, bool)) Environment {
	get := func(key string) string {
		v, _ := lookup(key)
		return v
	}
	return Environment{
		Stage:            get("APP_ENV"),
		MockEnabled:      get("MOCK_MODE"),
		VisualIndicators: get("MOCK_VISUAL_INDICATORS"),
		DebugLogging:     get("MOCK_DEBUG_LOGGING"),
		MockLevel:        get("MOCK_LEVEL"),
		NetworkDelay:     get("MOCK_NETWORK_DELAY"),
		ErrorScenarios:   get("MOCK_ERROR_SCENARIOS"),
	}
}

// FromOS captures the process environment.
func FromOS() Environment {
	return FromLookup(os.LookupEnv)
}

// IsMockModeEnabled reports whether mock mode is active: the stage must be
// exactly "development" AND the mock flag exactly "true". Every other stage
// forces false regardless of the mock flag — this is the hard safety
// invariant, not a default.
func (e Environment) IsMockModeEnabled() bool {
	return e.Stage == StageDevelopment && e.MockEnabled == "true"
}

// MockConfig derives the full mock-mode configuration. When mock mode is
// disabled, the visual-indicator, debug-logging, and error-scenario flags
// are forced off no matter what their raw values say.
func (e Environment) MockConfig() MockEnvironmentConfig {
	enabled := e.IsMockModeEnabled()

	level := e.MockLevel
	if level == "" || !enabled {
		level = MockLevelFull
	}

	cfg := MockEnvironmentConfig{
		IsMockEnabled:      enabled,
		CurrentEnvironment: e.Stage,
		MockLevel:          level,
		Features: Features{
			// User switching is a UI-only affordance; it stays on even
			// when mock mode itself is off.
			AllowUserSwitching: true,
		},
	}

	if enabled {
		cfg.ShowVisualIndicators = e.VisualIndicators == "true"
		cfg.EnableDebugLogging = e.DebugLogging == "true"
		cfg.Features.SimulateNetworkDelay = e.NetworkDelay == "true"
		cfg.Features.EnableErrorScenarios = e.ErrorScenarios == "true"
	}

	return cfg
}

// anyMockFlagSet reports whether any mock-related flag is present at all.
func (e Environment) anyMockFlagSet() bool {
	return e.MockEnabled != "" ||
		e.VisualIndicators != "" ||
		e.DebugLogging != "" ||
		e.MockLevel != "" ||
		e.NetworkDelay != "" ||
		e.ErrorScenarios != ""
}

// ValidateProductionSafety returns false and logs exactly one warning when
// the stage is production and any mock flag is set. Safe configurations
// return true silently. It never fails.
func (e Environment) ValidateProductionSafety(logger *slog.Logger) bool {
	if e.Stage != StageProduction || !e.anyMockFlagSet() {
		return true
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("mock configuration flags detected in production; mock mode stays disabled",
		"stage", e.Stage,
	)
	return false
}
