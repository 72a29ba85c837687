package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestIsMockModeEnabled(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want bool
	}{
		{
			name: "development with mock flag",
			vars: map[string]string{"APP_ENV": "development", "MOCK_MODE": "true"},
			want: true,
		},
		{
			name: "development without mock flag",
			vars: map[string]string{"APP_ENV": "development"},
			want: false,
		},
		{
			name: "development with mock flag false",
			vars: map[string]string{"APP_ENV": "development", "MOCK_MODE": "false"},
			want: false,
		},
		{
			name: "production with mock flag",
			vars: map[string]string{"APP_ENV": "production", "MOCK_MODE": "true"},
			want: false,
		},
		{
			name: "staging with mock flag",
			vars: map[string]string{"APP_ENV": "staging", "MOCK_MODE": "true"},
			want: false,
		},
		{
			name: "missing everything",
			vars: map[string]string{},
			want: false,
		},
		{
			name: "mock flag not exactly true",
			vars: map[string]string{"APP_ENV": "development", "MOCK_MODE": "TRUE"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := FromLookup(lookupFrom(tt.vars))
			assert.Equal(t, tt.want, env.IsMockModeEnabled())
		})
	}
}

func TestMockConfigDisabledZeroesFeatures(t *testing.T) {
	env := FromLookup(lookupFrom(map[string]string{
		"APP_ENV":                "production",
		"MOCK_MODE":              "true",
		"MOCK_VISUAL_INDICATORS": "true",
		"MOCK_DEBUG_LOGGING":     "true",
		"MOCK_NETWORK_DELAY":     "true",
		"MOCK_ERROR_SCENARIOS":   "true",
	}))

	cfg := env.MockConfig()
	require.False(t, cfg.IsMockEnabled)
	assert.False(t, cfg.ShowVisualIndicators)
	assert.False(t, cfg.EnableDebugLogging)
	assert.False(t, cfg.Features.SimulateNetworkDelay)
	assert.False(t, cfg.Features.EnableErrorScenarios)
}

func TestMockConfigEnabledReadsFlags(t *testing.T) {
	env := FromLookup(lookupFrom(map[string]string{
		"APP_ENV":                "development",
		"MOCK_MODE":              "true",
		"MOCK_VISUAL_INDICATORS": "true",
		"MOCK_NETWORK_DELAY":     "true",
	}))

	cfg := env.MockConfig()
	require.True(t, cfg.IsMockEnabled)
	assert.True(t, cfg.ShowVisualIndicators)
	assert.False(t, cfg.EnableDebugLogging)
	assert.True(t, cfg.Features.SimulateNetworkDelay)
	assert.False(t, cfg.Features.EnableErrorScenarios)
	assert.True(t, cfg.Features.AllowUserSwitching)
	assert.Equal(t, MockLevelFull, cfg.MockLevel)
	assert.Equal(t, StageDevelopment, cfg.CurrentEnvironment)
}

func TestValidateProductionSafety(t *testing.T) {
	warningCount := func(vars map[string]string) int {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		env := FromLookup(lookupFrom(vars))
		env.ValidateProductionSafety(logger)
		return strings.Count(buf.String(), "level=WARN")
	}

	t.Run("production with mock flags warns once", func(t *testing.T) {
		n := warningCount(map[string]string{
			"APP_ENV":            "production",
			"MOCK_MODE":          "true",
			"MOCK_DEBUG_LOGGING": "true",
		})
		assert.Equal(t, 1, n)
	})

	t.Run("production without mock flags is silent", func(t *testing.T) {
		n := warningCount(map[string]string{"APP_ENV": "production"})
		assert.Zero(t, n)
	})

	t.Run("development with mock flags is silent", func(t *testing.T) {
		n := warningCount(map[string]string{
			"APP_ENV":   "development",
			"MOCK_MODE": "true",
		})
		assert.Zero(t, n)
	})
}
