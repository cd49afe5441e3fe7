package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairview-ems/aoi-grader/internal/grading"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "aoi-grader.db", cfg.Store.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 10, cfg.Server.RateLimit, 1e-9)
	assert.Equal(t, 20, cfg.Server.RateBurst)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.InDelta(t, grading.DefaultSeverity, cfg.Grading.KSeverity, 1e-9)
	assert.Empty(t, cfg.Grading.IgnorePhrases)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AOIGRADER_STORE_DRIVER", "postgres")
	t.Setenv("AOIGRADER_SERVER_PORT", "9090")
	t.Setenv("AOIGRADER_GRADING_K_SEVERITY", "25.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 25.5, cfg.Grading.KSeverity, 1e-9)
}

func TestGapDiscountDefaultPolicy(t *testing.T) {
	t.Parallel()

	p, err := GradingConfig{}.GapDiscount()
	require.NoError(t, err)
	assert.InDelta(t, 0.85, p.Discount(1), 1e-9)
	assert.InDelta(t, 0.70, p.Discount(math.NaN()), 1e-9)
}

func TestGapDiscountPolicyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"tiers:\n  - max_gap_days: 1\n    discount: 0.95\nfloor_discount: 0.2\nunknown_gap_discount: 0.5\n",
	), 0o644))

	p, err := GradingConfig{PolicyFile: path}.GapDiscount()
	require.NoError(t, err)
	assert.InDelta(t, 0.95, p.Discount(0), 1e-9)
	assert.InDelta(t, 0.2, p.Discount(30), 1e-9)

	_, err = GradingConfig{PolicyFile: filepath.Join(t.TempDir(), "absent.yaml")}.GapDiscount()
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nope"}))
}
