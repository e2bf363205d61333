package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-cuadres/internal/config"
)

func TestParseFlagsUsesConfiguredEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cuadre.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  delta_mode: sum\n  max_parallel: 3\n"), 0o600))
	t.Setenv("CUADRE_CONFIG", path)
	t.Setenv("TIMEZONE", "America/Bogota")
	t.Setenv("DATABASE_URL", "postgres://cuadres@localhost/cuadres")

	defaults, err := config.Read()
	require.NoError(t, err)
	opts, err := parseFlags([]string{"-casino", "1", "-start", "2024-01-01", "-end", "2024-01-31"}, defaults)
	require.NoError(t, err)

	assert.Equal(t, "America/Bogota", opts.timezone)
	assert.Equal(t, "sum", opts.mode)
	assert.Equal(t, 3, opts.maxParallel)
	assert.Equal(t, "postgres://cuadres@localhost/cuadres", opts.dbURL)
}

func TestPeriodFollowsTimezone(t *testing.T) {
	opts := options{start: "2024-01-01", end: "2024-01-31", timezone: "America/Bogota"}
	period, loc, err := opts.period()
	require.NoError(t, err)
	assert.Equal(t, "America/Bogota", loc.String())

	assert.True(t, period.Contains(time.Date(2024, 1, 1, 8, 0, 0, 0, loc)))
	assert.True(t, period.Contains(time.Date(2024, 1, 31, 22, 0, 0, 0, loc)))
	// 03:00 UTC on Feb 1 is still Jan 31 in Bogota
	assert.True(t, period.Contains(time.Date(2024, 2, 1, 3, 0, 0, 0, time.UTC)))
	assert.False(t, period.Contains(time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)))
}

func TestParseFlagsRequiresCasinoAndPeriod(t *testing.T) {
	defaults := config.Config{DatabaseURL: "postgres://x"}
	_, err := parseFlags([]string{"-start", "2024-01-01", "-end", "2024-01-31"}, defaults)
	assert.Error(t, err)
	_, err = parseFlags([]string{"-casino", "1"}, defaults)
	assert.Error(t, err)
	_, err = parseFlags([]string{"-casino", "1", "-start", "2024-01-01", "-end", "2024-01-31"}, config.Config{})
	assert.Error(t, err)
}
