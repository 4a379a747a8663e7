package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "browsershell.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10*time.Second, cfg.Loop.MaxWait.Duration)
	assert.Equal(t, 1024, cfg.Loop.EventBudget)
	assert.Equal(t, 4, cfg.Signals.Buffer)
	assert.Equal(t, []string{"SIGINT", "SIGTERM"}, cfg.Signals.QuitOn)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, map[time.Duration]int{time.Second: 5, time.Minute: 60}, cfg.DiagnosticRates())
	assert.Zero(t, cfg.Shell.Heartbeat.Duration)

	sigs, err := cfg.QuitSignals()
	require.NoError(t, err)
	assert.Equal(t, []unix.Signal{unix.SIGINT, unix.SIGTERM}, sigs)
}

func TestLoad(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Defaults(), *cfg)
	})

	t.Run("valid config", func(t *testing.T) {
		cfg, err := Load(writeFile(t, `
[loop]
max_wait = "250ms"
event_budget = 0

[signals]
buffer = 8
quit_on = ["int", "SIGHUP"]

[log]
level = "debug"
rate_per_second = 0
rate_per_minute = 100

[shell]
heartbeat = "1m30s"
`))
		require.NoError(t, err)
		assert.Equal(t, 250*time.Millisecond, cfg.Loop.MaxWait.Duration)
		assert.Equal(t, 0, cfg.Loop.EventBudget)
		assert.Equal(t, 8, cfg.Signals.Buffer)
		assert.Equal(t, map[time.Duration]int{time.Minute: 100}, cfg.DiagnosticRates())
		assert.Equal(t, 90*time.Second, cfg.Shell.Heartbeat.Duration)

		sigs, err := cfg.QuitSignals()
		require.NoError(t, err)
		assert.Equal(t, []unix.Signal{unix.SIGINT, unix.SIGHUP}, sigs)
	})

	t.Run("partial config keeps defaults", func(t *testing.T) {
		cfg, err := Load(writeFile(t, "[shell]\nheartbeat = \"5s\"\n"))
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, cfg.Shell.Heartbeat.Duration)
		assert.Equal(t, Defaults().Loop, cfg.Loop)
		assert.Equal(t, Defaults().Log, cfg.Log)
	})

	t.Run("unknown keys", func(t *testing.T) {
		_, err := Load(writeFile(t, "[loop]\nmax_wiat = \"1s\"\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "loop.max_wiat")
		assert.Contains(t, err.Error(), "possible typos")
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Load(writeFile(t, "[loop]\nmax_wait = \"soon\"\n"))
		assert.ErrorContains(t, err, "config: decode")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := Load(writeFile(t, "[signals]\nbuffer = 0\n"))
		assert.ErrorContains(t, err, "signals.buffer must be >= 1")
	})
}

func TestValidate_CollectsAllIssues(t *testing.T) {
	cfg := Defaults()
	cfg.Loop.MaxWait.Duration = -time.Second
	cfg.Loop.EventBudget = -1
	cfg.Signals.Buffer = 0
	cfg.Signals.QuitOn = []string{"SIGNOPE"}
	cfg.Log.Level = "loud"
	cfg.Log.RatePerSecond = 100
	cfg.Log.RatePerMinute = 10
	cfg.Shell.Heartbeat.Duration = -time.Minute

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"loop.max_wait",
		"loop.event_budget",
		"signals.buffer",
		`signals.quit_on: unknown signal "SIGNOPE"`,
		`log.level: unknown log level "loud"`,
		"log.rate_per_second must be below",
		"shell.heartbeat",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestWrite_RoundTrips(t *testing.T) {
	cfg := Defaults()
	cfg.Shell.Heartbeat.Duration = 2 * time.Second

	var buf bytes.Buffer
	require.NoError(t, cfg.Write(&buf))
	assert.Contains(t, buf.String(), `max_wait = "10s"`)
	assert.Contains(t, buf.String(), `heartbeat = "2s"`)

	loaded, err := Load(writeFile(t, buf.String()))
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)
}

func TestParseLevel(t *testing.T) {
	for _, level := range []logiface.Level{
		logiface.LevelDisabled,
		logiface.LevelEmergency,
		logiface.LevelAlert,
		logiface.LevelCritical,
		logiface.LevelError,
		logiface.LevelWarning,
		logiface.LevelNotice,
		logiface.LevelInformational,
		logiface.LevelDebug,
		logiface.LevelTrace,
	} {
		got, err := ParseLevel(level.String())
		require.NoError(t, err, level.String())
		assert.Equal(t, level, got)
	}

	got, err := ParseLevel(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, logiface.LevelWarning, got)

	_, err = ParseLevel("")
	assert.Error(t, err)
}

func TestParseSignal(t *testing.T) {
	for name, want := range map[string]unix.Signal{
		"SIGINT":  unix.SIGINT,
		"term":    unix.SIGTERM,
		" hup ":   unix.SIGHUP,
		"SIGUSR1": unix.SIGUSR1,
	} {
		got, err := ParseSignal(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseSignal("SIGWHAT")
	assert.Error(t, err)
}
