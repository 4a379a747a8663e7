// Package config parses browsershell.toml configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeycumines/logiface"
	"golang.org/x/sys/unix"
)

// Config is the top-level browsershell.toml configuration.
type Config struct {
	Loop    LoopConfig    `toml:"loop"`
	Signals SignalsConfig `toml:"signals"`
	Log     LogConfig     `toml:"log"`
	Shell   ShellConfig   `toml:"shell"`
}

// LoopConfig controls the native run loop.
type LoopConfig struct {
	MaxWait     Duration `toml:"max_wait"`     // cap on a single blocking wait
	EventBudget int      `toml:"event_budget"` // posted events per iteration; 0 = unlimited
}

// SignalsConfig controls signal trapping.
type SignalsConfig struct {
	Buffer int      `toml:"buffer"`
	QuitOn []string `toml:"quit_on"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level         string `toml:"level"`
	RatePerSecond int    `toml:"rate_per_second"` // 0 = unlimited
	RatePerMinute int    `toml:"rate_per_minute"` // 0 = unlimited
}

// ShellConfig controls the shell process itself.
type ShellConfig struct {
	Heartbeat Duration `toml:"heartbeat"` // 0 = disabled
}

// Duration is a time.Duration that reads and writes as a string like "10s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config with the defaults used when no file is given.
func Defaults() Config {
	return Config{
		Loop: LoopConfig{
			MaxWait:     Duration{10 * time.Second},
			EventBudget: 1024,
		},
		Signals: SignalsConfig{
			Buffer: 4,
			QuitOn: []string{"SIGINT", "SIGTERM"},
		},
		Log: LogConfig{
			Level:         "info",
			RatePerSecond: 5,
			RatePerMinute: 60,
		},
	}
}

// Validate checks the configuration for issues that would cause confusing
// runtime failures. It returns all found issues joined together.
func (c *Config) Validate() error {
	var errs []error

	if c.Loop.MaxWait.Duration < 0 {
		errs = append(errs, fmt.Errorf("loop.max_wait must be >= 0"))
	}
	if c.Loop.EventBudget < 0 {
		errs = append(errs, fmt.Errorf("loop.event_budget must be >= 0 (0 = unlimited)"))
	}

	if c.Signals.Buffer < 1 {
		errs = append(errs, fmt.Errorf("signals.buffer must be >= 1"))
	}
	for _, name := range c.Signals.QuitOn {
		if _, err := ParseSignal(name); err != nil {
			errs = append(errs, fmt.Errorf("signals.quit_on: %w", err))
		}
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.RatePerSecond < 0 || c.Log.RatePerMinute < 0 {
		errs = append(errs, fmt.Errorf("log.rate_per_second and log.rate_per_minute must be >= 0 (0 = unlimited)"))
	} else if c.Log.RatePerSecond > 0 && c.Log.RatePerMinute > 0 &&
		(c.Log.RatePerSecond >= c.Log.RatePerMinute || c.Log.RatePerSecond*60 <= c.Log.RatePerMinute) {
		errs = append(errs, fmt.Errorf("log.rate_per_second must be below log.rate_per_minute, and above a sixtieth of it"))
	}

	if c.Shell.Heartbeat.Duration < 0 {
		errs = append(errs, fmt.Errorf("shell.heartbeat must be >= 0 (0 = disabled)"))
	}

	return errors.Join(errs...)
}

// DiagnosticRates returns the per category diagnostic limits, in the form
// accepted by catrate.NewLimiter. An empty map means unlimited.
func (c *Config) DiagnosticRates() map[time.Duration]int {
	rates := make(map[time.Duration]int, 2)
	if c.Log.RatePerSecond > 0 {
		rates[time.Second] = c.Log.RatePerSecond
	}
	if c.Log.RatePerMinute > 0 {
		rates[time.Minute] = c.Log.RatePerMinute
	}
	return rates
}

// QuitSignals returns the parsed signals.quit_on list.
func (c *Config) QuitSignals() ([]unix.Signal, error) {
	out := make([]unix.Signal, 0, len(c.Signals.QuitOn))
	for _, name := range c.Signals.QuitOn {
		sig, err := ParseSignal(name)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, nil
}

// Load reads the configuration at path over the defaults. An empty path
// returns the defaults. Returns an error if the file contains unknown keys
// (likely typos), or fails validation.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return &cfg, nil
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s (possible typos?)", path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}

	return &cfg, nil
}

// Write encodes c as TOML.
func (c *Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// ParseLevel maps a level keyword, as printed by logiface.Level.String, to
// its level. A few common aliases are also accepted.
func ParseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "off", "none":
		return logiface.LevelDisabled, nil
	case "emerg", "emergency":
		return logiface.LevelEmergency, nil
	case "alert":
		return logiface.LevelAlert, nil
	case "crit", "critical":
		return logiface.LevelCritical, nil
	case "err", "error":
		return logiface.LevelError, nil
	case "warning", "warn":
		return logiface.LevelWarning, nil
	case "notice":
		return logiface.LevelNotice, nil
	case "info", "informational":
		return logiface.LevelInformational, nil
	case "debug":
		return logiface.LevelDebug, nil
	case "trace":
		return logiface.LevelTrace, nil
	default:
		return logiface.LevelDisabled, fmt.Errorf("unknown log level %q", s)
	}
}

// ParseSignal maps a signal name such as "SIGINT" or "int" to its number.
func ParseSignal(name string) (unix.Signal, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if !strings.HasPrefix(n, "SIG") {
		n = "SIG" + n
	}
	sig := unix.SignalNum(n)
	if sig == 0 {
		return 0, fmt.Errorf("unknown signal %q", name)
	}
	return sig, nil
}
