package harvest

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob that influences a harvest run. All values
// originate from Viper so the pipeline can be configured via files, env
// vars, or CLI flags.
type Config struct {
	InputFile    string
	OutputFile   string
	Workers      int
	RequestDelay time.Duration
	UserAgent    string

	RequestTimeout time.Duration
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	TelemetryEnabled bool
	TelemetryListen  string
}

// LoadConfig constructs a Config by reading from Viper.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		InputFile:        v.GetString("harvest.input_file"),
		OutputFile:       v.GetString("harvest.output_file"),
		Workers:          v.GetInt("harvest.workers"),
		RequestDelay:     v.GetDuration("harvest.request_delay"),
		UserAgent:        v.GetString("harvest.user_agent"),
		RequestTimeout:   v.GetDuration("http.timeout"),
		MaxAttempts:      v.GetInt("http.max_attempts"),
		BackoffInitial:   v.GetDuration("http.backoff_initial"),
		BackoffMax:       v.GetDuration("http.backoff_max"),
		TelemetryEnabled: v.GetBool("telemetry.enabled"),
		TelemetryListen:  v.GetString("telemetry.listen"),
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("harvest.input_file must be set")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("harvest.output_file must be set")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("harvest.workers must be > 0")
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("harvest.request_delay must be >= 0")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("harvest.user_agent must be set")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.BackoffInitial <= 0 {
		return fmt.Errorf("http.backoff_initial must be > 0")
	}
	if c.BackoffMax < c.BackoffInitial {
		return fmt.Errorf("http.backoff_max must be >= http.backoff_initial")
	}
	if c.TelemetryEnabled && c.TelemetryListen == "" {
		return fmt.Errorf("telemetry.listen must be set when telemetry is enabled")
	}
	return nil
}

// EffectiveWorkers clamps the configured pool size to the host: at least 2
// workers, at most one fewer than the available CPUs, never above the
// configured ceiling.
func (c Config) EffectiveWorkers() int {
	limit := runtime.NumCPU() - 1
	if limit < 2 {
		limit = 2
	}
	if limit > c.Workers {
		return c.Workers
	}
	return limit
}
