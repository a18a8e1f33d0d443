package consent

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the immutable parameters of one session.
type Config struct {
	// MaxRangeMeters is the distance beyond which the interaction cannot
	// start or continue.
	MaxRangeMeters float64

	// RequestTimeout is how long a pending request may remain unanswered.
	RequestTimeout time.Duration
}

// DefaultConfig returns 2 m range and an 8 s request timeout.
func DefaultConfig() Config {
	return Config{
		MaxRangeMeters: 2.0,
		RequestTimeout: 8 * time.Second,
	}
}

// Validate checks that both parameters are positive and finite.
func (c Config) Validate() error {
	if math.IsNaN(c.MaxRangeMeters) || math.IsInf(c.MaxRangeMeters, 0) || c.MaxRangeMeters <= 0 {
		return fmt.Errorf("%w: max range must be positive, got %v", ErrConfig, c.MaxRangeMeters)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be positive, got %s", ErrConfig, c.RequestTimeout)
	}
	return nil
}

// LoadConfigFromEnv overlays environment values on DefaultConfig.
//
// Optional:
//   - CONSENT_MAX_RANGE_METERS (float, meters)
//   - CONSENT_REQUEST_TIMEOUT (Go duration, e.g. "8s")
//
// Returns an error wrapping ErrConfig if a value is present but invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("CONSENT_MAX_RANGE_METERS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("%w: CONSENT_MAX_RANGE_METERS: %v", ErrConfig, err)
		}
		cfg.MaxRangeMeters = f
	}

	if v := strings.TrimSpace(os.Getenv("CONSENT_REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: CONSENT_REQUEST_TIMEOUT: %v", ErrConfig, err)
		}
		cfg.RequestTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
