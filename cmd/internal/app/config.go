package app

import (
	"fmt"
	"time"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"
	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/realtime"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // json | pretty
	LogColor  bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// TickInterval is the cadence at which every session is fed its range
	// signal and its tick.
	TickInterval     time.Duration
	RetainTerminated time.Duration
	RetainIdle       time.Duration

	MetricsEnabled bool

	Consent consent.Config
	Gateway realtime.GatewayConfig
}

// LoadConfig loads Config from environment variables with defaults.
// Only the consent thresholds are validated strictly; they fail with
// consent.ErrConfig.
func LoadConfig() (Config, error) {
	cc, err := consent.LoadConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("load consent config: %w", err)
	}

	gw := realtime.DefaultGatewayConfig()
	gw.OriginRequired = EnvBool("CONSENT_WS_ORIGIN_REQUIRED", gw.OriginRequired)
	gw.AllowedOrigins = EnvCSV("CONSENT_WS_ALLOWED_ORIGINS", gw.AllowedOrigins)
	gw.InsecureSkipVerify = EnvBool("CONSENT_WS_DEV_INSECURE", false)
	gw.WriteTimeout = EnvDuration("CONSENT_WS_WRITE_TIMEOUT", gw.WriteTimeout)
	gw.ReadIdleTimeout = EnvDuration("CONSENT_WS_READ_IDLE_TIMEOUT", gw.ReadIdleTimeout)
	gw.SendQueueSize = EnvInt("CONSENT_WS_SEND_QUEUE", gw.SendQueueSize)
	gw.HeartbeatInterval = EnvDuration("CONSENT_WS_HEARTBEAT_INTERVAL", gw.HeartbeatInterval)
	gw.HeartbeatTimeout = EnvDuration("CONSENT_WS_HEARTBEAT_TIMEOUT", gw.HeartbeatTimeout)
	gw.RateEvents = EnvInt("CONSENT_WS_RATE_EVENTS", gw.RateEvents)
	gw.RateWindow = EnvDuration("CONSENT_WS_RATE_WINDOW", gw.RateWindow)

	return Config{
		HTTPAddr:  EnvString("CONSENT_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("CONSENT_LOG_LEVEL", "info"),
		LogFormat: EnvString("CONSENT_LOG_FORMAT", "json"),
		LogColor:  EnvBool("CONSENT_LOG_COLOR", false) && EnvString("NO_COLOR", "") == "",

		ReadHeaderTimeout: EnvDuration("CONSENT_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("CONSENT_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("CONSENT_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("CONSENT_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("CONSENT_HTTP_MAX_HEADER_BYTES", 1<<20),

		TickInterval:     EnvDuration("CONSENT_TICK_INTERVAL", 100*time.Millisecond),
		RetainTerminated: EnvDuration("CONSENT_RETAIN_TERMINATED", 30*time.Second),
		RetainIdle:       EnvDuration("CONSENT_RETAIN_IDLE", 2*time.Minute),

		MetricsEnabled: EnvBool("CONSENT_METRICS_ENABLED", true),

		Consent: cc,
		Gateway: gw,
	}, nil
}
