package authcore

import (
	"fmt"
	"time"

	"github.com/croftbar/authcore/jwt"
	"github.com/croftbar/authcore/password"
)

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	// Enabled turns audit emission on. When false no dispatcher goroutine is
	// started and Emit calls are no-ops.
	Enabled bool

	// BufferSize is the dispatcher channel capacity.
	BufferSize int

	// DropIfFull discards events instead of blocking when the buffer is full.
	// Dropped events are counted and reported via Engine.AuditDropped.
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled bool

	// LatencyEnabled additionally records the validation latency histogram.
	LatencyEnabled bool
}

// Config is the full engine configuration. Zero values are filled from
// DefaultConfig by the builder; explicit invalid values fail Build.
type Config struct {
	// JWT configures the access-token codec. Secret or key material must be
	// supplied by the caller; there is no default signing key.
	JWT jwt.Config

	// RefreshTTL is the refresh-token lifetime.
	RefreshTTL time.Duration

	// RefreshKeyPrefix namespaces refresh records in Redis.
	RefreshKeyPrefix string

	// Password configures argon2id hashing parameters.
	Password password.Config

	Audit   AuditConfig
	Metrics MetricsConfig
}

// DefaultConfig returns the baseline configuration: 30-minute access tokens,
// 7-day refresh tokens, argon2id defaults, audit and metrics off. Signing
// material is intentionally absent.
func DefaultConfig() Config {
	return Config{
		JWT: jwt.Config{
			AccessTTL:     30 * time.Minute,
			SigningMethod: jwt.MethodHS256,
		},
		RefreshTTL:       7 * 24 * time.Hour,
		RefreshKeyPrefix: "ac",
		Password:         password.DefaultConfig(),
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			LatencyEnabled: true,
		},
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.JWT.AccessTTL == 0 {
		c.JWT.AccessTTL = def.JWT.AccessTTL
	}
	if c.JWT.SigningMethod == "" {
		c.JWT.SigningMethod = def.JWT.SigningMethod
	}
	if c.RefreshTTL == 0 {
		c.RefreshTTL = def.RefreshTTL
	}
	if c.RefreshKeyPrefix == "" {
		c.RefreshKeyPrefix = def.RefreshKeyPrefix
	}
	if c.Password.Memory == 0 {
		c.Password = def.Password
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = def.Audit.BufferSize
	}
}

func (c *Config) validate() error {
	if c.RefreshTTL <= 0 {
		return fmt.Errorf("config: refresh ttl must be positive, got %s", c.RefreshTTL)
	}
	if c.JWT.AccessTTL >= c.RefreshTTL {
		return fmt.Errorf("config: access ttl %s must be shorter than refresh ttl %s",
			c.JWT.AccessTTL, c.RefreshTTL)
	}
	return nil
}
