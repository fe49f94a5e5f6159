package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/croftbar/authcore/internal/audit"
	"github.com/croftbar/authcore/jwt"
	"github.com/croftbar/authcore/password"
	"github.com/croftbar/authcore/rbac"
	"github.com/croftbar/authcore/refresh"
)

// Builder assembles an [Engine]. A zero builder starts from [DefaultConfig];
// each With method overrides one dependency. Build is one-shot.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	policy    rbac.Matrix
	provider  PrincipalProvider
	auditSink AuditSink

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing the refresh store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPolicy replaces the default permission matrix. The matrix is cloned at
// Build so later mutation of the argument has no effect.
func (b *Builder) WithPolicy(m rbac.Matrix) *Builder {
	b.policy = m
	return b
}

// WithPrincipalProvider sets the credential store.
func (b *Builder) WithPrincipalProvider(p PrincipalProvider) *Builder {
	b.provider = p
	return b
}

// WithAuditSink sets the sink receiving audit events and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires dependencies, and returns a ready
// engine. The builder cannot be reused afterwards.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.provider == nil {
		return nil, errors.New("principal provider required")
	}

	cfg := b.config
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(cfg.JWT)
	if err != nil {
		return nil, err
	}

	ph, err := password.NewArgon2(cfg.Password)
	if err != nil {
		return nil, err
	}

	policy := b.policy
	if policy == nil {
		policy = rbac.Default()
	}

	engine := &Engine{
		config:       cfg,
		jwtManager:   jm,
		passwordHash: ph,
		refreshStore: refresh.NewStore(b.redis, cfg.RefreshKeyPrefix),
		policy:       policy.Clone(),
		provider:     b.provider,
		metrics:      NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}

	b.built = true

	return engine, nil
}
