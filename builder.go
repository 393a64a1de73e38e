package goSession

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  session.Store

	logger    *zap.Logger
	auditSink AuditSink
	users     UserDirectory
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. cfg is deep-copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the session store, and the rate gate when its backend is
// "redis", with client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore overrides the session store. It takes precedence over WithRedis
// for session records.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit destination and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithUserDirectory enables [Engine.SignUp] and [Engine.SignIn].
func (b *Builder) WithUserDirectory(users UserDirectory) *Builder {
	b.users = users
	return b
}

// WithClock overrides the engine clock. Signer, store records and the
// in-memory rate window all observe it.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every collaborator.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("session store required: call WithRedis or WithStore")
		}
		store = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix)
	}

	signer, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		KeyVersion:    cfg.JWT.KeyVersion,
		Leeway:        cfg.JWT.Leeway,
		PreviousKeys:  cfg.JWT.PreviousKeys,
		Now:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
		Pepper:      cfg.Password.Pepper,
	})
	if err != nil {
		return nil, fmt.Errorf("password: %w", err)
	}

	gate, err := b.buildGate(cfg.RateLimit, now)
	if err != nil {
		return nil, err
	}

	var dispatcher *audit.Dispatcher
	if cfg.Audit.Enabled {
		sink := b.auditSink
		if sink == nil {
			sink = audit.NewZapSink(logger)
		}
		dispatcher = audit.NewDispatcher(audit.Config{
			Enabled:    true,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Now:        now,
		}, sink)
	}

	credentials := newCredentialHasher(cfg.Session.CredentialHashSecret)

	e := &Engine{
		config:       cfg,
		signer:       signer,
		store:        store,
		credentials:  credentials,
		passwordHash: hasher,
		users:        b.users,
		gate:         gate,
		audit:        dispatcher,
		metrics:      NewMetrics(cfg.Metrics),
		logger:       logger,
		now:          now,
	}
	e.flows = flows.New(flows.Deps{
		VerifyRefresh:     signer.VerifyRefresh,
		SignPair:          signer.SignPair,
		HashCredential:    credentials.Hash,
		HashEqual:         credentialHashEqual,
		KeyVersion:        signer.KeyVersion(),
		Store:             store,
		Now:               now,
		CredentialExpired: jwt.ErrCredentialExpired,
		Logger:            logger,
	})

	b.built = true
	return e, nil
}

func (b *Builder) buildGate(cfg RateLimitConfig, now func() time.Time) (*rate.Gate, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var counter rate.Counter
	switch cfg.Backend {
	case RateBackendRedis:
		if b.redis == nil {
			return nil, errors.New("redis rate limit backend requires WithRedis")
		}
		counter = rate.NewRedisWindow(b.redis, cfg.RedisPrefix)
	default:
		counter = rate.NewWindow(now)
	}

	rules := make([]rate.Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rules = append(rules, rate.Rule{Route: r.Route, Window: r.Window, MaxRequests: r.MaxRequests})
	}
	gate, err := rate.NewGate(counter, rules)
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return gate, nil
}
