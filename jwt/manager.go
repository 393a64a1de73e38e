package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTTL is the fixed lifetime of access credentials.
	DefaultAccessTTL = 15 * time.Minute
	// DefaultRefreshTTL is the fixed lifetime of refresh credentials.
	DefaultRefreshTTL = 7 * 24 * time.Hour
	// DefaultKeyVersion is used when no signing-key version is configured.
	DefaultKeyVersion = "v1"

	bearerPrefix = "Bearer "
)

var (
	// ErrCredentialInvalid is returned for mis-signed, malformed, or wrongly scoped credentials.
	ErrCredentialInvalid = errors.New("credential invalid")
	// ErrCredentialExpired is returned when a correctly signed credential is past its expiry.
	ErrCredentialExpired = errors.New("credential expired")
)

// KeySet holds the two HMAC secrets of one signing-key version.
type KeySet struct {
	AccessSecret  []byte
	RefreshSecret []byte
}

// Config defines a public type used by goSession APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	KeyVersion    string
	Leeway        time.Duration

	// PreviousKeys are accepted on verification only, keyed by version.
	PreviousKeys map[string]KeySet

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Manager signs and verifies the access and refresh credential classes.
//
// Manager is stateless after construction and safe for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

// AccessClaims are carried by short-lived access credentials.
type AccessClaims struct {
	KeyVersion string `json:"kv,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims are carried by refresh credentials. ID holds the session id.
type RefreshClaims struct {
	KeyVersion string `json:"kv,omitempty"`
	jwt.RegisteredClaims
}

// Pair is the result of [Manager.SignPair].
type Pair struct {
	AccessToken      string
	RefreshToken     string
	SessionID        string
	KeyVersion       string
	IssuedAt         time.Time
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// NewManager validates cfg and returns a ready [Manager].
//
// Access and refresh secrets must both be present and must differ, so a leaked
// access secret cannot mint refresh credentials.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 || cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.AccessSecret) == 0 {
		return nil, errors.New("access secret required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("refresh secret required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.Issuer == "" {
		return nil, errors.New("issuer required")
	}
	if cfg.Audience == "" {
		return nil, errors.New("audience required")
	}
	cfg.KeyVersion = strings.TrimSpace(cfg.KeyVersion)
	if cfg.KeyVersion == "" {
		cfg.KeyVersion = DefaultKeyVersion
	}
	for version, keys := range cfg.PreviousKeys {
		if strings.TrimSpace(version) == "" {
			return nil, errors.New("previous key map contains empty version")
		}
		if version == cfg.KeyVersion {
			return nil, fmt.Errorf("previous key version %q shadows the active version", version)
		}
		if len(keys.AccessSecret) == 0 || len(keys.RefreshSecret) == 0 {
			return nil, fmt.Errorf("previous key version %q is incomplete", version)
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{config: cfg, now: now}, nil
}

// KeyVersion returns the version tag stamped on newly signed credentials.
func (m *Manager) KeyVersion() string {
	return m.config.KeyVersion
}

// RefreshTTL returns the configured refresh credential lifetime.
func (m *Manager) RefreshTTL() time.Duration {
	return m.config.RefreshTTL
}

// SignPair mints an access credential and a refresh credential for subjectID.
// The refresh credential carries a freshly generated session id as its jti.
func (m *Manager) SignPair(subjectID string) (Pair, error) {
	if strings.TrimSpace(subjectID) == "" {
		return Pair{}, errors.New("subject id required")
	}

	now := m.now()
	sessionID := uuid.NewString()

	access, accessExp, err := m.signAccessAt(subjectID, now)
	if err != nil {
		return Pair{}, err
	}

	refreshExp := now.Add(m.config.RefreshTTL)
	refreshClaims := RefreshClaims{
		KeyVersion: m.config.KeyVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        sessionID,
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{m.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
	}
	refresh, err := m.sign(refreshClaims, m.config.RefreshSecret)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		SessionID:        sessionID,
		KeyVersion:       m.config.KeyVersion,
		IssuedAt:         now,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// SignAccess mints a standalone access credential for subjectID.
func (m *Manager) SignAccess(subjectID string) (string, time.Time, error) {
	if strings.TrimSpace(subjectID) == "" {
		return "", time.Time{}, errors.New("subject id required")
	}
	return m.signAccessAt(subjectID, m.now())
}

func (m *Manager) signAccessAt(subjectID string, now time.Time) (string, time.Time, error) {
	exp := now.Add(m.config.AccessTTL)
	claims := AccessClaims{
		KeyVersion: m.config.KeyVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{m.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := m.sign(claims, m.config.AccessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

func (m *Manager) sign(claims jwt.Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = m.config.KeyVersion
	return token.SignedString(secret)
}

// VerifyAccess checks an access credential and returns its subject.
// A leading "Bearer " prefix is stripped.
func (m *Manager) VerifyAccess(tokenStr string) (string, error) {
	claims, err := m.ParseAccess(tokenStr)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ParseAccess verifies an access credential and returns its claims.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	tokenStr = stripBearer(tokenStr)
	if tokenStr == "" {
		return nil, ErrCredentialInvalid
	}

	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims, func(keys KeySet) []byte { return keys.AccessSecret }); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, ErrCredentialInvalid
	}
	return claims, nil
}

// VerifyRefresh checks a refresh credential against the refresh secret.
// Subject and jti presence is left to the caller.
func (m *Manager) VerifyRefresh(tokenStr string) (*RefreshClaims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, ErrCredentialInvalid
	}

	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims, func(keys KeySet) []byte { return keys.RefreshSecret }); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims, pick func(KeySet) []byte) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		keys, ok := m.keysFor(kid)
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return pick(keys), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: %v", ErrCredentialExpired, err)
		}
		return fmt.Errorf("%w: %v", ErrCredentialInvalid, err)
	}
	if !token.Valid {
		return ErrCredentialInvalid
	}
	return nil
}

func (m *Manager) keysFor(version string) (KeySet, bool) {
	if version == m.config.KeyVersion {
		return KeySet{AccessSecret: m.config.AccessSecret, RefreshSecret: m.config.RefreshSecret}, true
	}
	keys, ok := m.config.PreviousKeys[version]
	return keys, ok
}

func stripBearer(value string) string {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, bearerPrefix) {
		value = strings.TrimSpace(value[len(bearerPrefix):])
	}
	return value
}
