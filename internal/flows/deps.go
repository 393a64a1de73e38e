package flows

import (
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"go.uber.org/zap"
)

// ClientMeta describes the client presenting a credential.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// Deps groups the dependencies shared by every session flow. The root engine
// builds this once and delegates request methods to the matching flow.
type Deps struct {
	VerifyRefresh  func(string) (*jwt.RefreshClaims, error)
	SignPair       func(subjectID string) (jwt.Pair, error)
	HashCredential func(string) string
	HashEqual      func(stored, computed string) bool
	KeyVersion     string
	Store          session.Store
	Now            func() time.Time
	// CredentialExpired is matched with errors.Is to split expired from invalid credentials.
	CredentialExpired error
	Logger            *zap.Logger
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// recordTTL converts an absolute expiry to a store TTL with a one second floor.
func recordTTL(expiresAt, now time.Time) time.Duration {
	ttl := expiresAt.Sub(now)
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}
