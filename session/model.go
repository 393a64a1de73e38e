package session

import "time"

// RevokeReason records why a refresh session stopped being live.
type RevokeReason string

const (
	ReasonRotated               RevokeReason = "rotated"
	ReasonLogout                RevokeReason = "logout"
	ReasonReuseDetected         RevokeReason = "reuse-detected"
	ReasonReuseMissingSession   RevokeReason = "reuse-detected-missing-session"
	ReasonAdministrativeRevoked RevokeReason = "revoked"
)

// RefreshSession is the persisted state of one refresh credential.
//
// A record is live while RevokedAt and RotatedTo are both nil and ExpiresAt is in the
// future. FamilyID is fixed at issue time and copied verbatim on every rotation.
type RefreshSession struct {
	SessionID      string       `json:"sid"`
	SubjectID      string       `json:"sub"`
	FamilyID       string       `json:"fid"`
	CredentialHash string       `json:"hash"`
	RotatedTo      *string      `json:"rotated_to,omitempty"`
	RevokedAt      *time.Time   `json:"revoked_at,omitempty"`
	RevokeReason   RevokeReason `json:"revoke_reason,omitempty"`
	KeyVersion     string       `json:"kv"`
	ClientIP       string       `json:"ip,omitempty"`
	ClientAgent    string       `json:"ua,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	ExpiresAt      time.Time    `json:"expires_at"`
}

// Live reports whether the record can still be rotated at now.
func (s *RefreshSession) Live(now time.Time) bool {
	return s.RevokedAt == nil && s.RotatedTo == nil && now.Before(s.ExpiresAt)
}

// Rotated reports whether the record was replaced by a successor.
func (s *RefreshSession) Rotated() bool {
	return s.RotatedTo != nil
}

// Revoked reports whether the record carries a revocation timestamp.
func (s *RefreshSession) Revoked() bool {
	return s.RevokedAt != nil
}

// Patch is a partial update applied to an existing record. Nil fields are left untouched.
type Patch struct {
	RotatedTo    *string
	RevokedAt    *time.Time
	RevokeReason RevokeReason

	// IfLive makes the patch conditional: it fails with ErrConcurrentUpdate when the
	// stored record is no longer live or changes between read and write.
	IfLive bool
}

func (p Patch) apply(s *RefreshSession) {
	if p.RotatedTo != nil {
		to := *p.RotatedTo
		s.RotatedTo = &to
	}
	if p.RevokedAt != nil {
		at := *p.RevokedAt
		s.RevokedAt = &at
	}
	if p.RevokeReason != "" {
		s.RevokeReason = p.RevokeReason
	}
}

// Clone returns a deep copy of s.
func (s *RefreshSession) Clone() *RefreshSession {
	if s == nil {
		return nil
	}
	out := *s
	if s.RotatedTo != nil {
		to := *s.RotatedTo
		out.RotatedTo = &to
	}
	if s.RevokedAt != nil {
		at := *s.RevokedAt
		out.RevokedAt = &at
	}
	return &out
}
