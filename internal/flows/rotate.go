package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"go.uber.org/zap"
)

// RotateFailureKind classifies rotation failures for root-level mapping.
type RotateFailureKind int

const (
	RotateFailureNone RotateFailureKind = iota
	RotateFailureExpired
	RotateFailureInvalid
	RotateFailureLookup
	RotateFailureReuse
	RotateFailureSign
	RotateFailurePersist
)

// ReuseCause names the condition that classified a presentation as reuse.
type ReuseCause string

const (
	CauseMissingSession     ReuseCause = "missing_session"
	CauseHashMismatch       ReuseCause = "hash_mismatch"
	CauseRevoked            ReuseCause = "revoked"
	CauseRotated            ReuseCause = "rotated"
	CauseSubjectMismatch    ReuseCause = "subject_mismatch"
	CauseConcurrentRotation ReuseCause = "concurrent_rotation"
)

// RotateResult carries either the rotated pair or failure metadata.
type RotateResult struct {
	Failure   RotateFailureKind
	Err       error
	Cause     ReuseCause
	SubjectID string
	SessionID string
	FamilyID  string
	// Lineage is set when a reuse verdict triggered a subject-wide revocation.
	Lineage *LineageResult
	Pair    jwt.Pair
	Next    *session.RefreshSession
}

// RunRotate exchanges a live refresh credential for a new pair.
//
// Verification happens before any store access. Once the stored record is found
// and matches, the new pair is signed and persisted in order: put the new
// record, index it, then tombstone the old record with a conditional patch.
// The tombstone is the commit point. A failure before it leaves the presented
// credential live, so the client may retry with it; a successor written by a
// failed attempt was never handed out and expires on its own. Unindexing the
// old id happens after the commit and only logs on failure.
//
// The persist phase ignores cancellation of ctx so a rotation is never left
// half applied.
func RunRotate(ctx context.Context, refreshToken string, meta ClientMeta, deps Deps) RotateResult {
	claims, err := deps.VerifyRefresh(refreshToken)
	if err != nil {
		if deps.CredentialExpired != nil && errors.Is(err, deps.CredentialExpired) {
			return RotateResult{Failure: RotateFailureExpired, Err: err}
		}
		return RotateResult{Failure: RotateFailureInvalid, Err: err}
	}

	subjectID, sessionID := claims.Subject, claims.ID
	if subjectID == "" || sessionID == "" {
		return RotateResult{Failure: RotateFailureInvalid, Err: errors.New("refresh credential missing sub or jti")}
	}

	base := RotateResult{SubjectID: subjectID, SessionID: sessionID}

	current, err := deps.Store.Get(ctx, sessionID)
	if err != nil {
		base.Failure = RotateFailureLookup
		base.Err = err
		return base
	}

	if current == nil {
		return reuse(ctx, base, CauseMissingSession, session.ReasonReuseMissingSession, deps)
	}
	base.FamilyID = current.FamilyID

	if cause, reused := classifyReuse(current, refreshToken, subjectID, deps); reused {
		return reuse(ctx, base, cause, session.ReasonReuseDetected, deps)
	}

	pair, err := deps.SignPair(subjectID)
	if err != nil {
		base.Failure = RotateFailureSign
		base.Err = err
		return base
	}

	familyID := current.FamilyID
	if familyID == "" {
		familyID = current.SessionID
	}
	base.FamilyID = familyID

	persist := context.WithoutCancel(ctx)
	now := deps.now()
	next := newRecord(pair, subjectID, familyID, meta, deps, now)
	ttl := recordTTL(pair.RefreshExpiresAt, now)

	if err := deps.Store.Put(persist, next, ttl); err != nil {
		base.Failure = RotateFailurePersist
		base.Err = err
		return base
	}
	if err := deps.Store.IndexAdd(persist, subjectID, next.SessionID, ttl); err != nil {
		base.Failure = RotateFailurePersist
		base.Err = err
		return base
	}

	tombstone := session.Patch{
		RotatedTo:    &next.SessionID,
		RevokedAt:    &now,
		RevokeReason: session.ReasonRotated,
		IfLive:       true,
	}
	if err := deps.Store.Patch(persist, sessionID, tombstone); err != nil {
		if errors.Is(err, session.ErrConcurrentUpdate) {
			return reuse(persist, base, CauseConcurrentRotation, session.ReasonReuseDetected, deps)
		}
		base.Failure = RotateFailurePersist
		base.Err = err
		return base
	}

	if err := deps.Store.IndexRemove(persist, subjectID, sessionID); err != nil {
		deps.logger().Warn("rotation: unindex of rotated session failed",
			zap.String("subject_id", subjectID),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}

	base.Pair = pair
	base.Next = next
	return base
}

func classifyReuse(current *session.RefreshSession, refreshToken, subjectID string, deps Deps) (ReuseCause, bool) {
	hashOK := deps.HashEqual(current.CredentialHash, deps.HashCredential(refreshToken))
	switch {
	case !hashOK:
		return CauseHashMismatch, true
	case current.Rotated():
		return CauseRotated, true
	case current.Revoked():
		return CauseRevoked, true
	case current.SubjectID != subjectID:
		return CauseSubjectMismatch, true
	}
	return "", false
}

func reuse(ctx context.Context, base RotateResult, cause ReuseCause, reason session.RevokeReason, deps Deps) RotateResult {
	lineage := RunRevokeLineage(ctx, base.SubjectID, reason, deps)
	base.Failure = RotateFailureReuse
	base.Cause = cause
	base.Lineage = &lineage
	base.Err = errors.New("refresh credential reuse: " + string(cause))
	return base
}
