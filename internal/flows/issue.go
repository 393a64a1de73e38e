package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// IssueFailureKind classifies issue flow failures for root-level mapping.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureInput
	IssueFailureSign
	IssueFailurePersist
)

// IssueResult carries either the new pair and record or failure metadata.
type IssueResult struct {
	Failure IssueFailureKind
	Err     error
	Pair    jwt.Pair
	Record  *session.RefreshSession
}

// RunIssue mints a pair for subjectID and persists it as the root of a new family.
func RunIssue(ctx context.Context, subjectID string, meta ClientMeta, deps Deps) IssueResult {
	if subjectID == "" {
		return IssueResult{Failure: IssueFailureInput, Err: errors.New("subject id required")}
	}

	pair, err := deps.SignPair(subjectID)
	if err != nil {
		return IssueResult{Failure: IssueFailureSign, Err: err}
	}

	now := deps.now()
	rec := newRecord(pair, subjectID, pair.SessionID, meta, deps, now)
	ttl := recordTTL(pair.RefreshExpiresAt, now)

	if err := deps.Store.Put(ctx, rec, ttl); err != nil {
		return IssueResult{Failure: IssueFailurePersist, Err: err, Record: rec}
	}
	if err := deps.Store.IndexAdd(ctx, subjectID, rec.SessionID, ttl); err != nil {
		return IssueResult{Failure: IssueFailurePersist, Err: err, Record: rec}
	}

	return IssueResult{Pair: pair, Record: rec}
}

func newRecord(pair jwt.Pair, subjectID, familyID string, meta ClientMeta, deps Deps, now time.Time) *session.RefreshSession {
	keyVersion := pair.KeyVersion
	if keyVersion == "" {
		keyVersion = deps.KeyVersion
	}
	return &session.RefreshSession{
		SessionID:      pair.SessionID,
		SubjectID:      subjectID,
		FamilyID:       familyID,
		CredentialHash: deps.HashCredential(pair.RefreshToken),
		KeyVersion:     keyVersion,
		ClientIP:       meta.IP,
		ClientAgent:    meta.UserAgent,
		CreatedAt:      now,
		ExpiresAt:      pair.RefreshExpiresAt,
	}
}
