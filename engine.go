package goSession

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/session"
	"go.uber.org/zap"
)

// ClientMeta describes the client presenting a credential. It is recorded on
// new session records and in audit events.
type ClientMeta = flows.ClientMeta

// RateDecision is the outcome of [Engine.Admit].
type RateDecision = rate.Decision

// TokenPair is a freshly issued access and refresh credential pair.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	SessionID        string
	FamilyID         string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Engine issues, rotates and revokes refresh sessions. It is safe for
// concurrent use after [Builder.Build].
type Engine struct {
	config       Config
	signer       *jwt.Manager
	store        session.Store
	credentials  *credentialHasher
	passwordHash *password.Argon2
	users        UserDirectory
	gate         *rate.Gate
	flows        flows.Service
	audit        *audit.Dispatcher
	metrics      *Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// Config returns a copy of the validated configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Issue mints a pair for subjectID and persists it as the root of a new
// session family.
func (e *Engine) Issue(ctx context.Context, subjectID string, meta ClientMeta) (*TokenPair, error) {
	if !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	ctx = withClientMeta(ctx, meta)

	res := e.flows.Issue(ctx, subjectID, meta)
	switch res.Failure {
	case flows.IssueFailureNone:
	case flows.IssueFailureInput:
		return nil, ErrInvalidInput
	case flows.IssueFailureSign:
		e.logger.Error("issue: sign pair failed", zap.String("subject_id", subjectID), zap.Error(res.Err))
		return nil, fmt.Errorf("sign pair: %w", res.Err)
	case flows.IssueFailurePersist:
		e.metricInc(MetricStoreError)
		e.logger.Error("issue: persist session failed", zap.String("subject_id", subjectID), zap.Error(res.Err))
		return nil, storeUnavailable(res.Err)
	}

	e.metricInc(MetricSessionIssued)
	e.record(ctx, auditEntry{kind: audit.EventSessionIssued, subject: subjectID, session: res.Record.SessionID, family: res.Record.FamilyID})
	return newTokenPair(res.Pair, res.Record.FamilyID), nil
}

// Rotate exchanges a live refresh credential for a new pair.
//
// Expired and malformed credentials are rejected without touching the store.
// Presenting a credential whose session is missing, rotated, revoked or bound
// to another subject revokes every session of the subject and returns
// [ErrTokenReuse]. A store failure during persistence returns
// [ErrStoreUnavailable] and no credentials.
func (e *Engine) Rotate(ctx context.Context, refreshToken string, meta ClientMeta) (*TokenPair, error) {
	if !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	ctx = withClientMeta(ctx, meta)

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() { e.metrics.Observe(MetricRotateLatency, time.Since(start)) }()
	}

	res := e.flows.Rotate(ctx, refreshToken, meta)
	failed := auditEntry{kind: audit.EventRefreshInvalid, subject: res.SubjectID, session: res.SessionID}
	switch res.Failure {
	case flows.RotateFailureNone:
	case flows.RotateFailureExpired:
		e.metricInc(MetricRefreshFailure)
		e.record(ctx, auditEntry{kind: audit.EventRefreshInvalid, err: ErrTokenExpired}.reason("expired"))
		return nil, ErrTokenExpired
	case flows.RotateFailureInvalid:
		e.metricInc(MetricRefreshFailure)
		failed.err = ErrTokenInvalid
		e.record(ctx, failed.reason("invalid"))
		return nil, ErrTokenInvalid
	case flows.RotateFailureLookup:
		e.metricInc(MetricStoreError)
		e.logger.Error("rotate: session lookup failed",
			zap.String("subject_id", res.SubjectID),
			zap.String("session_id", res.SessionID),
			zap.Error(res.Err),
		)
		failed.err = ErrStoreUnavailable
		e.record(ctx, failed.reason("lookup_failed"))
		return nil, storeUnavailable(res.Err)
	case flows.RotateFailureReuse:
		e.handleReuse(ctx, res)
		return nil, ErrTokenReuse
	case flows.RotateFailureSign:
		e.logger.Error("rotate: sign pair failed", zap.String("subject_id", res.SubjectID), zap.Error(res.Err))
		return nil, fmt.Errorf("sign pair: %w", res.Err)
	case flows.RotateFailurePersist:
		e.metricInc(MetricStoreError)
		e.logger.Error("rotate: persist failed",
			zap.String("subject_id", res.SubjectID),
			zap.String("session_id", res.SessionID),
			zap.Error(res.Err),
		)
		failed.family, failed.err = res.FamilyID, ErrStoreUnavailable
		e.record(ctx, failed.reason("persist_failed"))
		return nil, storeUnavailable(res.Err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.record(ctx, auditEntry{
		kind:    audit.EventRefreshSuccess,
		subject: res.SubjectID,
		session: res.Next.SessionID,
		family:  res.FamilyID,
		meta:    map[string]string{"previous_session_id": res.SessionID},
	})
	return newTokenPair(res.Pair, res.FamilyID), nil
}

func (e *Engine) handleReuse(ctx context.Context, res flows.RotateResult) {
	e.metricInc(MetricRefreshReuseDetected)
	e.logger.Warn("refresh credential reuse detected",
		zap.String("subject_id", res.SubjectID),
		zap.String("session_id", res.SessionID),
		zap.String("family_id", res.FamilyID),
		zap.String("cause", string(res.Cause)),
	)
	e.record(ctx, auditEntry{
		kind:    audit.EventRefreshReuseDetected,
		subject: res.SubjectID,
		session: res.SessionID,
		family:  res.FamilyID,
		err:     ErrTokenReuse,
	}.reason(string(res.Cause)))

	if res.Lineage == nil {
		return
	}
	reason := session.ReasonReuseDetected
	if res.Cause == flows.CauseMissingSession {
		reason = session.ReasonReuseMissingSession
	}
	e.recordLineage(ctx, *res.Lineage, reason)
}

func (e *Engine) recordLineage(ctx context.Context, lineage flows.LineageResult, reason session.RevokeReason) {
	e.metricInc(MetricLineageRevoked)
	if lineage.Err != nil {
		e.metricInc(MetricStoreError)
		e.logger.Error("lineage revocation incomplete",
			zap.String("subject_id", lineage.SubjectID),
			zap.Int("revoked", lineage.Revoked),
			zap.Error(lineage.Err),
		)
	}
	e.record(ctx, auditEntry{
		kind:    audit.EventLineageRevoked,
		subject: lineage.SubjectID,
		err:     lineage.Err,
		meta: map[string]string{
			"reason":  string(reason),
			"revoked": strconv.Itoa(lineage.Revoked),
		},
	})
}

// RevokeFromCredential signs out the session named by refreshToken.
//
// Credentials that do not verify are ignored and nil is returned. Store
// failures are returned wrapped in [ErrStoreUnavailable].
func (e *Engine) RevokeFromCredential(ctx context.Context, refreshToken string) error {
	if !e.flows.Initialized() {
		return ErrEngineNotReady
	}

	res := e.flows.RevokeFromCredential(ctx, refreshToken)
	if res.Skipped {
		return nil
	}
	if res.Err != nil {
		e.metricInc(MetricStoreError)
		e.logger.Warn("logout: revoke failed",
			zap.String("subject_id", res.SubjectID),
			zap.String("session_id", res.SessionID),
			zap.Error(res.Err),
		)
		e.record(ctx, auditEntry{kind: audit.EventLogoutSession, subject: res.SubjectID, session: res.SessionID, err: ErrStoreUnavailable})
		return storeUnavailable(res.Err)
	}

	e.metricInc(MetricLogout)
	e.record(ctx, auditEntry{kind: audit.EventLogoutSession, subject: res.SubjectID, session: res.SessionID})
	return nil
}

// RevokeAll revokes every indexed session of subjectID and clears its owner
// index. It returns the number of sessions patched. An empty reason records
// an administrative revocation.
func (e *Engine) RevokeAll(ctx context.Context, subjectID string, reason session.RevokeReason) (int, error) {
	if !e.flows.Initialized() {
		return 0, ErrEngineNotReady
	}
	if subjectID == "" {
		return 0, ErrInvalidInput
	}
	if reason == "" {
		reason = session.ReasonAdministrativeRevoked
	}

	lineage := e.flows.RevokeLineage(ctx, subjectID, reason)
	e.recordLineage(ctx, lineage, reason)
	if lineage.Err != nil {
		return lineage.Revoked, storeUnavailable(lineage.Err)
	}
	return lineage.Revoked, nil
}

// VerifyAccess validates an access credential, with or without a "Bearer "
// prefix, and returns its subject. It never touches the store.
func (e *Engine) VerifyAccess(_ context.Context, token string) (string, error) {
	if e.signer == nil {
		return "", ErrEngineNotReady
	}
	subject, err := e.signer.VerifyAccess(token)
	if err != nil {
		if errors.Is(err, jwt.ErrCredentialExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	return subject, nil
}

// ActiveSessions lists the live sessions of subjectID.
func (e *Engine) ActiveSessions(ctx context.Context, subjectID string) ([]session.RefreshSession, error) {
	if !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	if subjectID == "" {
		return nil, ErrInvalidInput
	}
	sessions, err := e.flows.ListActive(ctx, subjectID)
	if err != nil {
		e.metricInc(MetricStoreError)
		return nil, storeUnavailable(err)
	}
	return sessions, nil
}

// Admit consumes one request of client against the rule for route. Routes
// without a rule, and engines with rate limiting disabled, always admit.
// When the counter backend fails the request is admitted and the failure
// logged.
func (e *Engine) Admit(ctx context.Context, route, client string) RateDecision {
	if e.gate == nil {
		return RateDecision{Allowed: true}
	}

	decision, err := e.gate.Consume(ctx, route, client)
	if err != nil {
		e.logger.Warn("rate gate unavailable, admitting request",
			zap.String("route", route),
			zap.String("client", client),
			zap.Error(err),
		)
		return RateDecision{Allowed: true}
	}
	if !decision.Allowed {
		e.emitRateLimit(ctx, route, client, decision)
	}
	return decision
}

// SignUp registers an account and issues its first session.
func (e *Engine) SignUp(ctx context.Context, req SignUpRequest, meta ClientMeta) (*AccountResult, error) {
	if e.users == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}
	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if email == "" || name == "" || req.Password == "" {
		return nil, ErrInvalidInput
	}

	existing, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		e.metricInc(MetricSignUpDuplicate)
		return nil, ErrAccountExists
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	created, err := e.users.CreateUser(ctx, CreateUserInput{Email: email, Name: name, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricSignUpDuplicate)
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	tokens, err := e.Issue(ctx, created.ID, meta)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricSignUpSuccess)
	return &AccountResult{User: created.User, Tokens: tokens}, nil
}

// SignIn verifies email and password and issues a new session family.
func (e *Engine) SignIn(ctx context.Context, req SignInRequest, meta ClientMeta) (*AccountResult, error) {
	if e.users == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, ErrInvalidInput
	}

	rec, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if rec == nil || rec.PasswordHash == "" {
		e.metricInc(MetricSignInFailure)
		return nil, ErrInvalidCredentials
	}

	ok, err := e.passwordHash.Verify(req.Password, rec.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricSignInFailure)
		return nil, ErrInvalidCredentials
	}

	e.rehashIfWeak(ctx, rec, req.Password)

	tokens, err := e.Issue(ctx, rec.ID, meta)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricSignInSuccess)
	return &AccountResult{User: rec.User, Tokens: tokens}, nil
}

// rehashIfWeak replaces a verified password hash produced with outdated
// parameters. Failures are logged and never fail the sign-in.
func (e *Engine) rehashIfWeak(ctx context.Context, rec *UserRecord, plaintext string) {
	rehasher, ok := e.users.(PasswordRehasher)
	if !ok {
		return
	}
	weak, err := e.passwordHash.NeedsUpgrade(rec.PasswordHash)
	if err != nil || !weak {
		return
	}
	hash, err := e.passwordHash.Hash(plaintext)
	if err == nil {
		err = rehasher.UpdatePasswordHash(ctx, rec.ID, hash)
	}
	if err != nil {
		e.logger.Warn("sign-in: password rehash failed", zap.String("subject_id", rec.ID), zap.Error(err))
		return
	}
	e.logger.Info("sign-in: password rehashed", zap.String("subject_id", rec.ID))
}

// Ping checks session store availability and returns its latency.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e.store == nil {
		return 0, ErrEngineNotReady
	}
	latency, err := e.store.Ping(ctx)
	if err != nil {
		return 0, storeUnavailable(err)
	}
	return latency, nil
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped reports audit events dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// AuditInline reports critical audit events delivered on the caller's
// goroutine because the buffer was full.
func (e *Engine) AuditInline() uint64 {
	return e.audit.DeliveredInline()
}

// Close drains pending audit events. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func newTokenPair(pair jwt.Pair, familyID string) *TokenPair {
	return &TokenPair{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		SessionID:        pair.SessionID,
		FamilyID:         familyID,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

func storeUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
