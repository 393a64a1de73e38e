package goSession

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/goSession/internal/audit"
)

// AuditErrorCode is the stable error label carried in [AuditEvent.Error].
type AuditErrorCode string

// Audit error labels.
const (
	AuditErrInvalidToken      AuditErrorCode = "invalid_token"
	AuditErrExpiredToken      AuditErrorCode = "expired_token"
	AuditErrRefreshReuse      AuditErrorCode = "refresh_reuse"
	AuditErrRateLimited       AuditErrorCode = "rate_limited"
	AuditErrStoreUnavailable  AuditErrorCode = "backend_unavailable"
	AuditErrInvalidCredential AuditErrorCode = "invalid_credentials"
	AuditErrDuplicate         AuditErrorCode = "duplicate"
	AuditErrInternal          AuditErrorCode = "internal_error"
)

var errRateLimited = errors.New("rate limited")

// auditCodes maps engine errors to their audit label, most specific first.
var auditCodes = []struct {
	err  error
	code AuditErrorCode
}{
	{ErrTokenReuse, AuditErrRefreshReuse},
	{ErrTokenExpired, AuditErrExpiredToken},
	{ErrTokenInvalid, AuditErrInvalidToken},
	{errRateLimited, AuditErrRateLimited},
	{ErrStoreUnavailable, AuditErrStoreUnavailable},
	{ErrInvalidCredentials, AuditErrInvalidCredential},
	{ErrAccountExists, AuditErrDuplicate},
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	for _, c := range auditCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return AuditErrInternal
}

// auditEntry is one engine outcome bound for the audit dispatcher. A nil err
// marks the event successful.
type auditEntry struct {
	kind    string
	subject string
	session string
	family  string
	err     error
	meta    map[string]string
}

// reason returns a copy of a with a single "reason" metadata entry.
func (a auditEntry) reason(r string) auditEntry {
	a.meta = map[string]string{"reason": r}
	return a
}

func (e *Engine) record(ctx context.Context, a auditEntry) {
	if e == nil || e.audit == nil {
		return
	}
	client := ClientMetaFromContext(ctx)
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: a.kind,
		SubjectID: a.subject,
		SessionID: a.session,
		FamilyID:  a.family,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Success:   a.err == nil,
		Error:     string(auditErrorCode(a.err)),
		Metadata:  a.meta,
	})
}

func (e *Engine) emitRateLimit(ctx context.Context, route, client string, decision RateDecision) {
	e.metricInc(MetricRateLimitHit)
	ctx = withClientMeta(ctx, ClientMeta{IP: client})
	e.record(ctx, auditEntry{
		kind: audit.EventRateLimitTriggered,
		err:  errRateLimited,
		meta: map[string]string{
			"route":       route,
			"retry_after": strconv.FormatInt(decision.RetryAfterSeconds(), 10),
		},
	})
}
