package flows

import (
	"context"

	"github.com/MrEthical07/goSession/session"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Store != nil && s.deps.VerifyRefresh != nil && s.deps.SignPair != nil
}

func (s Service) Issue(ctx context.Context, subjectID string, meta ClientMeta) IssueResult {
	return RunIssue(ctx, subjectID, meta, s.deps)
}

func (s Service) Rotate(ctx context.Context, refreshToken string, meta ClientMeta) RotateResult {
	return RunRotate(ctx, refreshToken, meta, s.deps)
}

func (s Service) RevokeFromCredential(ctx context.Context, refreshToken string) RevokeResult {
	return RunRevokeFromCredential(ctx, refreshToken, s.deps)
}

func (s Service) RevokeLineage(ctx context.Context, subjectID string, reason session.RevokeReason) LineageResult {
	return RunRevokeLineage(ctx, subjectID, reason, s.deps)
}

func (s Service) ListActive(ctx context.Context, subjectID string) ([]session.RefreshSession, error) {
	return RunListActive(ctx, subjectID, s.deps)
}
