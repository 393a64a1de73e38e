package flows

import (
	"context"

	"github.com/MrEthical07/goSession/session"
)

// RevokeResult reports a best-effort sign-out.
type RevokeResult struct {
	// Skipped is set when the credential did not verify and nothing was touched.
	Skipped   bool
	SubjectID string
	SessionID string
	Err       error
}

// RunRevokeFromCredential revokes the session named by a refresh credential and
// drops it from the owner index. Unverifiable input is skipped silently.
func RunRevokeFromCredential(ctx context.Context, refreshToken string, deps Deps) RevokeResult {
	claims, err := deps.VerifyRefresh(refreshToken)
	if err != nil || claims.Subject == "" || claims.ID == "" {
		return RevokeResult{Skipped: true}
	}

	res := RevokeResult{SubjectID: claims.Subject, SessionID: claims.ID}
	now := deps.now()
	if err := deps.Store.Patch(ctx, claims.ID, session.Patch{RevokedAt: &now, RevokeReason: session.ReasonLogout}); err != nil {
		res.Err = err
		return res
	}
	if err := deps.Store.IndexRemove(ctx, claims.Subject, claims.ID); err != nil {
		res.Err = err
	}
	return res
}
