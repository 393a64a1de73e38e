package flows

import (
	"context"

	"github.com/MrEthical07/goSession/session"
	"go.uber.org/zap"
)

// LineageResult reports the outcome of a subject-wide revocation.
type LineageResult struct {
	SubjectID string
	Revoked   int
	Err       error
}

// RunRevokeLineage revokes every session in the subject's owner index with reason
// and clears the index. Individual patch failures are logged and the sweep
// continues; the first failure is returned. Expired index entries are pruned by
// the clear.
func RunRevokeLineage(ctx context.Context, subjectID string, reason session.RevokeReason, deps Deps) LineageResult {
	res := LineageResult{SubjectID: subjectID}
	if subjectID == "" {
		return res
	}

	ids, err := deps.Store.IndexList(ctx, subjectID)
	if err != nil {
		res.Err = err
		return res
	}

	now := deps.now()
	for _, id := range ids {
		err := deps.Store.Patch(ctx, id, session.Patch{RevokedAt: &now, RevokeReason: reason})
		if err != nil {
			deps.logger().Warn("lineage revocation: patch failed",
				zap.String("subject_id", subjectID),
				zap.String("session_id", id),
				zap.Error(err),
			)
			if res.Err == nil {
				res.Err = err
			}
			continue
		}
		res.Revoked++
	}

	if err := deps.Store.IndexClear(ctx, subjectID); err != nil && res.Err == nil {
		res.Err = err
	}
	return res
}

// RunListActive returns the live records referenced by the subject's owner index.
func RunListActive(ctx context.Context, subjectID string, deps Deps) ([]session.RefreshSession, error) {
	ids, err := deps.Store.IndexList(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	now := deps.now()
	out := make([]session.RefreshSession, 0, len(ids))
	for _, id := range ids {
		rec, err := deps.Store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil || rec.SubjectID != subjectID || !rec.Live(now) {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}
