package management

import (
	"context"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/platform/apperr"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// BulkAssignInput selects leads either by id or by the list filter.
type BulkAssignInput struct {
	LeadIDs     []uuid.UUID
	AllFiltered bool
	Filter      ListFilter
	AssigneeID  *uuid.UUID
}

type BulkAssignResult struct {
	Succeeded int
	Failed    int
	FailedIDs []uuid.UUID
}

// BulkAssign applies Assign to every selected lead independently. A failure
// on one lead does not stop or undo the others.
func (s *Service) BulkAssign(ctx context.Context, scope access.Scope, in BulkAssignInput) (BulkAssignResult, error) {
	ids := uniqueIDs(in.LeadIDs)
	if in.AllFiltered {
		var err error
		ids, err = s.repo.ListIDs(ctx, listParams(scope, in.Filter), maxBulkLeads+1)
		if err != nil {
			return BulkAssignResult{}, err
		}
	}
	if len(ids) == 0 {
		return BulkAssignResult{}, apperr.Validation("no leads selected")
	}
	if len(ids) > maxBulkLeads {
		return BulkAssignResult{}, apperr.Validation("too many leads selected")
	}

	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(s.bulkConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			_, errs[i] = s.Assign(ctx, scope, id, in.AssigneeID)
			return nil
		})
	}
	_ = g.Wait()

	result := BulkAssignResult{FailedIDs: []uuid.UUID{}}
	for i, err := range errs {
		if err == nil {
			result.Succeeded++
			continue
		}
		if apperr.GetKind(err) == apperr.KindUnknown {
			s.log.Error("bulk assign failed", "lead_id", ids[i], "error", err)
		}
		result.Failed++
		result.FailedIDs = append(result.FailedIDs, ids[i])
	}
	return result, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
