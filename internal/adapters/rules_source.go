package adapters

import (
	"context"

	leadsdomain "travel_crm_backend/internal/leads/domain"
	"travel_crm_backend/internal/leads/ports"
	rulesrepo "travel_crm_backend/internal/rules/repository"

	"github.com/google/uuid"
)

// ActiveRuleLister is the slice of the rules service the matcher needs.
type ActiveRuleLister interface {
	ListActive(ctx context.Context, orgID uuid.UUID) ([]rulesrepo.Rule, error)
}

// RuleSource feeds stored assignment rules to the lead matcher.
type RuleSource struct {
	rules ActiveRuleLister
}

func NewRuleSource(rules ActiveRuleLister) *RuleSource {
	return &RuleSource{rules: rules}
}

func (a *RuleSource) ActiveRules(ctx context.Context, orgID uuid.UUID) ([]leadsdomain.AssignmentRule, error) {
	stored, err := a.rules.ListActive(ctx, orgID)
	if err != nil {
		return nil, err
	}
	out := make([]leadsdomain.AssignmentRule, 0, len(stored))
	for _, r := range stored {
		out = append(out, leadsdomain.AssignmentRule{
			ID:             r.ID,
			OrganizationID: r.OrganizationID,
			Type:           leadsdomain.RuleType(r.Type),
			Condition:      r.Condition,
			Candidates:     r.AssignedUsers,
			Active:         r.Active,
		})
	}
	return out, nil
}

var _ ports.RuleSource = (*RuleSource)(nil)
