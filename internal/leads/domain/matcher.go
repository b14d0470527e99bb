package domain

import (
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// RuleType selects which lead attribute a rule inspects.
type RuleType string

const (
	// RuleCampaign matches when the lead origin contains the condition.
	RuleCampaign RuleType = "campaign"
	// RuleProvince matches when the lead province equals the condition.
	RuleProvince RuleType = "province"
)

// AssignmentRule is the matcher's view of an auto-assignment rule.
// Rules must be supplied in evaluation order.
type AssignmentRule struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Type           RuleType
	Condition      string
	Candidates     []uuid.UUID
	Active         bool
}

// MatchInput carries the lead attributes the matcher reads.
type MatchInput struct {
	OrganizationID uuid.UUID
	Origin         string
	Province       string
}

// Match is a selected assignee and the rule that produced it.
type Match struct {
	UserID uuid.UUID
	RuleID uuid.UUID
}

// Picker returns an index in [0, n).
type Picker func(n int) int

// RandomPicker draws uniformly from the candidate list.
func RandomPicker(n int) int { return rand.IntN(n) }

// Fold normalizes text for case-insensitive, Unicode-aware comparison.
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// SelectAssignee walks rules in the order given and returns a candidate from
// the first rule that matches. Inactive rules, rules from another
// organization and rules without candidates never match.
func SelectAssignee(in MatchInput, rules []AssignmentRule, pick Picker) (Match, bool) {
	if pick == nil {
		pick = RandomPicker
	}

	origin := Fold(in.Origin)
	province := Fold(in.Province)

	for _, r := range rules {
		if !r.Active || r.OrganizationID != in.OrganizationID || len(r.Candidates) == 0 {
			continue
		}
		cond := Fold(r.Condition)
		if cond == "" {
			continue
		}

		var matched bool
		switch r.Type {
		case RuleCampaign:
			matched = origin != "" && strings.Contains(origin, cond)
		case RuleProvince:
			matched = province != "" && province == cond
		}
		if !matched {
			continue
		}

		idx := pick(len(r.Candidates))
		if idx < 0 || idx >= len(r.Candidates) {
			idx = 0
		}
		return Match{UserID: r.Candidates[idx], RuleID: r.ID}, true
	}
	return Match{}, false
}

// ContactCity is the city stored on a converted contact: the lead city, or
// the province when no city was captured.
func ContactCity(city, province *string) *string {
	if city != nil && strings.TrimSpace(*city) != "" {
		return city
	}
	if province != nil && strings.TrimSpace(*province) != "" {
		return province
	}
	return nil
}
