// Package ruleset reads assignment rules from a YAML document so an
// organization's rules can be kept in version control and loaded in bulk.
//
//	rules:
//	  - type: campaign
//	    condition: verano
//	    users: [6f1c...]
//	    priority: 10
//	  - type: province
//	    condition: Córdoba
//	    users: [9a2e..., 41d0...]
//	    active: false
package ruleset

import (
	"errors"
	"fmt"
	"io"

	"travel_crm_backend/internal/rules/service"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type document struct {
	Rules []rule `yaml:"rules"`
}

type rule struct {
	Type          string   `yaml:"type"`
	Condition     string   `yaml:"condition"`
	Users         []string `yaml:"users"`
	Active        *bool    `yaml:"active"`
	Priority      int      `yaml:"priority"`
}

// Parse decodes a rules document. Rules are active unless they say
// otherwise. Type and candidate membership are checked by the rules service.
func Parse(r io.Reader) ([]service.RuleInput, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty rules document")
		}
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, errors.New("rules document has no rules")
	}

	inputs := make([]service.RuleInput, 0, len(doc.Rules))
	for i, r := range doc.Rules {
		users := make([]uuid.UUID, 0, len(r.Users))
		for _, raw := range r.Users {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("rule %d: invalid user id %q", i+1, raw)
			}
			users = append(users, id)
		}
		active := true
		if r.Active != nil {
			active = *r.Active
		}
		inputs = append(inputs, service.RuleInput{
			Type:          r.Type,
			Condition:     r.Condition,
			AssignedUsers: users,
			Active:        active,
			Priority:      r.Priority,
		})
	}
	return inputs, nil
}
