package ruleset

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	doc := `
rules:
  - type: campaign
    condition: verano
    users: ["6f1c2a8e-3b1d-4c57-9a3e-1d2f3a4b5c6d"]
    priority: 10
  - type: province
    condition: Córdoba
    users:
      - 9a2e1b3c-4d5e-4f60-8a7b-9c0d1e2f3a4b
      - 41d0c2b3-a4e5-4f67-8b9c-0d1e2f3a4b5c
    active: false
`
	rules, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if !rules[0].Active || rules[0].Priority != 10 || rules[0].Type != "campaign" {
		t.Errorf("first rule = %+v", rules[0])
	}
	if rules[1].Active {
		t.Errorf("second rule should be inactive")
	}
	if len(rules[1].AssignedUsers) != 2 || rules[1].Condition != "Córdoba" {
		t.Errorf("second rule = %+v", rules[1])
	}
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"no rules", "rules: []\n"},
		{"bad user", "rules:\n  - type: campaign\n    condition: x\n    users: [nope]\n"},
		{"unknown field", "rules:\n  - type: campaign\n    condition: x\n    owner: someone\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tc.doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
