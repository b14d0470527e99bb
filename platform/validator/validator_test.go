package validator

import "testing"

type sample struct {
	Name   string `validate:"notblank"`
	Status string `validate:"omitempty,oneof=new assigned"`
}

func TestNotBlankAndFieldErrors(t *testing.T) {
	v := New()

	err := v.Struct(sample{Name: "   ", Status: "bogus"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	fields := FieldErrors(err)
	if fields["Name"] != "notblank" {
		t.Errorf("expected notblank on Name, got %q", fields["Name"])
	}
	if fields["Status"] != "oneof=new assigned" {
		t.Errorf("expected oneof on Status, got %q", fields["Status"])
	}

	if err := v.Struct(sample{Name: "Ana"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
