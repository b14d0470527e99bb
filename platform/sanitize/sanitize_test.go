package sanitize

import "testing"

func TestStripHTML(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Juan  Pérez", "Juan Pérez"},
		{"<b>Viaje</b> a <i>Bariloche</i>", "Viaje a Bariloche"},
		{"<script>alert(1)</script>hola", "hola"},
		{"&lt;b&gt;escaped&lt;/b&gt;", "<b>escaped</b>"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := StripHTML(tc.in); got != tc.want {
			t.Errorf("StripHTML(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTextPtrBlankBecomesNil(t *testing.T) {
	blank := "  <br/> "
	if TextPtr(&blank) != nil {
		t.Fatal("expected nil for blank input")
	}
	if TextPtr(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
}
