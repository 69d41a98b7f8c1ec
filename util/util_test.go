package util

import "testing"

func TestTruncate(t *testing.T) {
	cases := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is longer than ten", 10, "this is..."},
		{"abc", 0, ""},
		{"abcdef", 2, "ab"},
		{"héllo wörld, ünïcode texte", 12, "héllo wör..."},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.maxLen); got != tc.want {
			t.Fatalf("Truncate(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
		}
	}
}

func TestContainsAndIndex(t *testing.T) {
	s := []string{"alpha", "beta"}
	if !ContainsString(s, "beta") || ContainsString(s, "gamma") {
		t.Fatal("ContainsString mismatch")
	}
	if !ContainsFold(s, "BETA") {
		t.Fatal("ContainsFold should be case-insensitive")
	}
	if IndexOf(s, "beta") != 1 || IndexOf(s, "gamma") != -1 {
		t.Fatal("IndexOf mismatch")
	}
}
