package relay

import "testing"

func TestAllowlist_EmptyAllowsEveryone(t *testing.T) {
	a := NewAllowlist(nil)

	if !a.IsAllowed("anyone") {
		t.Error("empty allowlist should allow everyone")
	}
	if !a.IsAllowed("") {
		t.Error("empty allowlist should allow empty identity")
	}
}

func TestAllowlist_OnlyMembersAllowed(t *testing.T) {
	a := NewAllowlist([]string{"alice", "bob"})

	if !a.IsAllowed("alice") {
		t.Error("alice should be allowed")
	}
	if !a.IsAllowed("bob") {
		t.Error("bob should be allowed")
	}
	if a.IsAllowed("eve") {
		t.Error("eve should NOT be allowed")
	}
	if a.IsAllowed("Alice") {
		t.Error("matching should be case-sensitive")
	}
}

func TestAllowlist_TrimsAndDropsBlanks(t *testing.T) {
	a := NewAllowlist([]string{" alice ", "", "  ", "bob"})

	if a.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", a.Len())
	}
	if !a.IsAllowed("alice") {
		t.Error("trimmed alice should be allowed")
	}
}

func TestParseAllowlist(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		len     int
		allowed string
		denied  string
	}{
		{"plain list", "alice,bob", 2, "alice", "eve"},
		{"spaces around entries", " alice , bob ", 2, "bob", " bob "},
		{"empty string is unrestricted", "", 0, "anyone", ""},
		{"only separators is unrestricted", ", ,", 0, "anyone", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := ParseAllowlist(tt.csv)
			if a.Len() != tt.len {
				t.Fatalf("expected %d entries, got %d", tt.len, a.Len())
			}
			if tt.allowed != "" && !a.IsAllowed(tt.allowed) {
				t.Errorf("%q should be allowed", tt.allowed)
			}
			if tt.denied != "" && a.IsAllowed(tt.denied) {
				t.Errorf("%q should NOT be allowed", tt.denied)
			}
		})
	}
}
