package access

import (
	"context"
	"testing"
)

func TestStaticDenyListBlocksListedIdentifiers(t *testing.T) {
	policy := NewStaticDenyList("restricted.tif", " padded.jpg ", "")

	cases := []struct {
		identifier string
		allowed    bool
	}{
		{"restricted.tif", false},
		{"padded.jpg", false},
		{"open.png", true},
		{"", true},
	}
	for _, tc := range cases {
		allowed, err := policy.Allowed(context.Background(), tc.identifier)
		if err != nil {
			t.Fatalf("Allowed(%q) returned error: %v", tc.identifier, err)
		}
		if allowed != tc.allowed {
			t.Errorf("Allowed(%q) = %v, want %v", tc.identifier, allowed, tc.allowed)
		}
	}
}

func TestAllowAllPermitsEverything(t *testing.T) {
	allowed, err := AllowAll{}.Allowed(context.Background(), "anything")
	if err != nil || !allowed {
		t.Fatalf("AllowAll.Allowed = (%v, %v), want (true, nil)", allowed, err)
	}
}

func TestNewRedisDenyListRequiresClient(t *testing.T) {
	if _, err := NewRedisDenyList(nil, "key"); err == nil {
		t.Fatal("expected error for nil client")
	}
}
