package ids

import "testing"

func TestNewIsValidAndUnique(t *testing.T) {
	a, b := New(), New()
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
	if !Valid(a) || !Valid(b) {
		t.Fatalf("expected generated ids to be valid")
	}
	if Valid("not-an-id") {
		t.Fatalf("expected garbage to be rejected")
	}
}
