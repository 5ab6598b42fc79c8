package id

import "testing"

func TestNewIsUniqueAndValid(t *testing.T) {
	a, b := New(), New()
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	if !Valid(a) {
		t.Fatalf("expected %s to be a valid id", a)
	}
	if Valid("not-an-id") {
		t.Fatal("expected garbage to be rejected")
	}
}
