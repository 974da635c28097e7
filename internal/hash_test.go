package internal

import (
	"strings"
	"testing"
)

func TestSessionRef(t *testing.T) {
	id := "0197a1b2-7c3d-7e4f-8a9b-0c1d2e3f4a5b"

	ref := SessionRef(id)
	if ref == "" || strings.Contains(ref, id) {
		t.Fatalf("ref %q should hide the id", ref)
	}
	if SessionRef(id) != ref {
		t.Error("ref is not stable")
	}
	if SessionRef(id+"x") == ref {
		t.Error("different ids share a ref")
	}
	if SessionRef("") != "" {
		t.Error("empty id should give an empty ref")
	}
}
