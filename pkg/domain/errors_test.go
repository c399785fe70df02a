package domain

import (
	"duesdesk/testutil"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMatching(t *testing.T) {
	pre := PreconditionError{Entity: EntityDRCCApplication, ID: 4, Operation: "approve", Current: "paid", Allowed: []string{"pending"}}
	wrapped := fmt.Errorf("approve: %w", pre)
	if !errors.Is(wrapped, ErrPrecondition) {
		t.Fatal("precondition error should match ErrPrecondition")
	}
	if errors.Is(wrapped, ErrValidation) {
		t.Fatal("precondition error must not match ErrValidation")
	}
	if msg := pre.Error(); !strings.Contains(msg, `"paid"`) || !strings.Contains(msg, "pending") {
		t.Fatalf("unexpected message %q", msg)
	}

	verr := ValidationError{Fields: map[string]string{"uniRollNo": "bad", "amount": "required"}}
	if !errors.Is(verr, ErrValidation) {
		t.Fatal("validation error should match ErrValidation")
	}
	if verr.Error() != "validation failed: amount: required; uniRollNo: bad" {
		t.Fatalf("fields must be reported in key order, got %q", verr.Error())
	}

	var nf ErrNotFound
	if !errors.As(fmt.Errorf("x: %w", ErrNotFound{Entity: EntityStudent, ID: "UNI2099999"}), &nf) || nf.ID != "UNI2099999" {
		t.Fatalf("errors.As failed: %+v", nf)
	}
	if nf.Error() != "student UNI2099999 not found" {
		t.Fatalf("unexpected message %q", nf.Error())
	}
}

func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImport, "pkg/domain must not depend on internal packages")
}
