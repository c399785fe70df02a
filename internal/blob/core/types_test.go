package core

import (
	"errors"
	"testing"
)

func TestCleanKey(t *testing.T) {
	valid := map[string]string{
		"receipts/REC1.json":      "receipts/REC1.json",
		"reports//defaulters.csv": "reports/defaulters.csv",
		`reports\refunds.csv`:     "reports/refunds.csv",
		"./a/b":                   "a/b",
	}
	for in, want := range valid {
		got, err := CleanKey(in)
		if err != nil || got != want {
			t.Fatalf("CleanKey(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"", "  ", "/abs", "../escape", "a/../../b", `a\..\b`} {
		if _, err := CleanKey(in); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("CleanKey(%q) expected invalid key, got %v", in, err)
		}
	}
}

func TestCloneMetadata(t *testing.T) {
	if CloneMetadata(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
	in := map[string]string{"student": "UNI2021001"}
	out := CloneMetadata(in)
	out["student"] = "changed"
	if in["student"] != "UNI2021001" {
		t.Fatalf("clone must not alias the input")
	}
}
