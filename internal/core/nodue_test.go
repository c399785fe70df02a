package core

import (
	"context"
	"duesdesk/pkg/domain"
	"errors"
	"testing"
)

func TestMarkClearedStampsGate(t *testing.T) {
	ctx := context.Background()
	svc := newSeededService(t, nil)

	updated, _, err := svc.MarkCleared(ctx, 1, domain.GateAccounts)
	if err != nil {
		t.Fatalf("mark cleared: %v", err)
	}
	got := updated.Clearances.Accounts
	want := Clearance{Cleared: true, ClearedBy: DefaultActor, Date: "2024-10-20T10:00:00.000Z", Remarks: ""}
	if got != want {
		t.Fatalf("unexpected clearance %+v", got)
	}
	if updated.Status != domain.NoDuePending {
		t.Fatalf("exam cell still open, expected pending, got %s", updated.Status)
	}
	if noDueByID(t, svc, 1).Clearances.Accounts != want {
		t.Fatalf("clearance not persisted")
	}
}

func TestMarkClearedCompletesApplication(t *testing.T) {
	ctx := context.Background()
	svc := newSeededService(t, nil)
	before := noDueByID(t, svc, 3)

	for _, gate := range []Gate{domain.GateHostel, domain.GateDepartment} {
		if _, _, err := svc.MarkCleared(ctx, 3, gate); err != nil {
			t.Fatalf("clear %s: %v", gate, err)
		}
	}
	app := noDueByID(t, svc, 3)
	if app.Status != domain.NoDueComplete || !app.Clearances.AllCleared() {
		t.Fatalf("expected complete application, got %+v", app)
	}
	for _, g := range []Gate{domain.GateLibrary, domain.GateAccounts, domain.GateExamCell} {
		was, _ := before.Clearances.Gate(g)
		now, _ := app.Clearances.Gate(g)
		if *was != *now {
			t.Fatalf("gate %s changed: %+v -> %+v", g, *was, *now)
		}
	}
	if app.Clearances.Hostel.Remarks != "" {
		t.Fatalf("clearing a gate must reset its remarks")
	}
	if stats := svc.DashboardStats(ctx); stats.NoDueCleared != 2 {
		t.Fatalf("expected 2 cleared applications, got %d", stats.NoDueCleared)
	}
}

func TestMarkClearedLeavesOtherGatesUntouched(t *testing.T) {
	cases := []struct {
		appID int
		gate  Gate
	}{
		{1, domain.GateAccounts},
		{1, domain.GateExamCell},
		{3, domain.GateHostel},
		{3, domain.GateDepartment},
	}
	for _, tc := range cases {
		t.Run(string(tc.gate), func(t *testing.T) {
			svc := newSeededService(t, nil)
			before := noDueByID(t, svc, tc.appID)
			if _, _, err := svc.MarkCleared(context.Background(), tc.appID, tc.gate); err != nil {
				t.Fatalf("mark cleared: %v", err)
			}
			after := noDueByID(t, svc, tc.appID)
			for _, g := range domain.Gates() {
				was, _ := before.Clearances.Gate(g)
				now, _ := after.Clearances.Gate(g)
				if g == tc.gate {
					if !now.Cleared {
						t.Fatalf("gate %s not cleared", g)
					}
					continue
				}
				if *was != *now {
					t.Fatalf("gate %s changed: %+v -> %+v", g, *was, *now)
				}
			}
			if after.ID != before.ID || after.StudentID != before.StudentID || after.AppliedDate != before.AppliedDate {
				t.Fatalf("application identity changed: %+v -> %+v", before, after)
			}
		})
	}
}

func TestMarkClearedRejectsClearedGate(t *testing.T) {
	kv := newCountingKV()
	svc := newSeededService(t, kv)
	before := kv.sets

	_, _, err := svc.MarkCleared(context.Background(), 1, domain.GateLibrary)
	if !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if kv.sets != before {
		t.Fatalf("cleared gate must not be rewritten")
	}
}

func TestMarkClearedValidatesInput(t *testing.T) {
	ctx := context.Background()
	svc := newSeededService(t, nil)

	if _, _, err := svc.MarkCleared(ctx, 1, Gate("canteen")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for unknown gate, got %v", err)
	}
	var nf ErrNotFound
	if _, _, err := svc.MarkCleared(ctx, 42, domain.GateLibrary); !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClearanceStates(t *testing.T) {
	svc := newSeededService(t, nil)
	app := noDueByID(t, svc, 1)
	cases := map[Gate]ClearanceState{
		domain.GateLibrary:  ClearanceCleared,
		domain.GateAccounts: ClearanceIssue,
		domain.GateExamCell: ClearancePending,
	}
	for gate, want := range cases {
		entry, ok := app.Clearances.Gate(gate)
		if !ok {
			t.Fatalf("gate %s missing", gate)
		}
		if got := StateOf(*entry); got != want {
			t.Fatalf("gate %s: expected %s, got %s", gate, want, got)
		}
	}
}
