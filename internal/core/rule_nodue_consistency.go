package core

import (
	"context"
	"duesdesk/pkg/domain"
	"fmt"
)

// NoDueConsistencyRule blocks clearance writes that un-clear a gate or mark an
// application complete while a gate is still open.
func NoDueConsistencyRule() domain.Rule {
	return noDueConsistencyRule{}
}

type noDueConsistencyRule struct{}

func (noDueConsistencyRule) Name() string { return "nodue_consistency" }

func (r noDueConsistencyRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityNoDueApplication {
			continue
		}
		after, ok := domain.DecodeChange[domain.NoDueApplication](change.After)
		if !ok {
			continue
		}
		if after.Status == domain.NoDueComplete && !after.Clearances.AllCleared() {
			res.Violations = append(res.Violations, r.violation(change.EntityID,
				fmt.Sprintf("clearance application %d is complete with %d of 5 gates cleared", change.EntityID, after.Clearances.ClearedCount())))
		}
		before, ok := domain.DecodeChange[domain.NoDueApplication](change.Before)
		if !ok {
			continue
		}
		for _, gate := range domain.Gates() {
			prev, _ := before.Clearances.Gate(gate)
			next, _ := after.Clearances.Gate(gate)
			if prev.Cleared && !next.Cleared {
				res.Violations = append(res.Violations, r.violation(change.EntityID,
					fmt.Sprintf("clearance application %d cannot revoke %s clearance", change.EntityID, gate)))
			}
		}
	}
	return res, nil
}

func (r noDueConsistencyRule) violation(id int, msg string) domain.Violation {
	return domain.Violation{
		Rule:     r.Name(),
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntityNoDueApplication,
		EntityID: id,
	}
}
