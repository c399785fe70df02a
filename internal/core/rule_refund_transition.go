package core

import (
	"context"
	"duesdesk/pkg/domain"
	"fmt"
)

// RefundTransitionRule blocks refund status changes outside the workflow
// pending -> approved -> paid and pending -> rejected.
func RefundTransitionRule() domain.Rule {
	return refundTransitionRule{}
}

type refundTransitionRule struct{}

var refundTransitions = map[domain.RefundStatus]map[domain.RefundStatus]struct{}{
	domain.RefundPending:  {domain.RefundApproved: {}, domain.RefundRejected: {}},
	domain.RefundApproved: {domain.RefundPaid: {}},
	domain.RefundRejected: {},
	domain.RefundPaid:     {},
}

func (refundTransitionRule) Name() string { return "refund_transition" }

func (r refundTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityDRCCApplication {
			continue
		}
		after, ok := domain.DecodeChange[domain.DRCCApplication](change.After)
		if !ok {
			continue
		}
		if _, valid := refundTransitions[after.Status]; !valid {
			res.Violations = append(res.Violations, r.violation(change.EntityID, fmt.Sprintf("refund application %d is set to invalid status %q", change.EntityID, after.Status)))
			continue
		}
		before, ok := domain.DecodeChange[domain.DRCCApplication](change.Before)
		if !ok || before.Status == after.Status {
			continue
		}
		if _, allowed := refundTransitions[before.Status][after.Status]; !allowed {
			res.Violations = append(res.Violations, r.violation(change.EntityID, fmt.Sprintf("cannot move refund application %d from %s to %s", change.EntityID, before.Status, after.Status)))
		}
	}
	return res, nil
}

func (r refundTransitionRule) violation(id int, msg string) domain.Violation {
	return domain.Violation{
		Rule:     r.Name(),
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntityDRCCApplication,
		EntityID: id,
	}
}
