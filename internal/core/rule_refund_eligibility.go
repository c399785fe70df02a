package core

import (
	"context"
	"duesdesk/pkg/domain"
	"fmt"
)

// RefundEligibilityRule warns when a refund is approved for a student that is
// missing or not on the DRCC track. It never blocks.
func RefundEligibilityRule() domain.Rule {
	return refundEligibilityRule{}
}

type refundEligibilityRule struct{}

func (refundEligibilityRule) Name() string { return "refund_eligibility" }

func (r refundEligibilityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityDRCCApplication {
			continue
		}
		after, ok := domain.DecodeChange[domain.DRCCApplication](change.After)
		if !ok || after.Status != domain.RefundApproved {
			continue
		}
		if before, ok := domain.DecodeChange[domain.DRCCApplication](change.Before); ok && before.Status == domain.RefundApproved {
			continue
		}
		var msg string
		st, found := view.FindStudent(after.StudentID)
		switch {
		case !found:
			msg = fmt.Sprintf("refund application %d references unknown student %d", after.ID, after.StudentID)
		case !st.IsDRCC:
			msg = fmt.Sprintf("refund application %d approved for %s who is not DRCC eligible", after.ID, st.UniRollNo)
		default:
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityWarn,
			Message:  msg,
			Entity:   domain.EntityDRCCApplication,
			EntityID: after.ID,
		})
	}
	return res, nil
}
