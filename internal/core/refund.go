package core

import (
	"context"
	"duesdesk/pkg/domain"
	"strconv"
	"strings"
)

const (
	opApproveRefund      = "approve_refund"
	opRejectRefund       = "reject_refund"
	opMarkRefundPaid     = "mark_refund_paid"
	opBulkApproveRefunds = "bulk_approve_refunds"
	opBulkRejectRefunds  = "bulk_reject_refunds"
)

// BulkRejectionReason is recorded when a bulk rejection carries no reason.
const BulkRejectionReason = "Bulk rejection"

const rejectionReasonRequired = "Please provide a rejection reason"

func indexOfRefund(apps []DRCCApplication, id int) int {
	for i := range apps {
		if apps[i].ID == id {
			return i
		}
	}
	return -1
}

func refundNotFound(id int) error {
	return domain.ErrNotFound{Entity: EntityDRCCApplication, ID: strconv.Itoa(id)}
}

func refundPrecondition(app DRCCApplication, operation string, allowed ...RefundStatus) error {
	names := make([]string, len(allowed))
	for i, st := range allowed {
		names[i] = string(st)
	}
	return domain.PreconditionError{
		Entity:    EntityDRCCApplication,
		ID:        app.ID,
		Operation: operation,
		Current:   string(app.Status),
		Allowed:   names,
	}
}

// transitionRefund applies mutate to the application with id when it is in
// the from state, then commits the collection.
func (s *Service) transitionRefund(ctx context.Context, id int, operation string, from RefundStatus, mutate func(*DRCCApplication)) (DRCCApplication, Result, error) {
	apps := s.store.DRCCApplications(ctx)
	idx := indexOfRefund(apps, id)
	if idx < 0 {
		return DRCCApplication{}, Result{}, refundNotFound(id)
	}
	before := apps[idx]
	if before.Status != from {
		return DRCCApplication{}, Result{}, refundPrecondition(before, operation, from)
	}
	after := before
	mutate(&after)
	change, err := domain.NewChange(EntityDRCCApplication, id, ActionUpdate, &before, &after)
	if err != nil {
		return DRCCApplication{}, Result{}, err
	}
	apps[idx] = after
	res, err := s.commit(ctx, domain.KeyDRCCApplications, apps, []Change{change})
	if err != nil {
		return DRCCApplication{}, res, err
	}
	return after, res, nil
}

func (s *Service) stampProcessed(app *DRCCApplication, status RefundStatus, at string) {
	actor := s.actor
	app.Status = status
	app.ProcessedDate = &at
	app.ProcessedBy = &actor
}

// ApproveRefund moves a pending application to approved and stamps the
// processing date and operator.
func (s *Service) ApproveRefund(ctx context.Context, id int) (DRCCApplication, Result, error) {
	var (
		updated DRCCApplication
		res     Result
	)
	err := s.mutate(ctx, opApproveRefund, func(ctx context.Context) (int, error) {
		var err error
		at := s.timestamp()
		updated, res, err = s.transitionRefund(ctx, id, "approve", domain.RefundPending, func(app *DRCCApplication) {
			s.stampProcessed(app, domain.RefundApproved, at)
		})
		return id, err
	})
	return updated, res, err
}

// RejectRefund moves a pending application to rejected with a reason. An
// empty reason is a validation failure and nothing is written.
func (s *Service) RejectRefund(ctx context.Context, id int, reason string) (DRCCApplication, Result, error) {
	var (
		updated DRCCApplication
		res     Result
	)
	err := s.mutate(ctx, opRejectRefund, func(ctx context.Context) (int, error) {
		if strings.TrimSpace(reason) == "" {
			return id, domain.ValidationError{Fields: map[string]string{"rejectionReason": rejectionReasonRequired}}
		}
		var err error
		at := s.timestamp()
		updated, res, err = s.transitionRefund(ctx, id, "reject", domain.RefundPending, func(app *DRCCApplication) {
			s.stampProcessed(app, domain.RefundRejected, at)
			r := reason
			app.RejectionReason = &r
		})
		return id, err
	})
	return updated, res, err
}

// MarkRefundPaid records the payout of an approved application. Only the
// status changes.
func (s *Service) MarkRefundPaid(ctx context.Context, id int) (DRCCApplication, Result, error) {
	var (
		updated DRCCApplication
		res     Result
	)
	err := s.mutate(ctx, opMarkRefundPaid, func(ctx context.Context) (int, error) {
		var err error
		updated, res, err = s.transitionRefund(ctx, id, "mark paid", domain.RefundApproved, func(app *DRCCApplication) {
			app.Status = domain.RefundPaid
		})
		return id, err
	})
	return updated, res, err
}

// BulkApproveRefunds approves every pending application listed in ids with a
// single timestamp. Ids that are unknown or not pending are skipped. The ids
// actually approved are returned in stored order.
func (s *Service) BulkApproveRefunds(ctx context.Context, ids []int) ([]int, Result, error) {
	var (
		changed []int
		res     Result
	)
	err := s.mutate(ctx, opBulkApproveRefunds, func(ctx context.Context) (int, error) {
		var err error
		at := s.timestamp()
		changed, res, err = s.bulkTransition(ctx, ids, func(app *DRCCApplication) {
			s.stampProcessed(app, domain.RefundApproved, at)
		})
		return 0, err
	})
	return changed, res, err
}

// BulkRejectRefunds rejects every pending application listed in ids. An empty
// reason is recorded as BulkRejectionReason.
func (s *Service) BulkRejectRefunds(ctx context.Context, ids []int, reason string) ([]int, Result, error) {
	if strings.TrimSpace(reason) == "" {
		reason = BulkRejectionReason
	}
	var (
		changed []int
		res     Result
	)
	err := s.mutate(ctx, opBulkRejectRefunds, func(ctx context.Context) (int, error) {
		var err error
		at := s.timestamp()
		changed, res, err = s.bulkTransition(ctx, ids, func(app *DRCCApplication) {
			s.stampProcessed(app, domain.RefundRejected, at)
			r := reason
			app.RejectionReason = &r
		})
		return 0, err
	})
	return changed, res, err
}

func (s *Service) bulkTransition(ctx context.Context, ids []int, mutate func(*DRCCApplication)) ([]int, Result, error) {
	wanted := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	apps := s.store.DRCCApplications(ctx)
	changed := []int{}
	var changes []Change
	for i := range apps {
		if _, ok := wanted[apps[i].ID]; !ok || apps[i].Status != domain.RefundPending {
			continue
		}
		before := apps[i]
		mutate(&apps[i])
		change, err := domain.NewChange(EntityDRCCApplication, apps[i].ID, ActionUpdate, &before, &apps[i])
		if err != nil {
			return nil, Result{}, err
		}
		changes = append(changes, change)
		changed = append(changed, apps[i].ID)
	}
	if len(changes) == 0 {
		return changed, Result{}, nil
	}
	res, err := s.commit(ctx, domain.KeyDRCCApplications, apps, changes)
	if err != nil {
		return nil, res, err
	}
	return changed, res, nil
}
