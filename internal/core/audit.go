package core

import (
	"context"
	"time"
)

// AuditStatus captures the outcome of an audited mutation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one mutation attempt.
type AuditEntry struct {
	Operation string
	Entity    EntityType
	Action    Action
	EntityID  int
	Actor     string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries for every mutation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, AuditEntry) {}

type auditTarget struct {
	entity EntityType
	action Action
}

var auditOperations = map[string]auditTarget{
	opApproveRefund:      {entity: EntityDRCCApplication, action: ActionUpdate},
	opRejectRefund:       {entity: EntityDRCCApplication, action: ActionUpdate},
	opMarkRefundPaid:     {entity: EntityDRCCApplication, action: ActionUpdate},
	opBulkApproveRefunds: {entity: EntityDRCCApplication, action: ActionUpdate},
	opBulkRejectRefunds:  {entity: EntityDRCCApplication, action: ActionUpdate},
	opMarkCleared:        {entity: EntityNoDueApplication, action: ActionUpdate},
	opRecordPayment:      {entity: EntityFee, action: ActionCreate},
}

func (s *Service) recordAudit(ctx context.Context, op string, entityID int, started time.Time, err error) {
	target, ok := auditOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    target.entity,
		Action:    target.action,
		EntityID:  entityID,
		Actor:     s.actor,
		Status:    AuditStatusSuccess,
		Duration:  time.Since(started),
		Timestamp: s.now().UTC(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// mutate runs fn as an observed operation and audits the outcome against the
// entity id fn reports.
func (s *Service) mutate(ctx context.Context, op string, fn func(context.Context) (int, error)) error {
	started := time.Now()
	var entityID int
	err := s.run(ctx, op, func(ctx context.Context) error {
		id, err := fn(ctx)
		entityID = id
		return err
	})
	s.recordAudit(ctx, op, entityID, started, err)
	return err
}
