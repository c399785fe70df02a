package core

import "duesdesk/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Student            = domain.Student
	Fee                = domain.Fee
	DRCCApplication    = domain.DRCCApplication
	NoDueApplication   = domain.NoDueApplication
	Clearance          = domain.Clearance
	Gate               = domain.Gate
	FeeStatus          = domain.FeeStatus
	RefundStatus       = domain.RefundStatus
	NoDueStatus        = domain.NoDueStatus
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	ErrNotFound        = domain.ErrNotFound
	PreconditionError  = domain.PreconditionError
	ValidationError    = domain.ValidationError
	RuleViolationError = domain.RuleViolationError
)

const (
	EntityStudent          = domain.EntityStudent
	EntityFee              = domain.EntityFee
	EntityDRCCApplication  = domain.EntityDRCCApplication
	EntityNoDueApplication = domain.EntityNoDueApplication
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(RefundTransitionRule())
	engine.Register(NoDueConsistencyRule())
	engine.Register(RefundEligibilityRule())
	return engine
}
