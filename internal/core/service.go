package core

import (
	"context"
	"duesdesk/internal/infra/persistence/memory"
	"duesdesk/pkg/domain"
	"strings"
	"time"
)

// DefaultActor is the acting-administrator identity stamped on processed records.
const DefaultActor = "Admin"

// DefaultDepartments lists the departments shown in the clearance summary.
var DefaultDepartments = []string{"CSE", "ECE", "ME", "CE"}

// timestampLayout matches ISO-8601 with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Clock provides the current time for stamping records.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Logger is the structured logging surface used by the service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder observes operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// TraceSpan is ended once per traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithClock overrides the clock used for timestamps and receipt numbers.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder sets the audit recorder notified after each mutation.
func WithAuditRecorder(rec AuditRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.audit = rec
		}
	}
}

// WithRulesEngine replaces the default rules engine.
func WithRulesEngine(engine *RulesEngine) ServiceOption {
	return func(s *Service) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithActor sets the operator identity recorded in processedBy and clearedBy.
func WithActor(actor string) ServiceOption {
	return func(s *Service) {
		if strings.TrimSpace(actor) != "" {
			s.actor = actor
		}
	}
}

// WithDepartments sets the departments reported by DepartmentSummary.
func WithDepartments(departments []string) ServiceOption {
	return func(s *Service) {
		if len(departments) > 0 {
			s.departments = append([]string(nil), departments...)
		}
	}
}

// WithReceiptArchive archives recorded receipts.
func WithReceiptArchive(archive ReceiptArchive) ServiceOption {
	return func(s *Service) {
		s.receipts = archive
	}
}

// Service owns every read and mutation of the fee, refund and clearance
// collections. Each mutator reads the whole collection, applies one transition
// and writes the collection back.
type Service struct {
	kv          domain.KVStore
	store       *EntityStore
	engine      *RulesEngine
	clock       Clock
	logger      Logger
	metrics     MetricsRecorder
	tracer      Tracer
	audit       AuditRecorder
	receipts    ReceiptArchive
	actor       string
	departments []string
}

// NewService constructs a service backed by the supplied key-value store.
func NewService(kv domain.KVStore, opts ...ServiceOption) *Service {
	svc := &Service{
		kv:          kv,
		engine:      NewDefaultRulesEngine(),
		clock:       ClockFunc(time.Now),
		logger:      noopLogger{},
		metrics:     noopMetrics{},
		tracer:      noopTracer{},
		audit:       noopAudit{},
		actor:       DefaultActor,
		departments: append([]string(nil), DefaultDepartments...),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	svc.store = NewEntityStore(kv, svc.logger)
	return svc
}

// NewInMemoryService creates a service over a fresh in-memory store. A nil
// engine selects the default rule set.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	opts = append([]ServiceOption{WithRulesEngine(engine)}, opts...)
	return NewService(memory.NewStore(), opts...)
}

// Store returns the typed entity accessor.
func (s *Service) Store() *EntityStore { return s.store }

// KV returns the underlying key-value store.
func (s *Service) KV() domain.KVStore { return s.kv }

// Actor returns the operator identity.
func (s *Service) Actor() string { return s.actor }

// Departments returns the configured department list.
func (s *Service) Departments() []string { return append([]string(nil), s.departments...) }

func (s *Service) now() time.Time { return s.clock.Now() }

func (s *Service) timestamp() string {
	return s.now().UTC().Format(timestampLayout)
}

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	duration := time.Since(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "error", err, "duration", duration)
		return err
	}
	s.logger.Debug("operation completed", "operation", op, "duration", duration)
	return nil
}

// commit evaluates the rules against changes and writes value under key when
// no blocking violation is reported.
func (s *Service) commit(ctx context.Context, key string, value any, changes []Change) (Result, error) {
	res, err := s.engine.Evaluate(ctx, studentView{students: s.store.Students(ctx)}, changes)
	if err != nil {
		return Result{}, err
	}
	if res.HasBlocking() {
		return res, RuleViolationError{Result: res}
	}
	for _, v := range res.Violations {
		s.logger.Warn("rule violation", "rule", v.Rule, "severity", string(v.Severity), "entity", string(v.Entity), "id", v.EntityID, "message", v.Message)
	}
	if err := s.store.write(ctx, key, value); err != nil {
		return res, err
	}
	return res, nil
}

type studentView struct {
	students []Student
}

func (v studentView) FindStudent(id int) (Student, bool) {
	return findStudent(v.students, id)
}
