package core

import (
	"context"
	"duesdesk/pkg/domain"
	"strconv"
)

// observe wraps a read so it is traced and measured like a mutation.
func (s *Service) observe(ctx context.Context, op string, fn func(context.Context)) {
	_ = s.run(ctx, op, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// DashboardStats derives the administration overview at the current clock time.
func (s *Service) DashboardStats(ctx context.Context) DashboardStats {
	var stats DashboardStats
	s.observe(ctx, "dashboard_stats", func(ctx context.Context) {
		stats = ComputeDashboardStats(
			s.store.Students(ctx),
			s.store.Fees(ctx),
			s.store.DRCCApplications(ctx),
			s.store.NoDueApplications(ctx),
			s.now(),
		)
	})
	return stats
}

// StudentRow is a student with their derived payment status.
type StudentRow struct {
	Student
	PaymentStatus FeeStatus `json:"paymentStatus"`
}

// ListStudents filters students and returns the requested 1-indexed page.
func (s *Service) ListStudents(ctx context.Context, filter StudentFilter, page, pageSize int) Page[StudentRow] {
	var out Page[StudentRow]
	s.observe(ctx, "list_students", func(ctx context.Context) {
		fees := s.store.Fees(ctx)
		matched := FilterStudents(s.store.Students(ctx), fees, filter)
		rows := make([]StudentRow, 0, len(matched))
		for _, st := range matched {
			rows = append(rows, StudentRow{Student: st, PaymentStatus: PaymentStatusOf(st.ID, fees)})
		}
		out = Paginate(rows, page, pageSize)
	})
	return out
}

// StudentDetail is a student with their fee history.
type StudentDetail struct {
	Student       Student   `json:"student"`
	Fees          []Fee     `json:"fees"`
	PaymentStatus FeeStatus `json:"paymentStatus"`
}

// StudentFees returns one student's fees in stored order.
func (s *Service) StudentFees(ctx context.Context, studentID int) []Fee {
	return FeesFor(studentID, s.store.Fees(ctx))
}

// PaymentStatusFor classifies one student from the stored fees.
func (s *Service) PaymentStatusFor(ctx context.Context, studentID int) FeeStatus {
	return PaymentStatusOf(studentID, s.store.Fees(ctx))
}

// GetStudentDetail loads a student and their fees.
func (s *Service) GetStudentDetail(ctx context.Context, studentID int) (StudentDetail, error) {
	var detail StudentDetail
	err := s.run(ctx, "student_detail", func(ctx context.Context) error {
		st, ok := s.store.FindStudentByID(ctx, studentID)
		if !ok {
			return domain.ErrNotFound{Entity: EntityStudent, ID: strconv.Itoa(studentID)}
		}
		fees := s.store.Fees(ctx)
		detail = StudentDetail{Student: st, Fees: FeesFor(studentID, fees), PaymentStatus: PaymentStatusOf(studentID, fees)}
		return nil
	})
	return detail, err
}

// DRCCStudents lists refund-eligible students joined to their applications,
// filtered by search text and roster status.
func (s *Service) DRCCStudents(ctx context.Context, search, status string) []DRCCRosterEntry {
	var out []DRCCRosterEntry
	s.observe(ctx, "drcc_students", func(ctx context.Context) {
		roster := BuildDRCCRoster(s.store.Students(ctx), s.store.DRCCApplications(ctx))
		out = FilterDRCCRoster(roster, search, status)
	})
	return out
}

// RefundApplications lists the applications of a tab with student labels.
func (s *Service) RefundApplications(ctx context.Context, tab string) []RefundRow {
	var out []RefundRow
	s.observe(ctx, "refund_applications", func(ctx context.Context) {
		out = RefundRows(ApplicationsByTab(s.store.DRCCApplications(ctx), tab), s.store.Students(ctx))
	})
	return out
}

// RefundTabCounts counts applications per status.
func (s *Service) RefundTabCounts(ctx context.Context) RefundTabCounts {
	return CountRefundTabs(s.store.DRCCApplications(ctx))
}

// NoDueApplications lists clearance applications joined to their students.
func (s *Service) NoDueApplications(ctx context.Context) []NoDueRow {
	var out []NoDueRow
	s.observe(ctx, "nodue_applications", func(ctx context.Context) {
		out = NoDueRows(s.store.NoDueApplications(ctx), s.store.Students(ctx))
	})
	return out
}

// DepartmentSummary reports clearance completion per configured department.
func (s *Service) DepartmentSummary(ctx context.Context) []DepartmentProgress {
	var out []DepartmentProgress
	s.observe(ctx, "department_summary", func(ctx context.Context) {
		out = SummarizeDepartments(s.departments, s.store.Students(ctx), s.store.NoDueApplications(ctx))
	})
	return out
}

// Defaulter is one unpaid fee with its student's display fields.
type Defaulter struct {
	StudentLabel
	Amount  float64 `json:"amount"`
	DueDate string  `json:"dueDate"`
	Overdue bool    `json:"overdue"`
}

// Defaulters lists every unpaid fee in stored order.
func (s *Service) Defaulters(ctx context.Context) []Defaulter {
	var out []Defaulter
	s.observe(ctx, "defaulters", func(ctx context.Context) {
		students := s.store.Students(ctx)
		now := s.now()
		out = []Defaulter{}
		for _, f := range s.store.Fees(ctx) {
			if f.Status != domain.FeeStatusUnpaid {
				continue
			}
			out = append(out, Defaulter{
				StudentLabel: LabelFor(students, f.StudentID),
				Amount:       f.Amount,
				DueDate:      f.DueDate,
				Overdue:      IsOverdue(f.DueDate, now),
			})
		}
	})
	return out
}
