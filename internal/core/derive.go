package core

import (
	"duesdesk/pkg/domain"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Placeholders rendered for references to students that no longer exist.
const (
	UnknownName  = "Unknown"
	NotAvailable = "N/A"
)

const dateLayout = "2006-01-02"

// FeeTotals aggregates fee amounts by payment state.
type FeeTotals struct {
	TotalPaid   float64 `json:"totalPaid"`
	TotalUnpaid float64 `json:"totalUnpaid"`
	OverdueFees float64 `json:"overdueFees"`
}

// ComputeFeeTotals sums paid, unpaid and overdue amounts. Overdue is a subset
// of unpaid, so OverdueFees never exceeds TotalUnpaid.
func ComputeFeeTotals(fees []Fee, now time.Time) FeeTotals {
	var paid, unpaid, overdue decimal.Decimal
	for _, f := range fees {
		amount := decimal.NewFromFloat(f.Amount)
		switch f.Status {
		case domain.FeeStatusPaid:
			paid = paid.Add(amount)
		case domain.FeeStatusUnpaid:
			unpaid = unpaid.Add(amount)
			if IsOverdue(f.DueDate, now) {
				overdue = overdue.Add(amount)
			}
		}
	}
	return FeeTotals{
		TotalPaid:   paid.InexactFloat64(),
		TotalUnpaid: unpaid.InexactFloat64(),
		OverdueFees: overdue.InexactFloat64(),
	}
}

// IsOverdue reports whether dueDate falls on a calendar day (UTC) before now.
// Empty or unparseable dates are never overdue.
func IsOverdue(dueDate string, now time.Time) bool {
	due, ok := parseDay(dueDate)
	if !ok {
		return false
	}
	today := truncateDay(now.UTC())
	return due.Before(today)
}

func parseDay(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return truncateDay(t.UTC()), true
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// PaymentStatusOf classifies a student as unpaid when any of their fees is
// unpaid. A student with no fees is paid.
func PaymentStatusOf(studentID int, fees []Fee) FeeStatus {
	for _, f := range fees {
		if f.StudentID == studentID && f.Status == domain.FeeStatusUnpaid {
			return domain.FeeStatusUnpaid
		}
	}
	return domain.FeeStatusPaid
}

// FeesFor returns the fees of one student in stored order.
func FeesFor(studentID int, fees []Fee) []Fee {
	out := []Fee{}
	for _, f := range fees {
		if f.StudentID == studentID {
			out = append(out, f)
		}
	}
	return out
}

// DepartmentProgress summarises clearance completion for final-year students
// of one department.
type DepartmentProgress struct {
	Department string  `json:"department"`
	Total      int     `json:"total"`
	Cleared    int     `json:"cleared"`
	Pending    int     `json:"pending"`
	Percentage float64 `json:"percentage"`
}

// SummarizeDepartments counts 4th-year students per department and how many of
// them hold a complete clearance application. Percentage is rounded to one
// decimal and is 0 for a department without 4th-year students.
func SummarizeDepartments(departments []string, students []Student, apps []NoDueApplication) []DepartmentProgress {
	complete := make(map[int]struct{})
	for _, app := range apps {
		if app.Status == domain.NoDueComplete {
			complete[app.StudentID] = struct{}{}
		}
	}
	out := make([]DepartmentProgress, 0, len(departments))
	for _, dept := range departments {
		row := DepartmentProgress{Department: dept}
		for _, st := range students {
			if st.Department != dept || st.Year != domain.Year4 {
				continue
			}
			row.Total++
			if _, ok := complete[st.ID]; ok {
				row.Cleared++
			}
		}
		row.Pending = row.Total - row.Cleared
		if row.Total > 0 {
			row.Percentage = math.Round(float64(row.Cleared)*1000/float64(row.Total)) / 10
		}
		out = append(out, row)
	}
	return out
}

// RefundTabCounts counts refund applications per status.
type RefundTabCounts struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Paid     int `json:"paid"`
	All      int `json:"all"`
}

// CountRefundTabs groups applications by status.
func CountRefundTabs(apps []DRCCApplication) RefundTabCounts {
	counts := RefundTabCounts{All: len(apps)}
	for _, app := range apps {
		switch app.Status {
		case domain.RefundPending:
			counts.Pending++
		case domain.RefundApproved:
			counts.Approved++
		case domain.RefundRejected:
			counts.Rejected++
		case domain.RefundPaid:
			counts.Paid++
		}
	}
	return counts
}

// DashboardStats is the administration overview.
type DashboardStats struct {
	FeeTotals
	PendingRefunds  int `json:"pendingRefunds"`
	ApprovedRefunds int `json:"approvedRefunds"`
	RejectedRefunds int `json:"rejectedRefunds"`
	TotalStudents   int `json:"totalStudents"`
	NoDueCleared    int `json:"noDueCleared"`
}

// ComputeDashboardStats derives the overview from raw collections.
func ComputeDashboardStats(students []Student, fees []Fee, refunds []DRCCApplication, noDue []NoDueApplication, now time.Time) DashboardStats {
	tabs := CountRefundTabs(refunds)
	stats := DashboardStats{
		FeeTotals:       ComputeFeeTotals(fees, now),
		PendingRefunds:  tabs.Pending,
		ApprovedRefunds: tabs.Approved,
		RejectedRefunds: tabs.Rejected,
		TotalStudents:   len(students),
	}
	for _, app := range noDue {
		if app.Status == domain.NoDueComplete {
			stats.NoDueCleared++
		}
	}
	return stats
}

// StudentLabel holds the display fields for a referenced student.
type StudentLabel struct {
	Name       string `json:"name"`
	RollNo     string `json:"rollNo"`
	Department string `json:"department"`
}

// LabelFor resolves a student reference, falling back to placeholders for a
// dangling id.
func LabelFor(students []Student, id int) StudentLabel {
	st, ok := findStudent(students, id)
	if !ok {
		return StudentLabel{Name: UnknownName, RollNo: NotAvailable, Department: NotAvailable}
	}
	return StudentLabel{Name: st.FullName, RollNo: st.UniRollNo, Department: st.Department}
}

// ClearanceState is the display state of a single gate.
type ClearanceState string

const (
	ClearanceCleared ClearanceState = "cleared"
	ClearanceIssue   ClearanceState = "issue"
	ClearancePending ClearanceState = "pending"
)

// StateOf reports cleared, issue (uncleared with remarks) or pending.
func StateOf(c Clearance) ClearanceState {
	switch {
	case c.Cleared:
		return ClearanceCleared
	case c.Remarks != "":
		return ClearanceIssue
	default:
		return ClearancePending
	}
}
