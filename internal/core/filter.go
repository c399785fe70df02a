package core

import (
	"duesdesk/pkg/domain"
	"strings"
)

// FilterAll is the categorical sentinel meaning "no constraint".
const FilterAll = "all"

// DefaultPageSize is the student list page size.
const DefaultPageSize = 12

// Payment and hostel filter values.
const (
	PaymentPaid    = "paid"
	PaymentUnpaid  = "unpaid"
	HostelResident = "hostel"
	HostelDay      = "day"
)

// DRCC roster status filter values beyond the refund statuses.
const (
	RosterApplied    = "applied"
	RosterNotApplied = "not-applied"
)

func unconstrained(value string) bool {
	return value == "" || value == FilterAll
}

// MatchesSearch reports whether query is a case-insensitive substring of the
// student's name or either roll number. An empty query matches everything.
func MatchesSearch(st Student, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(st.FullName), q) ||
		strings.Contains(strings.ToLower(st.RollNo), q) ||
		strings.Contains(strings.ToLower(st.UniRollNo), q)
}

// StudentFilter combines free-text search with categorical filters. Each field
// is either a specific value or "all"/empty.
type StudentFilter struct {
	Search     string `form:"search" json:"search"`
	Department string `form:"department" json:"department"`
	Year       string `form:"year" json:"year"`
	Payment    string `form:"payment" json:"payment"`
	Hostel     string `form:"hostel" json:"hostel"`
}

// FilterStudents returns students matching every constraint, in stored order.
func FilterStudents(students []Student, fees []Fee, f StudentFilter) []Student {
	unpaid := make(map[int]struct{})
	for _, fee := range fees {
		if fee.Status == domain.FeeStatusUnpaid {
			unpaid[fee.StudentID] = struct{}{}
		}
	}
	out := []Student{}
	for _, st := range students {
		if !MatchesSearch(st, f.Search) {
			continue
		}
		if !unconstrained(f.Department) && st.Department != f.Department {
			continue
		}
		if !unconstrained(f.Year) && string(st.Year) != f.Year {
			continue
		}
		if !unconstrained(f.Payment) {
			_, hasUnpaid := unpaid[st.ID]
			if !(f.Payment == PaymentPaid && !hasUnpaid) && !(f.Payment == PaymentUnpaid && hasUnpaid) {
				continue
			}
		}
		if !unconstrained(f.Hostel) {
			hosteller := st.IsHosteller()
			if !(f.Hostel == HostelResident && hosteller) && !(f.Hostel == HostelDay && !hosteller) {
				continue
			}
		}
		out = append(out, st)
	}
	return out
}

// Page is one slice of a paginated result.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// Paginate returns the 1-indexed page of items. Pages outside the range yield
// an empty slice. A non-positive size falls back to DefaultPageSize.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size < 1 {
		size = DefaultPageSize
	}
	out := Page[T]{
		Items:      []T{},
		Page:       page,
		PageSize:   size,
		TotalItems: len(items),
		TotalPages: (len(items) + size - 1) / size,
	}
	if page < 1 || page > out.TotalPages {
		return out
	}
	start := (page - 1) * size
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	out.Items = append(out.Items, items[start:end]...)
	return out
}

// DRCCRosterEntry is a refund-eligible student joined to their application.
type DRCCRosterEntry struct {
	Student
	Application *DRCCApplication `json:"application"`
}

// BuildDRCCRoster lists DRCC-eligible students with the first application
// referencing each.
func BuildDRCCRoster(students []Student, apps []DRCCApplication) []DRCCRosterEntry {
	out := []DRCCRosterEntry{}
	for _, st := range students {
		if !st.IsDRCC {
			continue
		}
		entry := DRCCRosterEntry{Student: st}
		for i := range apps {
			if apps[i].StudentID == st.ID {
				app := apps[i]
				entry.Application = &app
				break
			}
		}
		out = append(out, entry)
	}
	return out
}

// FilterDRCCRoster applies search and the roster status filter: applied,
// not-applied or a refund status.
func FilterDRCCRoster(entries []DRCCRosterEntry, search, status string) []DRCCRosterEntry {
	out := []DRCCRosterEntry{}
	for _, e := range entries {
		if !MatchesSearch(e.Student, search) {
			continue
		}
		if !unconstrained(status) {
			switch {
			case status == RosterApplied && e.Application != nil:
			case status == RosterNotApplied && e.Application == nil:
			case e.Application != nil && string(e.Application.Status) == status:
			default:
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// ApplicationsByTab returns every application for "all", otherwise those
// whose status equals tab.
func ApplicationsByTab(apps []DRCCApplication, tab string) []DRCCApplication {
	out := []DRCCApplication{}
	for _, app := range apps {
		if unconstrained(tab) || string(app.Status) == tab {
			out = append(out, app)
		}
	}
	return out
}

// RefundRow is a refund application with its student's display fields.
type RefundRow struct {
	DRCCApplication
	Student StudentLabel `json:"student"`
}

// RefundRows joins applications to student labels.
func RefundRows(apps []DRCCApplication, students []Student) []RefundRow {
	out := make([]RefundRow, 0, len(apps))
	for _, app := range apps {
		out = append(out, RefundRow{DRCCApplication: app, Student: LabelFor(students, app.StudentID)})
	}
	return out
}

// NoDueRow is a clearance application joined to its student.
type NoDueRow struct {
	NoDueApplication
	Student Student `json:"student"`
}

// NoDueRows joins applications to students. Applications whose student is
// missing are omitted.
func NoDueRows(apps []NoDueApplication, students []Student) []NoDueRow {
	out := []NoDueRow{}
	for _, app := range apps {
		st, ok := findStudent(students, app.StudentID)
		if !ok {
			continue
		}
		out = append(out, NoDueRow{NoDueApplication: app, Student: st})
	}
	return out
}
