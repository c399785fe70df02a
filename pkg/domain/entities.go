// Package domain defines the persisted entities, value types, and rule
// evaluation primitives used by duesdesk.
package domain

import "encoding/json"

// EntityType identifies the type of record stored in the store.
type EntityType string

// Supported entity type identifiers used in Change records and errors.
const (
	EntityStudent          EntityType = "student"
	EntityFee              EntityType = "fee"
	EntityDRCCApplication  EntityType = "drcc_application"
	EntityNoDueApplication EntityType = "nodue_application"
	EntityReceipt          EntityType = "receipt"
)

// Persisted collection keys. Each key holds one JSON array.
const (
	KeyStudents          = "students"
	KeyFees              = "fees"
	KeyDRCCApplications  = "drccApplications"
	KeyNoDueApplications = "noDueApplications"
)

// Keys lists every collection key in a stable order.
func Keys() []string {
	return []string{KeyStudents, KeyFees, KeyDRCCApplications, KeyNoDueApplications}
}

// Year enumerates academic years.
type Year string

const (
	Year1 Year = "1st"
	Year2 Year = "2nd"
	Year3 Year = "3rd"
	Year4 Year = "4th"
)

// Student is immutable within this system; registration happens elsewhere.
// A nil HostelRoom marks a day scholar.
type Student struct {
	ID          int     `json:"id"`
	FullName    string  `json:"fullName"`
	RollNo      string  `json:"rollNo"`
	UniRollNo   string  `json:"uniRollNo"`
	Department  string  `json:"department"`
	Year        Year    `json:"year"`
	Semester    int     `json:"semester"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	HostelRoom  *string `json:"hostelRoom"`
	IsDRCC      bool    `json:"isDRCC"`
	Photo       string  `json:"photo,omitempty"`
	BankAccount string  `json:"bankAccount"`
	IFSCCode    string  `json:"ifscCode"`
	BankName    string  `json:"bankName"`
}

// IsHosteller reports whether the student has a hostel room.
func (s Student) IsHosteller() bool {
	return s.HostelRoom != nil && *s.HostelRoom != ""
}

// FeeStatus enumerates fee payment states.
type FeeStatus string

const (
	FeeStatusPaid   FeeStatus = "paid"
	FeeStatusUnpaid FeeStatus = "unpaid"
)

// Fee is a charge raised against a student. A paid fee always carries a PaidDate.
type Fee struct {
	ID            int       `json:"id"`
	StudentID     int       `json:"studentId"`
	FeeType       string    `json:"feeType"`
	Amount        float64   `json:"amount"`
	Semester      string    `json:"semester"`
	AcademicYear  string    `json:"academicYear"`
	Status        FeeStatus `json:"status"`
	DueDate       string    `json:"dueDate"`
	PaidDate      *string   `json:"paidDate"`
	PaymentMode   *string   `json:"paymentMode"`
	TransactionID *string   `json:"transactionId"`
	ReceiptNo     *string   `json:"receiptNo"`
	Remarks       string    `json:"remarks"`
}

// RefundStatus enumerates the caution-deposit refund workflow:
// pending -> approved -> paid, or pending -> rejected.
type RefundStatus string

const (
	RefundPending  RefundStatus = "pending"
	RefundApproved RefundStatus = "approved"
	RefundRejected RefundStatus = "rejected"
	RefundPaid     RefundStatus = "paid"
)

// DRCCApplication is a caution-deposit refund application.
// RefundableAmount is stored, not derived; writers keep it equal to
// CautionDeposit - Deductions.
type DRCCApplication struct {
	ID               int          `json:"id"`
	StudentID        int          `json:"studentId"`
	CautionDeposit   float64      `json:"cautionDeposit"`
	Deductions       float64      `json:"deductions"`
	RefundableAmount float64      `json:"refundableAmount"`
	AppliedDate      string       `json:"appliedDate"`
	Status           RefundStatus `json:"status"`
	ProcessedDate    *string      `json:"processedDate"`
	ProcessedBy      *string      `json:"processedBy"`
	RejectionReason  *string      `json:"rejectionReason"`
	Documents        []string     `json:"documents"`
	Comments         string       `json:"comments"`
}

// NoDueStatus enumerates clearance application states. Issues is displayed
// but no operation produces it.
type NoDueStatus string

const (
	NoDueComplete NoDueStatus = "complete"
	NoDueIssues   NoDueStatus = "issues"
	NoDuePending  NoDueStatus = "pending"
)

// Gate identifies one of the five fixed clearance gates.
type Gate string

const (
	GateLibrary    Gate = "library"
	GateHostel     Gate = "hostel"
	GateAccounts   Gate = "accounts"
	GateDepartment Gate = "department"
	GateExamCell   Gate = "examCell"
)

// Gates returns the clearance gates in display order.
func Gates() []Gate {
	return []Gate{GateLibrary, GateHostel, GateAccounts, GateDepartment, GateExamCell}
}

// Valid reports whether g is one of the five gates.
func (g Gate) Valid() bool {
	switch g {
	case GateLibrary, GateHostel, GateAccounts, GateDepartment, GateExamCell:
		return true
	}
	return false
}

// Clearance records the sign-off state of a single gate.
type Clearance struct {
	Cleared   bool   `json:"cleared"`
	ClearedBy string `json:"clearedBy"`
	Date      string `json:"date"`
	Remarks   string `json:"remarks"`
}

// Clearances holds exactly one entry per gate.
type Clearances struct {
	Library    Clearance `json:"library"`
	Hostel     Clearance `json:"hostel"`
	Accounts   Clearance `json:"accounts"`
	Department Clearance `json:"department"`
	ExamCell   Clearance `json:"examCell"`
}

// Gate returns a pointer to the entry for g, or false for an unknown gate.
func (c *Clearances) Gate(g Gate) (*Clearance, bool) {
	switch g {
	case GateLibrary:
		return &c.Library, true
	case GateHostel:
		return &c.Hostel, true
	case GateAccounts:
		return &c.Accounts, true
	case GateDepartment:
		return &c.Department, true
	case GateExamCell:
		return &c.ExamCell, true
	}
	return nil, false
}

// AllCleared reports whether every gate is cleared.
func (c Clearances) AllCleared() bool {
	return c.Library.Cleared && c.Hostel.Cleared && c.Accounts.Cleared &&
		c.Department.Cleared && c.ExamCell.Cleared
}

// ClearedCount returns how many gates are cleared.
func (c Clearances) ClearedCount() int {
	n := 0
	for _, g := range Gates() {
		if entry, _ := c.Gate(g); entry.Cleared {
			n++
		}
	}
	return n
}

// NoDueApplication tracks a graduating student's five-gate clearance.
// Status is complete iff every gate is cleared.
type NoDueApplication struct {
	ID                   int         `json:"id"`
	StudentID            int         `json:"studentId"`
	AppliedDate          string      `json:"appliedDate"`
	Status               NoDueStatus `json:"status"`
	Clearances           Clearances  `json:"clearances"`
	CertificateGenerated bool        `json:"certificateGenerated"`
	CertificateDate      *string     `json:"certificateDate"`
}

// Action describes the type of change applied to an entity.
type Action string

// Supported change actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// Change describes a mutation applied to an entity. Before and After hold
// JSON snapshots of the record.
type Change struct {
	Entity   EntityType
	EntityID int
	Action   Action
	Before   json.RawMessage
	After    json.RawMessage
}

// NewChange snapshots before and after into a Change. A nil pointer leaves
// the corresponding side empty.
func NewChange[T any](entity EntityType, id int, action Action, before, after *T) (Change, error) {
	change := Change{Entity: entity, EntityID: id, Action: action}
	if before != nil {
		raw, err := json.Marshal(before)
		if err != nil {
			return Change{}, err
		}
		change.Before = raw
	}
	if after != nil {
		raw, err := json.Marshal(after)
		if err != nil {
			return Change{}, err
		}
		change.After = raw
	}
	return change, nil
}

// DecodeChange unmarshals one side of a change into T. It reports false when
// the side is empty or does not decode.
func DecodeChange[T any](raw json.RawMessage) (T, bool) {
	var out T
	if len(raw) == 0 {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false
	}
	return out, true
}
