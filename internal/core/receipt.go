package core

import (
	"context"
	"duesdesk/pkg/domain"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const opRecordPayment = "record_payment"

// Receipt defaults applied to blank input fields.
const (
	DefaultAcademicYear = "2024-25"
	DefaultFeeType      = "Tuition"
	DefaultPaymentMode  = "Cash"
	receiptPrefix       = "REC"
)

// Payment modes that require a transaction reference.
var referencedPaymentModes = map[string]struct{}{"Online": {}, "Cheque": {}, "DD": {}}

var paymentMessages = map[string]string{
	"fullName":      "Name is required",
	"uniRollNo":     "Invalid roll number format (e.g., UNI2021001)",
	"department":    "Department is required",
	"semester":      "Semester is required",
	"amount":        "Valid amount is required",
	"transactionId": "Transaction ID is required for this payment mode",
}

// PaymentInput is the fee receipt form.
type PaymentInput struct {
	FullName      string  `json:"fullName" validate:"notblank"`
	UniRollNo     string  `json:"uniRollNo" validate:"rollno"`
	Department    string  `json:"department" validate:"notblank"`
	Semester      string  `json:"semester" validate:"notblank"`
	AcademicYear  string  `json:"academicYear"`
	FeeType       string  `json:"feeType"`
	Amount        float64 `json:"amount" validate:"amount"`
	PaymentMode   string  `json:"paymentMode"`
	TransactionID string  `json:"transactionId"`
	PaymentDate   string  `json:"paymentDate"`
	Remarks       string  `json:"remarks"`
}

// Receipt is the outcome of a recorded payment.
type Receipt struct {
	ReceiptNo  string       `json:"receiptNo"`
	Fee        Fee          `json:"fee"`
	Student    StudentLabel `json:"student"`
	Input      PaymentInput `json:"input"`
	IssuedAt   time.Time    `json:"issuedAt"`
	ArchiveKey string       `json:"archiveKey,omitempty"`
}

// ReceiptArchive stores issued receipts and returns the archive key.
type ReceiptArchive interface {
	ArchiveReceipt(ctx context.Context, receipt Receipt) (string, error)
}

var paymentValidator = newPaymentValidator()

func newPaymentValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("rollno", func(fl validator.FieldLevel) bool {
		return ValidateRollNo(fl.Field().String())
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		return ValidateAmount(fl.Field().Float())
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		in := sl.Current().Interface().(PaymentInput)
		if _, ok := referencedPaymentModes[in.PaymentMode]; ok && strings.TrimSpace(in.TransactionID) == "" {
			sl.ReportError(in.TransactionID, "transactionId", "TransactionID", "txnref", "")
		}
	}, PaymentInput{})
	return v
}

// ValidatePayment checks the receipt form and returns a ValidationError with
// one message per failing field.
func ValidatePayment(in PaymentInput) error {
	err := paymentValidator.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg, ok := paymentMessages[fe.Field()]
		if !ok {
			msg = fe.Error()
		}
		fields[fe.Field()] = msg
	}
	return domain.ValidationError{Fields: fields}
}

// NewReceiptNumber returns the receipt prefix followed by the clock's epoch
// milliseconds.
func (s *Service) NewReceiptNumber() string {
	return receiptPrefix + strconv.FormatInt(s.now().UnixMilli(), 10)
}

func (s *Service) applyPaymentDefaults(in PaymentInput) PaymentInput {
	if strings.TrimSpace(in.AcademicYear) == "" {
		in.AcademicYear = DefaultAcademicYear
	}
	if strings.TrimSpace(in.FeeType) == "" {
		in.FeeType = DefaultFeeType
	}
	if strings.TrimSpace(in.PaymentMode) == "" {
		in.PaymentMode = DefaultPaymentMode
	}
	if strings.TrimSpace(in.PaymentDate) == "" {
		in.PaymentDate = s.now().UTC().Format(dateLayout)
	}
	return in
}

// RecordPayment validates a receipt form, resolves the student by roll
// number and appends a paid Fee. Nothing is written when validation or the
// student lookup fails. A configured archive receives the receipt after the
// fee is stored; archive failures are logged only.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (Receipt, error) {
	var receipt Receipt
	err := s.mutate(ctx, opRecordPayment, func(ctx context.Context) (int, error) {
		in := s.applyPaymentDefaults(input)
		if err := ValidatePayment(in); err != nil {
			return 0, err
		}
		students := s.store.Students(ctx)
		student, ok := findStudentByRollNo(students, in.UniRollNo)
		if !ok {
			return 0, domain.ErrNotFound{Entity: EntityStudent, ID: in.UniRollNo}
		}
		fees := s.store.Fees(ctx)
		nextID := 1
		for _, f := range fees {
			if f.ID >= nextID {
				nextID = f.ID + 1
			}
		}
		receiptNo := s.NewReceiptNumber()
		mode := in.PaymentMode
		paid := in.PaymentDate
		fee := Fee{
			ID:           nextID,
			StudentID:    student.ID,
			FeeType:      in.FeeType,
			Amount:       in.Amount,
			Semester:     in.Semester,
			AcademicYear: in.AcademicYear,
			Status:       domain.FeeStatusPaid,
			DueDate:      in.PaymentDate,
			PaidDate:     &paid,
			PaymentMode:  &mode,
			ReceiptNo:    &receiptNo,
			Remarks:      in.Remarks,
		}
		if txn := strings.TrimSpace(in.TransactionID); txn != "" {
			fee.TransactionID = &txn
		}
		change, err := domain.NewChange[Fee](EntityFee, fee.ID, ActionCreate, nil, &fee)
		if err != nil {
			return 0, err
		}
		if _, err := s.commit(ctx, domain.KeyFees, append(fees, fee), []Change{change}); err != nil {
			return fee.ID, err
		}
		receipt = Receipt{
			ReceiptNo: receiptNo,
			Fee:       fee,
			Student:   LabelFor(students, student.ID),
			Input:     in,
			IssuedAt:  s.now().UTC(),
		}
		if s.receipts != nil {
			key, err := s.receipts.ArchiveReceipt(ctx, receipt)
			if err != nil {
				s.logger.Warn("archive receipt", "receipt", receiptNo, "error", err)
			} else {
				receipt.ArchiveKey = key
			}
		}
		return fee.ID, nil
	})
	return receipt, err
}
