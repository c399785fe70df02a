package core

import (
	"context"
	"duesdesk/pkg/domain"
	"errors"
	"strconv"
	"testing"
)

type captureArchive struct {
	receipts []Receipt
	err      error
}

func (a *captureArchive) ArchiveReceipt(_ context.Context, r Receipt) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.receipts = append(a.receipts, r)
	return "receipts/" + r.ReceiptNo + ".json", nil
}

func validPayment() PaymentInput {
	return PaymentInput{
		FullName:      "Priya Singh",
		UniRollNo:     "UNI2021002",
		Department:    "ECE",
		Semester:      "6th",
		Amount:        75000,
		PaymentMode:   "Online",
		TransactionID: "TXN999",
	}
}

func TestValidatePaymentReportsEachField(t *testing.T) {
	err := ValidatePayment(PaymentInput{UniRollNo: "ECE002"})
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := map[string]string{
		"fullName":   "Name is required",
		"uniRollNo":  "Invalid roll number format (e.g., UNI2021001)",
		"department": "Department is required",
		"semester":   "Semester is required",
		"amount":     "Valid amount is required",
	}
	for field, msg := range want {
		if verr.Fields[field] != msg {
			t.Fatalf("field %s: expected %q, got %q", field, msg, verr.Fields[field])
		}
	}
	if _, ok := verr.Fields["transactionId"]; ok {
		t.Fatalf("cash-less blank mode must not require a transaction id")
	}
}

func TestValidatePaymentRequiresTransactionForReferencedModes(t *testing.T) {
	for _, mode := range []string{"Online", "Cheque", "DD"} {
		in := validPayment()
		in.PaymentMode = mode
		in.TransactionID = " "
		var verr ValidationError
		if err := ValidatePayment(in); !errors.As(err, &verr) || verr.Fields["transactionId"] == "" {
			t.Fatalf("mode %s: expected transaction id error, got %v", mode, err)
		}
	}
	in := validPayment()
	in.PaymentMode = "Cash"
	in.TransactionID = ""
	if err := ValidatePayment(in); err != nil {
		t.Fatalf("cash payment should validate: %v", err)
	}
}

func TestRecordPaymentAppendsPaidFee(t *testing.T) {
	ctx := context.Background()
	archive := &captureArchive{}
	svc := newSeededService(t, nil, WithReceiptArchive(archive))

	receipt, err := svc.RecordPayment(ctx, validPayment())
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	wantNo := "REC" + strconv.FormatInt(fixedNow.UnixMilli(), 10)
	if receipt.ReceiptNo != wantNo {
		t.Fatalf("expected receipt %s, got %s", wantNo, receipt.ReceiptNo)
	}
	fee := receipt.Fee
	if fee.ID != 10 || fee.StudentID != 2 || fee.Status != domain.FeeStatusPaid {
		t.Fatalf("unexpected fee %+v", fee)
	}
	if fee.PaidDate == nil || *fee.PaidDate != "2024-10-20" {
		t.Fatalf("expected default payment date, got %v", fee.PaidDate)
	}
	if fee.AcademicYear != DefaultAcademicYear || fee.FeeType != DefaultFeeType {
		t.Fatalf("defaults not applied: %+v", fee)
	}
	if fee.TransactionID == nil || *fee.TransactionID != "TXN999" || *fee.ReceiptNo != wantNo {
		t.Fatalf("unexpected references %+v", fee)
	}
	if receipt.Student.Name != "Priya Singh" || receipt.Student.RollNo != "UNI2021002" {
		t.Fatalf("unexpected student label %+v", receipt.Student)
	}
	if got := len(svc.Store().Fees(ctx)); got != 10 {
		t.Fatalf("expected 10 fees, got %d", got)
	}
	if len(archive.receipts) != 1 || receipt.ArchiveKey != "receipts/"+wantNo+".json" {
		t.Fatalf("receipt not archived: %+v", archive.receipts)
	}
}

func TestRecordPaymentCashHasNoTransaction(t *testing.T) {
	in := validPayment()
	in.PaymentMode = ""
	in.TransactionID = ""
	in.UniRollNo = "UNI2022008"
	receipt, err := newSeededService(t, nil).RecordPayment(context.Background(), in)
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if *receipt.Fee.PaymentMode != DefaultPaymentMode || receipt.Fee.TransactionID != nil {
		t.Fatalf("unexpected cash fee %+v", receipt.Fee)
	}
}

func TestRecordPaymentUnknownStudent(t *testing.T) {
	kv := newCountingKV()
	svc := newSeededService(t, kv)
	before := kv.sets
	in := validPayment()
	in.UniRollNo = "UNI2099999"

	_, err := svc.RecordPayment(context.Background(), in)
	var nf ErrNotFound
	if !errors.As(err, &nf) || nf.Entity != EntityStudent {
		t.Fatalf("expected student not found, got %v", err)
	}
	if kv.sets != before {
		t.Fatalf("unknown student must not write")
	}
}

func TestRecordPaymentInvalidDoesNotWrite(t *testing.T) {
	kv := newCountingKV()
	svc := newSeededService(t, kv)
	before := kv.sets
	in := validPayment()
	in.Amount = 0

	if _, err := svc.RecordPayment(context.Background(), in); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if kv.sets != before {
		t.Fatalf("invalid payment must not write")
	}
}

func TestRecordPaymentArchiveFailureIsLogged(t *testing.T) {
	logger := &captureLogger{}
	svc := newSeededService(t, nil, WithLogger(logger), WithReceiptArchive(&captureArchive{err: errInjected}))

	receipt, err := svc.RecordPayment(context.Background(), validPayment())
	if err != nil {
		t.Fatalf("archive failure must not fail the payment: %v", err)
	}
	if receipt.ArchiveKey != "" {
		t.Fatalf("expected no archive key, got %s", receipt.ArchiveKey)
	}
	if !logger.has("w:archive receipt") {
		t.Fatalf("expected archive warning, got %v", logger.calls)
	}
}
