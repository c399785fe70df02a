// Package reports renders the console CSV exports and archives exports and
// fee receipts to the blob store.
package reports

import (
	"bytes"
	"context"
	"duesdesk/internal/core"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Report names double as download file stems.
const (
	NameDefaulters = "fee-defaulters"
	NameRefunds    = "refund-applications"
)

var (
	defaulterHeader = []string{"Name", "Roll No", "Department", "Amount", "Due Date"}
	refundHeader    = []string{"Name", "Roll No", "Department", "Amount", "Applied Date", "Status"}
)

var rupeePrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatRupees renders amount in whole rupees with en-IN digit grouping and
// the rupee sign. Halves round away from zero.
func FormatRupees(amount float64) string {
	whole := decimal.NewFromFloat(amount).Round(0).IntPart()
	return "₹" + rupeePrinter.Sprint(number.Decimal(whole, number.MaxFractionDigits(0)))
}

// Report is one rendered CSV export.
type Report struct {
	Name       string `json:"name"`
	Rows       int    `json:"rows"`
	Data       []byte `json:"-"`
	ArchiveKey string `json:"archiveKey,omitempty"`
}

// DefaultersCSV renders one row per unpaid fee.
func DefaultersCSV(rows []core.Defaulter) ([]byte, error) {
	records := make([][]string, 0, len(rows))
	for _, d := range rows {
		records = append(records, []string{d.Name, d.RollNo, d.Department, FormatRupees(d.Amount), d.DueDate})
	}
	return encode(defaulterHeader, records)
}

// RefundsCSV renders refund applications with their refundable amount.
func RefundsCSV(rows []core.RefundRow) ([]byte, error) {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Student.Name,
			r.Student.RollNo,
			r.Student.Department,
			strconv.FormatFloat(r.RefundableAmount, 'f', -1, 64),
			r.AppliedDate,
			string(r.Status),
		})
	}
	return encode(refundHeader, records)
}

// encode quotes fields containing separators, quotes or newlines.
func encode(header []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Exporter builds reports from the service and optionally archives them.
type Exporter struct {
	svc     *core.Service
	archive *Archiver
}

// NewExporter returns an exporter. A nil archiver disables archival.
func NewExporter(svc *core.Service, archive *Archiver) *Exporter {
	return &Exporter{svc: svc, archive: archive}
}

// Defaulters renders the fee defaulter report.
func (e *Exporter) Defaulters(ctx context.Context) (Report, error) {
	rows := e.svc.Defaulters(ctx)
	data, err := DefaultersCSV(rows)
	if err != nil {
		return Report{}, err
	}
	return e.finish(ctx, Report{Name: NameDefaulters, Rows: len(rows), Data: data})
}

// Refunds renders the refund applications of one tab.
func (e *Exporter) Refunds(ctx context.Context, tab string) (Report, error) {
	rows := e.svc.RefundApplications(ctx, tab)
	data, err := RefundsCSV(rows)
	if err != nil {
		return Report{}, err
	}
	return e.finish(ctx, Report{Name: NameRefunds, Rows: len(rows), Data: data})
}

func (e *Exporter) finish(ctx context.Context, r Report) (Report, error) {
	if e.archive == nil {
		return r, nil
	}
	key, err := e.archive.ArchiveReport(ctx, r.Name, r.Data)
	if err != nil {
		return r, err
	}
	r.ArchiveKey = key
	return r, nil
}
