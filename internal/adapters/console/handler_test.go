package console

import (
	"bytes"
	"context"
	"duesdesk/internal/adapters/reports"
	"duesdesk/internal/blob"
	"duesdesk/internal/core"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	svc    *core.Service
	router *gin.Engine
	store  blob.Store
}

func newTestEnv(t *testing.T, opts ...core.ServiceOption) testEnv {
	t.Helper()
	clock := core.ClockFunc(func() time.Time { return time.Date(2024, 10, 20, 10, 0, 0, 0, time.UTC) })
	store := blob.NewMemory()
	archiver := reports.NewArchiver(store)
	base := []core.ServiceOption{core.WithClock(clock), core.WithReceiptArchive(archiver)}
	svc := core.NewInMemoryService(nil, append(base, opts...)...)
	if _, err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	deps := Dependencies{
		Service:  svc,
		Exporter: reports.NewExporter(svc, archiver),
		Archive:  archiver,
		Logger:   zerolog.Nop(),
	}
	return testEnv{svc: svc, router: NewRouter(deps), store: store}
}

func (e testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Data     json.RawMessage `json:"data"`
	Warnings []string        `json:"warnings"`
	Error    *ErrorDetail    `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/dashboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats core.DashboardStats
	if err := json.Unmarshal(decode(t, rec).Data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalStudents != 8 || stats.PendingRefunds != 2 || stats.ApprovedRefunds != 1 || stats.NoDueCleared != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestListStudentsFilters(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/students?department=CSE&year=4th", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page core.Page[core.StudentRow]
	if err := json.Unmarshal(decode(t, rec).Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.TotalItems != 3 || page.Page != 1 || page.PageSize != core.DefaultPageSize {
		t.Fatalf("unexpected page %+v", page)
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/students?page=x", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad page, got %d", rec.Code)
	}
}

func TestStudentDetail(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/api/v1/students/2", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/api/v1/students/99", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if e := decode(t, rec).Error; e == nil || e.Code != ErrorCodeNotFound {
		t.Fatalf("expected not found detail, got %+v", e)
	}
}

func TestRefundListingDefaultsToPending(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/refunds", nil)
	var listing refundListing
	if err := json.Unmarshal(decode(t, rec).Data, &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if listing.Tab != "pending" || len(listing.Items) != 2 || listing.Counts.All != 3 {
		t.Fatalf("unexpected listing %+v", listing)
	}
}

func TestRefundLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/refunds/1/approve", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, "/api/v1/refunds/1/approve", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second approve: expected 409, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/refunds/1/pay", nil); rec.Code != http.StatusOK {
		t.Fatalf("pay: expected 200, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/refunds/99/approve", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: expected 404, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/refunds/abc/approve", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", rec.Code)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/refunds/3/reject", rejectRequest{Reason: " "})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if e := decode(t, rec).Error; e == nil || e.Fields["rejectionReason"] == "" {
		t.Fatalf("expected rejectionReason field error, got %+v", e)
	}
	rec = env.do(t, http.MethodPost, "/api/v1/refunds/3/reject", rejectRequest{Reason: "Pending library fine"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestBulkApprove(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/refunds/bulk-approve", bulkRequest{IDs: []int{1, 2, 3}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var data struct {
		Record []int `json:"record"`
	}
	if err := json.Unmarshal(decode(t, rec).Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(data.Record) != 2 || data.Record[0] != 1 || data.Record[1] != 3 {
		t.Fatalf("expected pending ids [1 3] approved, got %v", data.Record)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/refunds/bulk-reject", bulkRequest{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty selection: expected 400, got %d", rec.Code)
	}
}

func TestClearGate(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		path string
		want int
	}{
		{"/api/v1/nodue/1/clear/accounts", http.StatusOK},
		{"/api/v1/nodue/1/clear/library", http.StatusConflict},
		{"/api/v1/nodue/1/clear/canteen", http.StatusUnprocessableEntity},
		{"/api/v1/nodue/42/clear/library", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			if rec := env.do(t, http.MethodPost, tc.path, nil); rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRecordPayment(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/receipts", core.PaymentInput{UniRollNo: "BAD"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	fields := decode(t, rec).Error.Fields
	for _, key := range []string{"fullName", "uniRollNo", "department", "semester", "amount"} {
		if fields[key] == "" {
			t.Errorf("expected field error for %s, got %v", key, fields)
		}
	}

	rec = env.do(t, http.MethodPost, "/api/v1/receipts", core.PaymentInput{
		FullName:    "Priya Singh",
		UniRollNo:   "UNI2021002",
		Department:  "ECE",
		Semester:    "6th",
		Amount:      75000,
		PaymentMode: "Cash",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var receipt core.Receipt
	if err := json.Unmarshal(decode(t, rec).Data, &receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if !strings.HasPrefix(receipt.ReceiptNo, "REC") || receipt.Fee.Status != "paid" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
}

func TestReceiptLookup(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/receipts", core.PaymentInput{
		FullName:    "Priya Singh",
		UniRollNo:   "UNI2021002",
		Department:  "ECE",
		Semester:    "6th",
		Amount:      75000,
		PaymentMode: "Cash",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var recorded core.Receipt
	if err := json.Unmarshal(decode(t, rec).Data, &recorded); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/receipts/"+recorded.ReceiptNo, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var loaded core.Receipt
	if err := json.Unmarshal(decode(t, rec).Data, &loaded); err != nil {
		t.Fatalf("decode archived receipt: %v", err)
	}
	if loaded.ReceiptNo != recorded.ReceiptNo || loaded.Fee.ID != recorded.Fee.ID || loaded.Student.RollNo != recorded.Student.RollNo {
		t.Fatalf("unexpected archived receipt %+v", loaded)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/receipts/REC0", nil)
	if rec.Code != http.StatusNotFound || decode(t, rec).Error.Code != ErrorCodeNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestArchiveListing(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/api/v1/reports/defaulters", nil); rec.Code != http.StatusOK {
		t.Fatalf("export: %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/api/v1/archive?prefix=reports/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var entries []reports.Entry
	if err := json.Unmarshal(decode(t, rec).Data, &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Key, "reports/fee-defaulters-") || entries[0].ContentType != "text/csv" {
		t.Fatalf("unexpected entries %+v", entries)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/archive?prefix=../", nil)
	if rec.Code != http.StatusUnprocessableEntity || decode(t, rec).Error.Fields["prefix"] == "" {
		t.Fatalf("expected 422 for bad prefix, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestArchiveRoutesAbsentWithoutArchiver(t *testing.T) {
	env := newTestEnv(t)
	env.router = NewRouter(Dependencies{Service: env.svc, Logger: zerolog.Nop()})
	for _, path := range []string{"/api/v1/archive", "/api/v1/receipts/REC1"} {
		if rec := env.do(t, http.MethodGet, path, nil); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestExportDefaulters(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/reports/defaulters", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "fee-defaulters.csv") {
		t.Fatalf("unexpected disposition %q", cd)
	}
	if !strings.HasPrefix(rec.Body.String(), "Name,Roll No,Department,Amount,Due Date\n") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	key := rec.Header().Get("X-Archive-Key")
	if _, err := env.store.Head(context.Background(), key); err != nil {
		t.Fatalf("expected archived report at %q: %v", key, err)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	env := newTestEnv(t, core.WithMetricsRecorder(recorder))
	env.router = NewRouter(Dependencies{Service: env.svc, Gatherer: registry, Logger: zerolog.Nop()})

	env.do(t, http.MethodGet, "/api/v1/dashboard", nil)
	rec := env.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `duesdesk_operation_results_total{operation="dashboard_stats",status="success"}`) {
		t.Fatalf("metrics missing dashboard observation:\n%s", rec.Body.String())
	}
}

func TestMetricsRouteAbsentWithoutGatherer(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/metrics", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
