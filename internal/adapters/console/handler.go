// Package console serves the JSON surface the admin console front-end reads
// and acts through.
package console

import (
	"duesdesk/internal/adapters/reports"
	"duesdesk/internal/core"
	"duesdesk/pkg/domain"
	"expvar"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Dependencies wires the router.
type Dependencies struct {
	Service  *core.Service
	Exporter *reports.Exporter
	// Archive backs receipt lookup and the archive listing. Nil leaves those
	// routes unregistered.
	Archive *reports.Archiver
	// Gatherer backs /metrics. Nil leaves the route unregistered.
	Gatherer prometheus.Gatherer
	// DebugVars mounts the expvar handler at /debug/vars.
	DebugVars bool
	Logger   zerolog.Logger
	PageSize int
}

// Handler holds the route handlers.
type Handler struct {
	svc      *core.Service
	exporter *reports.Exporter
	archive  *reports.Archiver
	logger   zerolog.Logger
	pageSize int
}

// NewHandler builds a handler. A nil exporter gets one archiving through
// deps.Archive, if any.
func NewHandler(deps Dependencies) *Handler {
	exporter := deps.Exporter
	if exporter == nil {
		exporter = reports.NewExporter(deps.Service, deps.Archive)
	}
	pageSize := deps.PageSize
	if pageSize < 1 {
		pageSize = core.DefaultPageSize
	}
	return &Handler{svc: deps.Service, exporter: exporter, archive: deps.Archive, logger: deps.Logger, pageSize: pageSize}
}

// NewRouter returns a gin engine with every console route registered.
func NewRouter(deps Dependencies) *gin.Engine {
	h := NewHandler(deps)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(deps.Logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	if deps.DebugVars {
		router.GET("/debug/vars", gin.WrapH(expvar.Handler()))
	}

	api := router.Group("/api/v1")
	api.GET("/dashboard", h.Dashboard)
	api.GET("/students", h.ListStudents)
	api.GET("/students/:id", h.StudentDetail)
	api.GET("/drcc-students", h.DRCCStudents)

	refunds := api.Group("/refunds")
	refunds.GET("", h.Refunds)
	refunds.POST("/bulk-approve", h.BulkApprove)
	refunds.POST("/bulk-reject", h.BulkReject)
	refunds.POST("/:id/approve", h.Approve)
	refunds.POST("/:id/reject", h.Reject)
	refunds.POST("/:id/pay", h.Pay)

	api.GET("/nodue", h.NoDue)
	api.POST("/nodue/:id/clear/:gate", h.Clear)
	api.GET("/departments", h.Departments)

	api.POST("/receipts", h.RecordPayment)
	if deps.Archive != nil {
		api.GET("/receipts/:receiptNo", h.Receipt)
		api.GET("/archive", h.Archive)
	}

	api.GET("/reports/defaulters", h.ExportDefaulters)
	api.GET("/reports/refunds", h.ExportRefunds)
	return router
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		badRequest(c, "invalid id "+strconv.Quote(c.Param("id")))
		return 0, false
	}
	return id, true
}

// Dashboard returns the overview statistics.
func (h *Handler) Dashboard(c *gin.Context) {
	respondOK(c, http.StatusOK, "", h.svc.DashboardStats(c.Request.Context()))
}

// ListStudents filters and paginates the student directory.
func (h *Handler) ListStudents(c *gin.Context) {
	var filter core.StudentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, err.Error())
		return
	}
	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "invalid page")
			return
		}
		page = n
	}
	respondOK(c, http.StatusOK, "", h.svc.ListStudents(c.Request.Context(), filter, page, h.pageSize))
}

// StudentDetail returns a student with their fees.
func (h *Handler) StudentDetail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	detail, err := h.svc.GetStudentDetail(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", detail)
}

// DRCCStudents returns the refund-eligible roster.
func (h *Handler) DRCCStudents(c *gin.Context) {
	roster := h.svc.DRCCStudents(c.Request.Context(), c.Query("search"), c.DefaultQuery("status", core.FilterAll))
	respondOK(c, http.StatusOK, "", roster)
}

type refundListing struct {
	Tab    string               `json:"tab"`
	Items  []core.RefundRow     `json:"items"`
	Counts core.RefundTabCounts `json:"counts"`
}

// Refunds lists applications for a tab along with the per-tab counts.
func (h *Handler) Refunds(c *gin.Context) {
	ctx := c.Request.Context()
	tab := c.DefaultQuery("tab", string(domain.RefundPending))
	respondOK(c, http.StatusOK, "", refundListing{
		Tab:    tab,
		Items:  h.svc.RefundApplications(ctx, tab),
		Counts: h.svc.RefundTabCounts(ctx),
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type bulkRequest struct {
	IDs    []int  `json:"ids" binding:"required,min=1"`
	Reason string `json:"reason"`
}

// Approve moves a pending application to approved.
func (h *Handler) Approve(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	app, result, err := h.svc.ApproveRefund(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	respondMutation(c, "Refund approved", app, result)
}

// Reject moves a pending application to rejected with a reason.
func (h *Handler) Reject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	app, result, err := h.svc.RejectRefund(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}
	respondMutation(c, "Refund rejected", app, result)
}

// Pay marks an approved application as paid.
func (h *Handler) Pay(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	app, result, err := h.svc.MarkRefundPaid(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	respondMutation(c, "Refund marked as paid", app, result)
}

// BulkApprove approves every pending application in the selection.
func (h *Handler) BulkApprove(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	changed, result, err := h.svc.BulkApproveRefunds(c.Request.Context(), req.IDs)
	if err != nil {
		h.handleError(c, err)
		return
	}
	respondMutation(c, strconv.Itoa(len(changed))+" refund(s) approved", changed, result)
}

// BulkReject rejects every pending application in the selection.
func (h *Handler) BulkReject(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	changed, result, err := h.svc.BulkRejectRefunds(c.Request.Context(), req.IDs, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}
	respondMutation(c, strconv.Itoa(len(changed))+" refund(s) rejected", changed, result)
}

// NoDue lists clearance applications joined to their students.
func (h *Handler) NoDue(c *gin.Context) {
	respondOK(c, http.StatusOK, "", h.svc.NoDueApplications(c.Request.Context()))
}

// Departments returns per-department clearance progress.
func (h *Handler) Departments(c *gin.Context) {
	respondOK(c, http.StatusOK, "", h.svc.DepartmentSummary(c.Request.Context()))
}

// Clear signs off one gate of a clearance application.
func (h *Handler) Clear(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	app, result, err := h.svc.MarkCleared(c.Request.Context(), id, core.Gate(c.Param("gate")))
	if err != nil {
		h.handleError(c, err)
		return
	}
	respondMutation(c, "Clearance recorded", app, result)
}

// RecordPayment validates a payment and appends a paid fee.
func (h *Handler) RecordPayment(c *gin.Context) {
	var input core.PaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}
	receipt, err := h.svc.RecordPayment(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Receipt "+receipt.ReceiptNo+" recorded", receipt)
}

// Receipt returns an archived receipt.
func (h *Handler) Receipt(c *gin.Context) {
	receipt, err := h.archive.Receipt(c.Request.Context(), c.Param("receiptNo"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", receipt)
}

// Archive lists archived receipts and reports with download links.
func (h *Handler) Archive(c *gin.Context) {
	entries, err := h.archive.List(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", entries)
}

// ExportDefaulters streams the fee defaulter CSV.
func (h *Handler) ExportDefaulters(c *gin.Context) {
	report, err := h.exporter.Defaulters(c.Request.Context())
	h.sendReport(c, report, err)
}

// ExportRefunds streams the refund applications CSV for a tab.
func (h *Handler) ExportRefunds(c *gin.Context) {
	report, err := h.exporter.Refunds(c.Request.Context(), c.DefaultQuery("tab", core.FilterAll))
	h.sendReport(c, report, err)
}

func (h *Handler) sendReport(c *gin.Context, report reports.Report, err error) {
	if err != nil && report.Data == nil {
		h.handleError(c, err)
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("report", report.Name).Msg("report archive failed")
	}
	if report.ArchiveKey != "" {
		c.Header("X-Archive-Key", report.ArchiveKey)
	}
	c.Header("Content-Disposition", `attachment; filename="`+report.Name+`.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", report.Data)
}
