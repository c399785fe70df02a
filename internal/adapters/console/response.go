package console

import (
	"duesdesk/internal/core"
	"duesdesk/pkg/domain"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorCode classifies API failures.
type ErrorCode string

const (
	ErrorCodeNotFound      ErrorCode = "RES_001"
	ErrorCodeConflict      ErrorCode = "RES_004"
	ErrorCodeValidation    ErrorCode = "VAL_001"
	ErrorCodeBadRequest    ErrorCode = "REQ_001"
	ErrorCodeInternal      ErrorCode = "SRV_001"
	ErrorCodeRuleViolation ErrorCode = "RUL_001"
)

// ErrorDetail is the error half of an APIResponse.
type ErrorDetail struct {
	Code       ErrorCode          `json:"code"`
	Message    string             `json:"message"`
	Fields     map[string]string  `json:"fields,omitempty"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

// APIResponse wraps every JSON body served by the console.
type APIResponse struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message,omitempty"`
	Data      any          `json:"data,omitempty"`
	Warnings  []string     `json:"warnings,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// MutationData pairs a written record with non-blocking rule findings.
type MutationData struct {
	Record any         `json:"record"`
	Result core.Result `json:"result"`
}

func respondOK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func respondMutation(c *gin.Context, message string, record any, result core.Result) {
	resp := APIResponse{
		Success:   true,
		Message:   message,
		Data:      MutationData{Record: record, Result: result},
		Timestamp: time.Now().UTC(),
	}
	for _, v := range result.Violations {
		resp.Warnings = append(resp.Warnings, v.Message)
	}
	c.JSON(http.StatusOK, resp)
}

func respondFailure(c *gin.Context, status int, detail *ErrorDetail) {
	c.AbortWithStatusJSON(status, APIResponse{
		Success:   false,
		Error:     detail,
		Timestamp: time.Now().UTC(),
	})
}

func badRequest(c *gin.Context, message string) {
	respondFailure(c, http.StatusBadRequest, &ErrorDetail{Code: ErrorCodeBadRequest, Message: message})
}

// statusFor maps service errors onto HTTP status codes and error details.
func statusFor(err error) (int, *ErrorDetail) {
	var (
		notFound   domain.ErrNotFound
		validation domain.ValidationError
		ruleErr    domain.RuleViolationError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, &ErrorDetail{Code: ErrorCodeNotFound, Message: err.Error()}
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity, &ErrorDetail{
			Code:    ErrorCodeValidation,
			Message: "Validation failed",
			Fields:  validation.Fields,
		}
	case errors.Is(err, domain.ErrPrecondition):
		return http.StatusConflict, &ErrorDetail{Code: ErrorCodeConflict, Message: err.Error()}
	case errors.As(err, &ruleErr):
		return http.StatusConflict, &ErrorDetail{
			Code:       ErrorCodeRuleViolation,
			Message:    err.Error(),
			Violations: ruleErr.Result.Violations,
		}
	default:
		return http.StatusInternalServerError, &ErrorDetail{Code: ErrorCodeInternal, Message: "Internal server error"}
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	status, detail := statusFor(err)
	event := h.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = h.logger.Error()
	}
	event.Err(err).Str("path", c.FullPath()).Int("status", status).Msg("request failed")
	respondFailure(c, status, detail)
}
