// Package response writes the JSON envelope shared by every /api endpoint.
package response

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/utils/query"
)

const RequestIDKey = "request_id"

const internalMessage = "Внутренняя ошибка сервера"

// UnifiedResponse represents the standard API response format
type UnifiedResponse struct {
	Success    bool                      `json:"success"`
	Message    string                    `json:"message,omitempty"`
	Data       interface{}               `json:"data,omitempty"`
	Pagination *query.PaginationResponse `json:"pagination,omitempty"`
	Error      *ErrorInfo                `json:"error,omitempty"`
	Meta       MetaInfo                  `json:"meta"`
}

type ErrorInfo struct {
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

type MetaInfo struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
}

// Success writes data with status. Statuses of 400 and above are reported
// with success=false.
func Success(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, UnifiedResponse{
		Success: status < http.StatusBadRequest,
		Message: message,
		Data:    data,
		Meta:    meta(c),
	})
}

func OK(c *gin.Context, data interface{}) {
	Success(c, http.StatusOK, "", data)
}

func Created(c *gin.Context, message string, data interface{}) {
	Success(c, http.StatusCreated, message, data)
}

// Paginated writes one page of items with its pagination block.
func Paginated(c *gin.Context, items interface{}, page query.Page, total int64) {
	pagination := query.BuildPaginationResponse(page, total)
	c.JSON(http.StatusOK, UnifiedResponse{
		Success:    true,
		Data:       items,
		Pagination: &pagination,
		Meta:       meta(c),
	})
}

// Error maps err to a status code and writes the error envelope. Internal
// errors are logged and, in release mode, their message is replaced.
func Error(c *gin.Context, err error) {
	status := StatusOf(err)
	message := apperr.MessageOf(err, internalMessage)

	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("request_id", requestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		if gin.Mode() == gin.ReleaseMode {
			message = internalMessage
		}
	}

	c.AbortWithStatusJSON(status, UnifiedResponse{
		Success: false,
		Message: message,
		Error: &ErrorInfo{
			Code:    CodeOf(err),
			Details: apperr.FieldsOf(err),
		},
		Meta: meta(c),
	})
}

// Abort writes an error envelope for failures that have no apperr kind,
// such as rate limiting.
func Abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, UnifiedResponse{
		Success: false,
		Message: message,
		Error:   &ErrorInfo{Code: code},
		Meta:    meta(c),
	})
}

// StatusOf returns the HTTP status for err's kind.
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrUnauthenticated:
		return http.StatusUnauthorized
	case apperr.ErrForbidden:
		return http.StatusForbidden
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrConflict, apperr.ErrInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf returns the machine-readable error code for err.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, apperr.ErrEmailTaken):
		return "EMAIL_TAKEN"
	case errors.Is(err, apperr.ErrDuplicateSubmission):
		return "DUPLICATE_SUBMISSION"
	}

	switch apperr.KindOf(err) {
	case apperr.ErrValidation:
		return "VALIDATION_ERROR"
	case apperr.ErrUnauthenticated:
		return "UNAUTHORIZED"
	case apperr.ErrForbidden:
		return "FORBIDDEN"
	case apperr.ErrNotFound:
		return "NOT_FOUND"
	case apperr.ErrConflict:
		return "CONFLICT"
	case apperr.ErrInvalidTransition:
		return "INVALID_TRANSITION"
	default:
		return "INTERNAL_ERROR"
	}
}

func meta(c *gin.Context) MetaInfo {
	return MetaInfo{
		RequestID: requestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func requestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	id := uuid.NewString()
	c.Set(RequestIDKey, id)
	return id
}
