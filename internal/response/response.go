package response

import (
	"net/http"

	"github.com/crestline-tours/service-booking/internal/domain"
	"github.com/gin-gonic/gin"
)

// Envelope is the uniform success wrapper for API responses.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorBody is the uniform error wrapper for API responses.
type ErrorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PaginatedEnvelope wraps list responses with paging metadata.
type PaginatedEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
}

// Success writes a 200 response with the given payload.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 response with the given payload.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Paginated writes a 200 response with paging metadata.
func Paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, PaginatedEnvelope{
		Success: true,
		Data:    items,
		Total:   total,
		Page:    page,
		Limit:   limit,
	})
}

// BadRequest writes a 400 response with the given message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorBody{
		Success: false,
		Code:    string(domain.CodeInvalidRequest),
		Message: message,
	})
}

// Error maps a domain error to its HTTP status and writes it.
func Error(c *gin.Context, err error) {
	code := domain.CodeOf(err)
	c.JSON(statusFor(code), ErrorBody{
		Success: false,
		Code:    string(code),
		Message: err.Error(),
	})
}

func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeInvalidRequest, domain.CodeOutOfWindow:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeConflict, domain.CodeInvalidState, domain.CodeSlotUnavailable:
		return http.StatusConflict
	case domain.CodeAmbiguousRule:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
