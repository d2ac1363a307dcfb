package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes shared between HTTP responses and websocket error events.
const (
	CodeAuthentication = "AUTHENTICATION"
	CodeAuthorization  = "AUTHORIZATION"
	CodeValidation     = "VALIDATION"
	CodeNotFound       = "NOT_FOUND"
	CodeInternal       = "INTERNAL"
)

var httpStatus = map[string]int{
	CodeAuthentication: http.StatusUnauthorized,
	CodeAuthorization:  http.StatusForbidden,
	CodeValidation:     http.StatusBadRequest,
	CodeNotFound:       http.StatusNotFound,
	CodeInternal:       http.StatusInternalServerError,
}

// StatusOf maps an error code to its HTTP status, defaulting to 500.
func StatusOf(code string) int {
	if s, ok := httpStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// OK writes a 200 with the given payload.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created writes a 201 with the given payload.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// Fail writes an error envelope for the given code.
func Fail(c *gin.Context, code, message string) {
	c.JSON(StatusOf(code), gin.H{"error": message, "code": code})
}
