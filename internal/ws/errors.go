package ws

import (
	"errors"
	"fmt"

	"chathub/pkg/response"
)

// EventError is a per-event rejection. It is converted into an error event on
// the originating connection and never propagates further.
type EventError struct {
	Code    string
	Message string
}

func (e *EventError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func errAuthentication(msg string) *EventError {
	return &EventError{Code: response.CodeAuthentication, Message: msg}
}

func errAuthorization(msg string) *EventError {
	return &EventError{Code: response.CodeAuthorization, Message: msg}
}

func errValidation(msg string) *EventError {
	return &EventError{Code: response.CodeValidation, Message: msg}
}

func errNotFound(msg string) *EventError {
	return &EventError{Code: response.CodeNotFound, Message: msg}
}

func errInternal(msg string) *EventError {
	return &EventError{Code: response.CodeInternal, Message: msg}
}

// ErrNotAuthenticated is returned by the session registry when a connection
// has no bound user.
var ErrNotAuthenticated = errors.New("connection not authenticated")
