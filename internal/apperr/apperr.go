// Package apperr carries an HTTP status alongside domain errors so handlers
// can render the validation / configuration / upstream / conflict taxonomy
// without string matching.
package apperr

import (
	"errors"
	"net/http"

	"paylive-be/internal/utils"
)

type Error struct {
	Status  int
	Message string
	// Payload is merged into the JSON body next to "error".
	Payload map[string]any
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func Wrap(status int, message string, err error) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message)
}

func Conflict(message string, payload map[string]any) *Error {
	return &Error{Status: http.StatusConflict, Message: message, Payload: payload}
}

// Upstream keeps a third-party status code when it is an HTTP error code,
// otherwise reports 502.
func Upstream(status int, message string, err error) *Error {
	if status < http.StatusBadRequest || status > 599 {
		status = http.StatusBadGateway
	}
	return Wrap(status, message, err)
}

func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

// Respond writes err as {"error": message, ...payload}. Unclassified errors
// become a generic 500 so internal details do not leak.
func Respond(w http.ResponseWriter, err error) {
	var e *Error
	if !errors.As(err, &e) {
		utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	body := map[string]any{"error": e.Message}
	for k, v := range e.Payload {
		body[k] = v
	}
	utils.WriteJSON(w, e.Status, body)
}
