package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response. Message is the server's own text and is
// meant to be shown to the user as is.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func (e *APIError) IsConflict() bool {
	return e.Status == http.StatusConflict
}

func (e *APIError) IsNotFound() bool {
	return e.Status == http.StatusNotFound
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status, Body: body}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Header  struct {
			Message string `json:"message"`
		} `json:"header"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Error != "":
			e.Message = payload.Error
		case payload.Message != "":
			e.Message = payload.Message
		case payload.Header.Message != "":
			e.Message = payload.Header.Message
		}
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	return e
}

// StatusOf returns the HTTP status of an *APIError, or 0.
func StatusOf(err error) int {
	var e *APIError
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
