package signupclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MessageResponse is the body of a successful mutation.
type MessageResponse struct {
	Message string `json:"message"`
}

// errorResponse is the body of a failed request.
// FastAPI-style servers send detail either as a string or as structured validation errors.
type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// APIError is returned when the server answers with a non-2xx status and a JSON body.
type APIError struct {
	StatusCode int
	// Detail is the server supplied error text, empty if none was given.
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status code: %d: %s", e.StatusCode, e.Detail)
}

// TransportError is returned when a request could not be sent or its response could not be read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a response body is not the expected JSON.
type DecodeError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *DecodeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// newAPIError builds the error for a non-2xx response.
// A body that is not JSON yields a *DecodeError rather than an *APIError.
// JSON that is not an object carries no detail.
func newAPIError(status int, body []byte) error {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &DecodeError{Op: "decoding error response", StatusCode: status, Err: err}
	}
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return &APIError{StatusCode: status}
	}
	return &APIError{StatusCode: status, Detail: detailText(resp.Detail)}
}

// detailText renders a detail value for display: strings verbatim, other
// values as compact JSON, null or missing as "".
func detailText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}
