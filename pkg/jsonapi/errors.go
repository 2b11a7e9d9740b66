package jsonapi

import (
	"net/http"
	"strconv"
)

// NewError creates an Error with the given status, code, and detail.
// The title is derived from the HTTP status text.
func NewError(status int, code, detail string) Error {
	return Error{
		Status: strconv.Itoa(status),
		Code:   code,
		Title:  http.StatusText(status),
		Detail: detail,
	}
}

// StatusCode returns the HTTP status code as an int.
func (e Error) StatusCode() int {
	code, _ := strconv.Atoi(e.Status)
	return code
}

// WithHeader marks the request header that caused the error.
func (e Error) WithHeader(header string) Error {
	e.Source = &ErrorSource{Header: header}
	return e
}

// WithParameter marks the query parameter that caused the error.
func (e Error) WithParameter(param string) Error {
	e.Source = &ErrorSource{Parameter: param}
	return e
}

// ErrNotFound creates a 404 Not Found error for a resource type.
func ErrNotFound(resourceType string) Error {
	return NewError(404, "not_found", "The requested "+resourceType+" was not found")
}

// ErrInternal creates a 500 Internal Server Error.
func ErrInternal(detail string) Error {
	if detail == "" {
		detail = "An internal error occurred"
	}
	return NewError(500, "internal_error", detail)
}
