package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a transport-level outcome: a stable code, a client-safe message
// and the HTTP status it maps to.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Outcomes served by the resource routes.
var (
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Not found",
		StatusCode: http.StatusNotFound,
	}

	// ErrFileGone means the authorization is real but the file vanished from disk.
	ErrFileGone = &AppError{
		Code:       "RESOURCE_GONE",
		Message:    "File no longer exists on disk",
		StatusCode: http.StatusNotFound,
	}

	// ErrRepositoryGone means the authorization is real but the repository vanished from disk.
	ErrRepositoryGone = &AppError{
		Code:       "RESOURCE_GONE",
		Message:    "Repository no longer exists on disk",
		StatusCode: http.StatusNotFound,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrRateLimit = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests, please slow down",
		StatusCode: http.StatusTooManyRequests,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}
