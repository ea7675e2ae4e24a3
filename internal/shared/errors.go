package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotImplemented = errors.New("not implemented")

	// Configuration errors
	ErrMissingConfig      = errors.New("configuration not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrUnknownServiceType = errors.New("unknown service type")

	// Authentication errors
	ErrAuthFailed       = errors.New("authentication failed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrRefreshExhausted = errors.New("token refresh exhausted")
	ErrNoRefreshToken   = errors.New("no refresh token available")
	ErrTimeout          = errors.New("operation timed out")

	// Lookup and upstream errors
	ErrNotFound  = errors.New("not found")
	ErrInvalidID = errors.New("invalid id")
	ErrUpstream  = errors.New("upstream request failed")

	// Input validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingArgument = errors.New("missing required argument")
	ErrInvalidArgument = errors.New("invalid argument")
)

// InvalidIDError reports an identifier that cannot address anything on a service.
//
// It is a client fault: the id is malformed, or the remote explicitly said it does not exist.
type InvalidIDError struct {
	Service string
	ID      string
	Reason  string
}

func (e *InvalidIDError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid %s id %q", e.Service, e.ID)
	}
	return fmt.Sprintf("invalid %s id %q: %s", e.Service, e.ID, e.Reason)
}

func (e *InvalidIDError) Is(target error) bool { return target == ErrInvalidID }

// NewInvalidIDError creates an [InvalidIDError].
func NewInvalidIDError(service, id, reason string) error {
	return &InvalidIDError{Service: service, ID: id, Reason: reason}
}

// UpstreamError reports a failed call to a remote service, or a response whose shape could not be understood.
//
// Status is zero when the remote was unreachable or the failure happened while parsing.
type UpstreamError struct {
	Status int
	URL    string
	Err    error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("upstream %s returned %d: %v", e.URL, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("upstream %s returned %d", e.URL, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("upstream %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("upstream %s failed", e.URL)
}

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }
func (e *UpstreamError) Unwrap() error        { return e.Err }

// NewUpstreamError creates an [UpstreamError].
func NewUpstreamError(status int, url string, err error) error {
	return &UpstreamError{Status: status, URL: url, Err: err}
}

// Unreachable reports whether the error is an upstream failure where no response was received at all.
func Unreachable(err error) bool {
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		return false
	}
	return upstream.Status == 0 && upstream.Err != nil && !errors.Is(upstream.Err, ErrUnexpectedShape)
}

// ErrUnexpectedShape marks an upstream payload that did not match the expected structure.
var ErrUnexpectedShape = errors.New("unexpected response shape")

// ShapeError creates an [UpstreamError] for a payload missing the given path.
func ShapeError(url, path string) error {
	return NewUpstreamError(0, url, fmt.Errorf("%w: missing %s", ErrUnexpectedShape, path))
}

// NotFoundError reports a connection, user, or other stored resource that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewNotFoundError creates a [NotFoundError].
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// RefreshExhaustedError is returned once a credential refresh has failed for good.
//
// Rejected is set when the token endpoint refused the refresh token, as opposed to the endpoint being unreachable.
type RefreshExhaustedError struct {
	ConnectionID string
	Attempts     int
	Rejected     bool
	Err          error
}

func (e *RefreshExhaustedError) Error() string {
	return fmt.Sprintf("token refresh for connection %s failed after %d attempt(s): %v", e.ConnectionID, e.Attempts, e.Err)
}

func (e *RefreshExhaustedError) Is(target error) bool { return target == ErrRefreshExhausted }
func (e *RefreshExhaustedError) Unwrap() error        { return e.Err }

// AuthorizationError reports a request rejected at the route boundary.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return "unauthorized: " + e.Reason }

func (e *AuthorizationError) Is(target error) bool { return target == ErrUnauthorized }

// HTTPStatus maps an error from the core to the status code the route layer should answer with.
func HTTPStatus(err error) int {
	var refresh *RefreshExhaustedError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrMissingArgument), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &refresh):
		if refresh.Rejected {
			return http.StatusUnauthorized
		}
		return http.StatusBadGateway
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
