package content

import (
	"errors"
	"net/http"
)

var (
	// ErrAuth matches an *APIError caused by rejected credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrPermission matches an *APIError caused by missing rights.
	ErrPermission = errors.New("access denied")
)

const (
	msgAuth       = "Authentication failed. Please check your API credentials."
	msgPermission = "Access denied. You do not have permission to perform this action."
	msgGeneric    = "An error occurred while communicating with the content API"
)

// ErrorKind classifies content API failures.
type ErrorKind int

const (
	KindRequest ErrorKind = iota
	KindAuth
	KindPermission
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindPermission:
		return "permission"
	default:
		return "request"
	}
}

// APIError is the single tagged failure returned by every Client method.
// Message is suitable for showing to the user.
type APIError struct {
	Op      string
	Kind    ErrorKind
	Status  int // 0 when no response was received
	Message string
	Err     error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.Err }

// Is matches ErrAuth and ErrPermission by kind.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuth:
		return e.Kind == KindAuth
	case ErrPermission:
		return e.Kind == KindPermission
	}
	return false
}

// newAPIError maps a response status and optional server message to the
// user-facing taxonomy.
func newAPIError(op string, status int, serverMsg string, cause error) *APIError {
	e := &APIError{Op: op, Status: status, Err: cause}
	switch status {
	case http.StatusUnauthorized:
		e.Kind, e.Message = KindAuth, msgAuth
	case http.StatusForbidden:
		e.Kind, e.Message = KindPermission, msgPermission
	default:
		e.Kind, e.Message = KindRequest, serverMsg
		if e.Message == "" {
			e.Message = msgGeneric
		}
	}
	return e
}
