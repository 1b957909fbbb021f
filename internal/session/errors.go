package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSaveInProgress is returned by Save while the same page is saving.
	ErrSaveInProgress = errors.New("save already in progress for this page")
	// ErrNoSaver is returned by Save when the session has no Saver.
	ErrNoSaver = errors.New("session has no saver configured")
)

// MalformedEditError reports an edit rejected before it reached the forest.
type MalformedEditError struct {
	NodeID string
	Reason string
	Err    error
}

func (e *MalformedEditError) Error() string {
	msg := fmt.Sprintf("malformed edit for node %q: %s", e.NodeID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedEditError) Unwrap() error { return e.Err }

func malformed(id, reason string, err error) error {
	return &MalformedEditError{NodeID: id, Reason: reason, Err: err}
}
