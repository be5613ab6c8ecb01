package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Representation of errors raised while watching services. These are
// divided into a small number of categories, distinguished by which
// step of the watch loop failed, and so by how far the failure
// reaches:
//  - auth failures end the process;
//  - discovery and inspection failures abandon the current tick;
//  - pull, update and cleanup failures are local to one service.
type Error struct {
	Type Type
	// the service name or image reference the error concerns, if any
	Subject string
	// the underlying error
	Err error
}

func (e *Error) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s %s: %s", e.Type, e.Subject, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Err)
}

// Cause lets github.com/pkg/errors.Cause see through an *Error.
func (e *Error) Cause() error {
	return e.Err
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Type string

const (
	// Logging in to the registry failed
	Auth Type = "auth"
	// The running services could not be listed
	Discovery Type = "discovery"
	// A service's metadata could not be read or parsed
	Inspect Type = "inspect"
	// The image could not be checked or pulled
	Pull Type = "pull"
	// The forced redeploy of a service was refused
	Update Type = "update"
	// Pruning containers or images failed
	Cleanup Type = "cleanup"
)

var (
	ErrEmptyImage          = errors.New("no image reference")
	ErrUnknownPullResponse = errors.New("unknown pull response")
	ErrNoRecord            = errors.New("no service record returned")
)

func AuthError(err error) error {
	return &Error{Type: Auth, Err: err}
}

func DiscoveryError(err error) error {
	return &Error{Type: Discovery, Err: err}
}

func InspectError(service string, err error) error {
	return &Error{Type: Inspect, Subject: service, Err: err}
}

func PullError(image string, err error) error {
	return &Error{Type: Pull, Subject: image, Err: err}
}

func UpdateError(service string, err error) error {
	return &Error{Type: Update, Subject: service, Err: err}
}

func CleanupError(err error) error {
	return &Error{Type: Cleanup, Err: err}
}

// Is reports whether err, or anything it wraps, is an *Error of the
// given type.
func Is(err error, t Type) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsFatal reports whether the process should stop because of err.
// Only a failure to authenticate is fatal; everything else is retried
// on the next tick.
func IsFatal(err error) bool {
	return Is(err, Auth)
}

func (e *Error) MarshalJSON() ([]byte, error) {
	var errMsg string
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	jsonable := &struct {
		Type    string `json:"type"`
		Subject string `json:"subject,omitempty"`
		Err     string `json:"error,omitempty"`
	}{
		Type:    string(e.Type),
		Subject: e.Subject,
		Err:     errMsg,
	}
	return json.Marshal(jsonable)
}
