package exvhp

import (
	"errors"
	"fmt"
)

// ErrNotReady matches, via errors.Is, the *NotReadyError returned when a
// video is resolved before the platform finished processing it. It marks a
// transient state, not a failure; callers should poll Status and try again.
var ErrNotReady = errors.New("video not ready")

// TransportError wraps a network-level failure (timeout, connection reset,
// DNS). It never indicates a terminal condition; the request is safe to
// retry as-is.
type TransportError struct {
	Platform Platform
	Op       Operation
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: transport: %v", e.Platform, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UploadError is returned when a platform rejected or failed to process an
// upload. Terminal for that request; retry only after correcting the cause.
type UploadError struct {
	Platform   Platform
	HTTPStatus int
	Reason     string
}

func (e *UploadError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s: upload rejected (http %d): %s", e.Platform, e.HTTPStatus, e.Reason)
	}
	return fmt.Sprintf("%s: upload rejected: %s", e.Platform, e.Reason)
}

// StatusError is returned when a platform does not know the given id
// (expired, deleted, or never existed). Terminal; polling again cannot help.
type StatusError struct {
	Platform   Platform
	ID         string
	HTTPStatus int
	Reason     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unknown video %q: %s", e.Platform, e.ID, e.Reason)
}

// NotReadyError is returned by Resolve when the platform has acknowledged
// the video but has not finished processing it. errors.Is(err, ErrNotReady)
// matches it.
type NotReadyError struct {
	Platform Platform
	ID       string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s: video %q not ready", e.Platform, e.ID)
}

func (e *NotReadyError) Unwrap() error { return ErrNotReady }

// UnsupportedOperationError is returned when an adapter's platform has no
// endpoint for the requested operation. Host.Supports reports the capability
// without a network call.
type UnsupportedOperationError struct {
	Platform Platform
	Op       Operation
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s: %s not supported", e.Platform, e.Op)
}

// DeleteError is returned when a platform explicitly rejected a delete.
// "Already gone" responses are treated as success, not as a DeleteError.
type DeleteError struct {
	Platform   Platform
	ID         string
	HTTPStatus int
	Reason     string
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("%s: delete %q rejected (http %d): %s", e.Platform, e.ID, e.HTTPStatus, e.Reason)
}
