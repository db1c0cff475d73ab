// Package exvhp is a unified client for several third-party video hosting
// platforms. Each platform is wrapped by an adapter implementing the Host
// interface; Client dispatches the four logical operations (upload, status,
// resolve, delete) to the adapter selected by a Platform value.
package exvhp

import (
	"context"
	"io"
)

// Platform identifies a supported video hosting platform.
type Platform string

const (
	PlatformImgur          Platform = "imgur"
	PlatformJustStreamLive Platform = "juststreamlive"
	PlatformStreamable     Platform = "streamable"
	PlatformStreamff       Platform = "streamff"
	PlatformStreamja       Platform = "streamja"
	PlatformStreamwo       Platform = "streamwo"
)

func (p Platform) String() string {
	return string(p)
}

// Valid reports whether p names a supported platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformImgur, PlatformJustStreamLive, PlatformStreamable,
		PlatformStreamff, PlatformStreamja, PlatformStreamwo:
		return true
	}
	return false
}

// Operation is one of the logical operations an adapter may support.
type Operation string

const (
	OpUpload  Operation = "upload"
	OpStatus  Operation = "status"
	OpResolve Operation = "resolve"
	OpDelete  Operation = "delete"
)

// State is the processing state of an uploaded video.
type State string

const (
	StatePending State = "pending"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// UploadRequest describes a video payload to upload.
//
// Content is read exactly once. Size must be the exact payload length in
// bytes; Streamable requires it up front and the multipart platforms use it
// to size the request. Title is forwarded only to platforms that accept it
// (Imgur, Streamable); the rest ignore it.
type UploadRequest struct {
	Content  io.Reader
	Filename string
	Size     int64
	Title    string
}

// UploadResult is returned once a platform has acknowledged an upload.
// It is immutable; re-query the platform via Status for processing progress.
type UploadResult struct {
	Platform Platform
	// ID is the platform-native identifier, meaningful only together
	// with Platform.
	ID string
	// DeleteKey is set by platforms whose delete endpoint takes a
	// separate secret (Imgur's deletehash). Empty elsewhere.
	DeleteKey string
	// URL is the playback URL when the platform exposes it at upload
	// time, empty until processing completes otherwise.
	URL string
}

// StatusResult is a point-in-time snapshot of a video's processing state.
type StatusResult struct {
	Platform Platform
	ID       string
	State    State
	// URL is the playback URL, set only when State is StateReady.
	URL string
}

// Host is the per-platform adapter contract. Implementations are stateless
// besides construction-time configuration and are safe for concurrent use.
type Host interface {
	Platform() Platform

	// Upload sends the payload and returns once the platform has
	// acknowledged it. The platform may still be processing; poll Status.
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)

	// Status re-queries the platform for the video's processing state.
	// An id unknown to the platform yields a *StatusError.
	Status(ctx context.Context, id string) (*StatusResult, error)

	// Resolve returns the direct playback URL. Every adapter in this
	// package is strict: calling Resolve before the video is ready fails
	// with ErrNotReady rather than polling implicitly.
	Resolve(ctx context.Context, id string) (string, error)

	// Delete removes the video. Adapters whose platform has no delete
	// endpoint fail with *UnsupportedOperationError; Supports(OpDelete)
	// reports the capability without a network call.
	Delete(ctx context.Context, id string) error

	// Supports reports whether the adapter implements op.
	Supports(op Operation) bool
}
