package models

import "errors"

var (
	// ErrRemoteUnavailable marks network or HTTP failures talking to the FAA API.
	ErrRemoteUnavailable = errors.New("remote source unavailable")
	// ErrMalformedPayload marks responses missing required fields or carrying
	// invalid serial range bounds.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrStoreUnavailable means the local database is missing or unusable.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidArgument is returned before any I/O for unusable options.
	ErrInvalidArgument = errors.New("invalid argument")
)
