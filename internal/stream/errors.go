package stream

import "errors"

var (
	// ErrCancelled is returned by Err when the server sent a cancel frame,
	// typically because security rules no longer allow reading the location.
	ErrCancelled = errors.New("stream cancelled by server")

	// ErrMalformedFrame is reported for put or patch data that is not a
	// {path, data} object.
	ErrMalformedFrame = errors.New("malformed stream frame")

	// ErrStreamEnded is reported when the server closes the connection.
	ErrStreamEnded = errors.New("stream ended by server")

	errAuthRevoked = errors.New("auth revoked")
)
