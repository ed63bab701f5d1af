// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package emulator

import (
	"errors"
	"net/http"
)

// Sentinel errors returned to clients in the "error" field of the response.
var (
	// ErrPermissionDenied is returned when the request carries no valid
	// token while the emulator requires one.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidPath is returned for paths that do not end in ".json".
	ErrInvalidPath = errors.New("invalid path: paths must end in .json")

	// ErrInvalidData is returned when the request body is not valid JSON,
	// or not an object where one is required.
	ErrInvalidData = errors.New("invalid data: could not parse JSON object, array or value")

	// ErrInvalidQuery is returned for malformed query parameters.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrPreconditionFailed is returned when the if-match header of a write
	// does not match the ETag of the current value.
	ErrPreconditionFailed = errors.New("precondition failed: etag mismatch")
)

var errorStatusMap = map[error]int{
	ErrPermissionDenied: http.StatusUnauthorized,
	ErrInvalidPath:      http.StatusBadRequest,
	ErrInvalidData:      http.StatusBadRequest,
	ErrInvalidQuery:     http.StatusBadRequest,

	ErrPreconditionFailed: http.StatusPreconditionFailed,
}

func statusFromError(err error) int {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}
