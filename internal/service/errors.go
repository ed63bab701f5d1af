package service

import (
	"errors"
	"fmt"
)

var (
	ErrDatabaseClosed = errors.New("realtime database is closed")
	ErrEmptyKey       = errors.New("empty key")
	ErrInvalidKey     = errors.New("invalid key")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Operations reported in SyncError.Op.
const (
	OpInitialPull = "initial_pull"
	OpStream      = "stream"
	OpPull        = "pull"
	OpPush        = "push"
	OpLoad        = "load"
)

// SyncError is a failure of the background machinery. It is delivered on
// RealtimeDatabase.SyncErrors and never stops the loop by itself.
type SyncError struct {
	Op  string
	Key string
	Err error
}

func (e *SyncError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
