package config

import "errors"

// Validation errors returned when required configuration groups are
// incomplete or invalid.
var (
	// ErrInvalidAdapterConfigs indicates invalid transport settings
	// (for example, a missing or relative base URL).
	ErrInvalidAdapterConfigs = errors.New("invalid adapter configuration")
	// ErrInvalidStorageConfigs indicates an unknown local store backend.
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidWorkerConfigs indicates invalid synchronization settings
	// (for example, an unknown initial pull strategy).
	ErrInvalidWorkerConfigs = errors.New("invalid worker configuration")
	// ErrInvalidServerConfigs indicates invalid emulator settings.
	ErrInvalidServerConfigs = errors.New("invalid server configuration")
	// ErrInvalidChatConfigs indicates a chat client without an author.
	ErrInvalidChatConfigs = errors.New("invalid chat configuration")
)
