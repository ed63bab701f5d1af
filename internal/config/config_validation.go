// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"net/url"
)

// validate checks that the final merged [StructuredConfig] satisfies the
// invariants shared by all binaries. Binary-specific checks live on the
// views returned by [GetClientConfig] and [GetEmulatorConfig].
func (cfg *StructuredConfig) validate() error {
	if cfg.Adapter.RequestsPerSecond < 0 || cfg.Adapter.Burst < 0 {
		return ErrInvalidAdapterConfigs
	}
	if cfg.Workers.SyncInterval < 0 || cfg.Workers.StreamRetryDelay < 0 {
		return ErrInvalidWorkerConfigs
	}
	return nil
}

func (cfg *ClientConfig) validate() error {
	u, err := url.Parse(cfg.Adapter.BaseURL)
	if cfg.Adapter.BaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidAdapterConfigs
	}

	switch cfg.Storage.Backend {
	case StorageBackendMemory, StorageBackendFile, StorageBackendSQLite:
	default:
		return ErrInvalidStorageConfigs
	}

	if cfg.Chat.Author == "" {
		return ErrInvalidChatConfigs
	}

	return nil
}

func (cfg *EmulatorConfig) validate() error {
	if cfg.Address == "" || cfg.KeepAlive <= 0 {
		return ErrInvalidServerConfigs
	}
	return nil
}
