// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MKhiriev/go-firesync/internal/config"
	"github.com/MKhiriev/go-firesync/internal/logger"
)

const maxFileNameLength = 100

// NewFactory returns a Factory that opens stores of the configured backend.
// File-backed stores live in cfg.Dir, one file per collection, named after
// the collection and the filename modifier.
func NewFactory(cfg config.ClientStorage, log *logger.Logger) Factory {
	return func(collection, filenameModifier string) (EntryStore, error) {
		modifier := filenameModifier
		if modifier == "" {
			modifier = cfg.FilenameModifier
		}

		switch cfg.Backend {
		case config.StorageBackendMemory:
			return NewMemoryEntryStore(), nil
		case config.StorageBackendFile:
			path := filepath.Join(cfg.Dir, FileName(collection, modifier)+".json")
			log.Debug().Str("func", "store.Factory").Str("path", path).Msg("opening file entry store")
			return NewFileEntryStore(path)
		case config.StorageBackendSQLite:
			path := filepath.Join(cfg.Dir, FileName(collection, modifier)+".db")
			log.Debug().Str("func", "store.Factory").Str("path", path).Msg("opening sqlite entry store")
			return NewSQLiteEntryStore(context.Background(), path, log)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
		}
	}
}

// FileName derives a file system safe base name for the store of a
// collection.
func FileName(collection, filenameModifier string) string {
	var b strings.Builder
	for _, r := range collection + filenameModifier {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	name := strings.Trim(b.String(), ".")
	if name == "" {
		name = "collection"
	}
	if len(name) > maxFileNameLength {
		name = name[:maxFileNameLength]
	}
	return name
}
