// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-firesync/models"
)

func TestBuildSelectEntryQuery(t *testing.T) {
	query, args, err := buildSelectEntryQuery("-Nkey")
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT entry_key, data, priority, updated_at, sync_state, is_partial FROM entries WHERE entry_key = ?",
		query)
	assert.Equal(t, []any{"-Nkey"}, args)
}

func TestBuildSelectAllEntriesQuery(t *testing.T) {
	query, args, err := buildSelectAllEntriesQuery()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT entry_key, data, priority, updated_at, sync_state, is_partial FROM entries ORDER BY entry_key",
		query)
	assert.Empty(t, args)
}

func TestBuildUpsertEntriesQuery(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("single entry", func(t *testing.T) {
		e := models.Entry{Key: "a", Data: "1", Priority: 2, Timestamp: ts, SyncState: models.SyncPatch, IsPartial: true}

		query, args, err := buildUpsertEntriesQuery(e)
		require.NoError(t, err)

		assert.Contains(t, query, "INSERT INTO entries (entry_key,data,priority,updated_at,sync_state,is_partial) VALUES (?,?,?,?,?,?)")
		assert.Contains(t, query, "ON CONFLICT(entry_key) DO UPDATE SET")
		assert.Equal(t, []any{"a", "1", 2, ts, int(models.SyncPatch), true}, args)
	})

	t.Run("several entries", func(t *testing.T) {
		query, args, err := buildUpsertEntriesQuery(
			models.Entry{Key: "a", Timestamp: ts},
			models.Entry{Key: "b", Timestamp: ts},
		)
		require.NoError(t, err)

		assert.Contains(t, query, "VALUES (?,?,?,?,?,?),(?,?,?,?,?,?)")
		assert.Len(t, args, 12)
	})

	t.Run("no entries", func(t *testing.T) {
		_, _, err := buildUpsertEntriesQuery()
		assert.ErrorIs(t, err, ErrBuildingSQLQuery)
	})
}

func TestBuildDeleteEntryQuery(t *testing.T) {
	query, args, err := buildDeleteEntryQuery("-Nkey")
	require.NoError(t, err)

	assert.Equal(t, "DELETE FROM entries WHERE entry_key = ?", query)
	assert.Equal(t, []any{"-Nkey"}, args)
}
