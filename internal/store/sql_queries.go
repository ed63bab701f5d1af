// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/MKhiriev/go-firesync/models"
)

const entriesTable = "entries"

var entryColumns = []string{
	"entry_key",
	"data",
	"priority",
	"updated_at",
	"sync_state",
	"is_partial",
}

const upsertEntrySuffix = `ON CONFLICT(entry_key) DO UPDATE SET
	data = excluded.data,
	priority = excluded.priority,
	updated_at = excluded.updated_at,
	sync_state = excluded.sync_state,
	is_partial = excluded.is_partial`

func buildSelectEntryQuery(key string) (string, []any, error) {
	query, args, err := sq.Select(entryColumns...).
		From(entriesTable).
		Where(sq.Eq{"entry_key": key}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}

func buildSelectAllEntriesQuery() (string, []any, error) {
	query, args, err := sq.Select(entryColumns...).
		From(entriesTable).
		OrderBy("entry_key").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}

func buildUpsertEntriesQuery(entries ...models.Entry) (string, []any, error) {
	if len(entries) == 0 {
		return "", nil, fmt.Errorf("%w: no entries", ErrBuildingSQLQuery)
	}

	builder := sq.Insert(entriesTable).Columns(entryColumns...)
	for _, e := range entries {
		builder = builder.Values(e.Key, e.Data, e.Priority, e.Timestamp, int(e.SyncState), e.IsPartial)
	}

	query, args, err := builder.Suffix(upsertEntrySuffix).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}

func buildDeleteEntryQuery(key string) (string, []any, error) {
	query, args, err := sq.Delete(entriesTable).
		Where(sq.Eq{"entry_key": key}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	return query, args, nil
}
