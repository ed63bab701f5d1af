package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/MKhiriev/go-firesync/internal/logger"
	"github.com/MKhiriev/go-firesync/models"
)

type sqliteEntryStore struct {
	*DB
	mu sync.Mutex
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewSQLiteEntryStore opens the SQLite database at path, migrates it and
// returns an EntryStore over it.
func NewSQLiteEntryStore(ctx context.Context, path string, log *logger.Logger) (EntryStore, error) {
	db, err := NewConnectSQLite(ctx, path, log)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	if err = db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return newSQLiteEntryStore(db), nil
}

func newSQLiteEntryStore(db *DB) *sqliteEntryStore {
	return &sqliteEntryStore{DB: db}
}

func (s *sqliteEntryStore) Get(ctx context.Context, key string) (models.Entry, error) {
	return s.getEntry(ctx, s.DB, key)
}

func (s *sqliteEntryStore) All(ctx context.Context) ([]models.Entry, error) {
	query, args, err := buildSelectAllEntriesQuery()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Err(err).
			Str("func", "sqliteEntryStore.All").
			Msg("failed to execute query for getting all entries")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var (
			e     models.Entry
			state int
		)
		if err = rows.Scan(&e.Key, &e.Data, &e.Priority, &e.Timestamp, &state, &e.IsPartial); err != nil {
			s.logger.Err(err).
				Str("func", "sqliteEntryStore.All").
				Msg("failed to scan entry row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		e.SyncState = models.SyncState(state)
		entries = append(entries, e)
	}

	if err = rows.Err(); err != nil {
		s.logger.Err(err).
			Str("func", "sqliteEntryStore.All").
			Msg("error iterating entry rows")
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return entries, nil
}

func (s *sqliteEntryStore) Set(ctx context.Context, entries ...models.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.upsert(ctx, s.DB, entries...)
}

func (s *sqliteEntryStore) Delete(ctx context.Context, key string) error {
	return s.delete(ctx, s.DB, key)
}

func (s *sqliteEntryStore) Modify(ctx context.Context, key string, fn ModifyFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Err(err).
			Str("func", "sqliteEntryStore.Modify").
			Str("key", key).
			Msg("failed to begin transaction")
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	var current *models.Entry
	e, err := s.getEntry(ctx, tx, key)
	switch {
	case err == nil:
		current = &e
	case errors.Is(err, ErrEntryNotFound):
	default:
		return err
	}

	next, err := fn(current)
	if errors.Is(err, ErrSkipModify) {
		return nil
	}
	if err != nil {
		return err
	}

	switch {
	case next != nil:
		next.Key = key
		err = s.upsert(ctx, tx, *next)
	case current != nil:
		err = s.delete(ctx, tx, key)
	default:
		return nil
	}
	if err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		s.logger.Err(err).
			Str("func", "sqliteEntryStore.Modify").
			Str("key", key).
			Msg("failed to commit transaction")
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}
	return nil
}

func (s *sqliteEntryStore) Close() error {
	return s.DB.Close()
}

func (s *sqliteEntryStore) getEntry(ctx context.Context, q queryer, key string) (models.Entry, error) {
	query, args, err := buildSelectEntryQuery(key)
	if err != nil {
		return models.Entry{}, err
	}

	var (
		e     models.Entry
		state int
	)
	err = q.QueryRowContext(ctx, query, args...).
		Scan(&e.Key, &e.Data, &e.Priority, &e.Timestamp, &state, &e.IsPartial)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entry{}, fmt.Errorf("%w: %q", ErrEntryNotFound, key)
	}
	if err != nil {
		s.logger.Err(err).
			Str("func", "sqliteEntryStore.getEntry").
			Str("key", key).
			Msg("failed to scan entry row")
		return models.Entry{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	e.SyncState = models.SyncState(state)
	return e, nil
}

func (s *sqliteEntryStore) upsert(ctx context.Context, q queryer, entries ...models.Entry) error {
	query, args, err := buildUpsertEntriesQuery(entries...)
	if err != nil {
		return err
	}

	if _, err = q.ExecContext(ctx, query, args...); err != nil {
		s.logger.Err(err).
			Str("func", "sqliteEntryStore.upsert").
			Int("count", len(entries)).
			Msg("failed to execute upsert for entries")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

func (s *sqliteEntryStore) delete(ctx context.Context, q queryer, key string) error {
	query, args, err := buildDeleteEntryQuery(key)
	if err != nil {
		return err
	}

	if _, err = q.ExecContext(ctx, query, args...); err != nil {
		s.logger.Err(err).
			Str("func", "sqliteEntryStore.delete").
			Str("key", key).
			Msg("failed to delete entry")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}
