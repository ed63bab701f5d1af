package store

import "errors"

// Sentinel errors returned by entry stores. Callers should use [errors.Is]
// to match against these values.
var (
	// ErrEntryNotFound is returned by Get when the key has no entry.
	ErrEntryNotFound = errors.New("entry was not found")

	// ErrSkipModify is returned by a ModifyFunc to leave the entry as is.
	// Modify itself never returns it.
	ErrSkipModify = errors.New("skip modify")

	// ErrStoreClosed is returned by every method after Close.
	ErrStoreClosed = errors.New("entry store is closed")

	// ErrUnknownBackend is returned by the factory for an unsupported
	// storage backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// Low-level database operation errors. These are returned (or wrapped) by
// the SQLite store when a SQL-level operation fails.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the database driver cannot
	// start a new transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommitingTransaction is returned when committing an open transaction
	// fails. The transaction is considered rolled back at this point.
	ErrCommitingTransaction = errors.New("failed to commit transaction")

	// ErrExecutingStatement is returned when executing an INSERT or DELETE
	// fails.
	ErrExecutingStatement = errors.New("failed to executing statement")

	// ErrScanningRow is returned when scanning an entry row fails.
	ErrScanningRow = errors.New("failed to scan entry row")
)
