package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// MySQL server error numbers handled by the store.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// Store owns the connection pool and runs multi-statement units of work in
// a single transaction.  Repositories participate through the *sql.Tx
// passed to the callback.
type Store struct {
	db         *sql.DB
	dialect    Dialect
	txOpts     *sql.TxOptions
	maxRetries uint64
}

// NewStore wraps db.  MySQL transactions run at SERIALIZABLE so that plain
// reads inside the admission path take shared locks; SQLite transactions
// are already serializable and are opened with BEGIN IMMEDIATE.
func NewStore(db *sql.DB, d Dialect) *Store {
	s := &Store{db: db, dialect: d, maxRetries: 5}
	if d == MySQL {
		s.txOpts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return s
}

// DB exposes the underlying pool for reads that need no transaction.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect reports the backend of the store.
func (s *Store) Dialect() Dialect { return s.dialect }

// WithTx runs fn inside a transaction and commits when fn returns nil.  When
// the database aborts the transaction because of a deadlock, a lock wait
// timeout or a busy database, the whole unit of work is retried with
// exponential backoff; fn must therefore be free of side effects outside
// the transaction.  Any other error from fn rolls back and is returned
// unchanged.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	op := func() error {
		err := s.runTx(ctx, fn)
		if err == nil || IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 3 * time.Second
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, s.maxRetries), ctx))
}

func (s *Store) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, s.txOpts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// IsRetryable reports whether err means the transaction lost a lock race and
// can be replayed from the start.
func IsRetryable(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDeadlock || me.Number == mysqlLockWaitTimeout
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

// IsDuplicateKey reports whether err is a unique constraint violation.
func IsDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// connections without extended result codes report only the primary code
			return strings.Contains(se.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}
