package db

import (
	"context"
	"database/sql"
	"time"
)

// Database defines the unified interface for relational database operations.
// This abstraction allows repositories to run the same statements directly
// against the pool or inside a transaction without changing business logic.
type Database interface {
	// Query executes a query that returns rows
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)

	// QueryRow executes a query that returns at most one row
	QueryRow(ctx context.Context, query string, args ...interface{}) Row

	// Exec executes a query that doesn't return rows
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)

	// Transaction executes a function within a database transaction.
	// The transaction is committed when fn returns nil and rolled back otherwise.
	Transaction(ctx context.Context, fn func(tx Transaction) error) error

	// BeginTx starts a new transaction with the given options
	BeginTx(ctx context.Context, opts *TxOptions) (Transaction, error)

	// Ping verifies a connection to the database is still alive
	Ping(ctx context.Context) error

	// Close closes the database connection
	Close() error

	// Stats returns database statistics
	Stats() Stats
}

// Transaction defines operations available inside a database transaction
type Transaction interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error
}

// Rows is the result of a query returning multiple rows
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Row is the result of a query returning at most one row
type Row interface {
	Scan(dest ...interface{}) error
}

// Result summarizes an executed statement
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// TxOptions holds transaction options
type TxOptions struct {
	Isolation IsolationLevel
	ReadOnly  bool
}

// IsolationLevel is the transaction isolation level
type IsolationLevel int

// Isolation levels supported by the drivers in use
const (
	LevelDefault IsolationLevel = iota
	LevelReadUncommitted
	LevelReadCommitted
	LevelRepeatableRead
	LevelSerializable
)

// ConvertTxOptions converts TxOptions to database/sql options
func ConvertTxOptions(opts *TxOptions) *sql.TxOptions {
	if opts == nil {
		return nil
	}
	var iso sql.IsolationLevel
	switch opts.Isolation {
	case LevelReadUncommitted:
		iso = sql.LevelReadUncommitted
	case LevelReadCommitted:
		iso = sql.LevelReadCommitted
	case LevelRepeatableRead:
		iso = sql.LevelRepeatableRead
	case LevelSerializable:
		iso = sql.LevelSerializable
	default:
		iso = sql.LevelDefault
	}
	return &sql.TxOptions{Isolation: iso, ReadOnly: opts.ReadOnly}
}

// Stats holds database pool statistics
type Stats struct {
	OpenConnections int
	InUse           int
	Idle            int
	WaitCount       int64
	WaitDuration    time.Duration
}

// ConvertSQLStats converts database/sql statistics
func ConvertSQLStats(s sql.DBStats) Stats {
	return Stats{
		OpenConnections: s.OpenConnections,
		InUse:           s.InUse,
		Idle:            s.Idle,
		WaitCount:       s.WaitCount,
		WaitDuration:    s.WaitDuration,
	}
}
