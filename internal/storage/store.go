// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/guildtools/guildbank/internal/models"
)

// ErrUnknownUser is returned when an operation targets a Discord ID or
// in-game name that was never registered.
var ErrUnknownUser = errors.New("user not registered")

// InsufficientFundsError is returned when a debit would take a balance below
// zero. It carries the current balance so handlers can report it.
type InsufficientFundsError struct {
	Balance int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance is %d", e.Balance)
}

// Store defines the interface for ledger storage operations. This
// abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// UpsertUser registers a member: creates the row with balance 0 if
	// absent, otherwise only updates the in-game name. The balance is
	// never touched by this call.
	UpsertUser(ctx context.Context, id, name string) error

	// ReplaceUser assigns name and balance unconditionally, creating the
	// row if needed. Used by the bulk import path only; writes no history.
	ReplaceUser(ctx context.Context, user *models.User) error

	// GetUser retrieves a member by Discord ID.
	// Returns ErrUnknownUser if the ID was never registered.
	GetUser(ctx context.Context, id string) (*models.User, error)

	// GetUserByName retrieves a member by in-game name, case-insensitively.
	// Returns ErrUnknownUser if no member has that name.
	GetUserByName(ctx context.Context, name string) (*models.User, error)

	// ListUsers returns all members ordered by Discord ID.
	ListUsers(ctx context.Context) ([]models.User, error)

	// ApplyDelta atomically adds delta to the member's balance and appends
	// the matching history row; either both persist or neither does.
	// A delta that would take the balance below zero fails with
	// *InsufficientFundsError and writes nothing. Concurrent deltas on the
	// same member serialize inside the transaction.
	// Returns the balances before and after the change.
	ApplyDelta(ctx context.Context, id string, delta int64, reason string) (oldBalance, newBalance int64, err error)

	// History returns the member's most recent history entries, newest
	// first, up to limit (all entries if limit <= 0).
	History(ctx context.Context, id string, limit int) ([]models.HistoryEntry, error)

	// GetConfig reads a configuration value. Returns "" without error when
	// the key is not set.
	GetConfig(ctx context.Context, key string) (string, error)

	// SetConfig writes a configuration value, overwriting any previous one.
	SetConfig(ctx context.Context, key, value string) error

	// Close releases any resources held by the store.
	Close() error
}
