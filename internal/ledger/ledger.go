// Package ledger implements the guild bank's balance service. It is the only
// component that mutates balances, and every credit or debit carries a
// matching history entry written in the same store transaction.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guildtools/guildbank/internal/models"
	"github.com/guildtools/guildbank/internal/storage"
)

// Movement describes the outcome of a single balance change.
type Movement struct {
	UserID     string
	Amount     int64 // absolute amount of the change
	OldBalance int64
	NewBalance int64
}

// SnapshotRow is one row of a tabular ledger snapshot, as exported to or
// imported from a spreadsheet. Name and Balance are pointers because an
// imported sheet may omit columns; rows missing ID or Balance are skipped
// by BulkUpsert.
type SnapshotRow struct {
	ID      string
	Name    *string
	Balance *int64
}

// Service is the ledger transactor.
type Service struct {
	store storage.Store
}

// NewService creates a ledger service over the given storage backend.
func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

// Register upserts a member: first registration creates the account with
// balance 0, re-registration only updates the in-game name. Idempotent.
func (s *Service) Register(ctx context.Context, id, name string) error {
	if err := s.store.UpsertUser(ctx, id, name); err != nil {
		return fmt.Errorf("register %s: %w", id, err)
	}
	slog.Info("user registered", "user_id", id, "name", name)
	return nil
}

// Credit increases the member's balance by amount and records a history
// entry with a positive delta. Fails with storage.ErrUnknownUser for
// unregistered members; a negative amount is rejected outright.
func (s *Service) Credit(ctx context.Context, id string, amount int64, reason string) (*Movement, error) {
	if amount < 0 {
		return nil, fmt.Errorf("credit amount must not be negative, got %d", amount)
	}
	oldBal, newBal, err := s.store.ApplyDelta(ctx, id, amount, reason)
	if err != nil {
		return nil, fmt.Errorf("credit %s: %w", id, err)
	}
	slog.Info("balance credited", "user_id", id, "amount", amount, "reason", reason, "new_balance", newBal)
	return &Movement{UserID: id, Amount: amount, OldBalance: oldBal, NewBalance: newBal}, nil
}

// Debit decreases the member's balance by amount and records a history entry
// with a negative delta. Fails with *storage.InsufficientFundsError when the
// balance does not cover the amount, leaving the balance unchanged.
func (s *Service) Debit(ctx context.Context, id string, amount int64, reason string) (*Movement, error) {
	if amount < 0 {
		return nil, fmt.Errorf("debit amount must not be negative, got %d", amount)
	}
	oldBal, newBal, err := s.store.ApplyDelta(ctx, id, -amount, reason)
	if err != nil {
		return nil, fmt.Errorf("debit %s: %w", id, err)
	}
	slog.Info("balance debited", "user_id", id, "amount", amount, "reason", reason, "new_balance", newBal)
	return &Movement{UserID: id, Amount: amount, OldBalance: oldBal, NewBalance: newBal}, nil
}

// Profile returns the member's registered name and balance.
func (s *Service) Profile(ctx context.Context, id string) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

// LookupByName resolves an in-game name to a member, case-insensitively.
func (s *Service) LookupByName(ctx context.Context, name string) (*models.User, error) {
	return s.store.GetUserByName(ctx, name)
}

// RecentHistory returns the member's latest history entries, newest first.
func (s *Service) RecentHistory(ctx context.Context, id string, limit int) ([]models.HistoryEntry, error) {
	if _, err := s.store.GetUser(ctx, id); err != nil {
		return nil, err
	}
	return s.store.History(ctx, id, limit)
}

// Snapshot returns every member for export, ordered by Discord ID.
func (s *Service) Snapshot(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx)
}

// BulkUpsert applies a tabular snapshot back into the ledger. Each row with
// both an ID and a balance overwrites that member's balance (and name, when
// present) directly; no history entries are written. Rows missing ID or
// balance are skipped. Returns the number of rows applied.
func (s *Service) BulkUpsert(ctx context.Context, rows []SnapshotRow) (int, error) {
	applied := 0
	for _, row := range rows {
		if row.ID == "" || row.Balance == nil {
			continue
		}
		user := &models.User{ID: row.ID, Balance: *row.Balance}
		if row.Name != nil {
			user.Name = *row.Name
		} else if existing, err := s.store.GetUser(ctx, row.ID); err == nil {
			user.Name = existing.Name
		}
		if err := s.store.ReplaceUser(ctx, user); err != nil {
			return applied, fmt.Errorf("bulk upsert %s: %w", row.ID, err)
		}
		applied++
	}
	slog.Info("bulk upsert applied", "rows", applied, "skipped", len(rows)-applied)
	return applied, nil
}
