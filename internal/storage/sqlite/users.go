package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/guildtools/guildbank/internal/models"
	"github.com/guildtools/guildbank/internal/storage"
)

// UpsertUser registers a member, creating the row with balance 0 or updating
// only the in-game name if the member already exists.
func (s *SQLiteStore) UpsertUser(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (discord_id, name, balance) VALUES (?, ?, 0)
		ON CONFLICT(discord_id) DO UPDATE SET name = excluded.name`,
		id, name,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// ReplaceUser assigns both name and balance, creating the row if needed.
// No history row is written; this is the bulk-import path.
func (s *SQLiteStore) ReplaceUser(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (discord_id, name, balance) VALUES (?, ?, ?)
		ON CONFLICT(discord_id) DO UPDATE SET name = excluded.name, balance = excluded.balance`,
		user.ID, user.Name, user.Balance,
	)
	if err != nil {
		return fmt.Errorf("failed to replace user: %w", err)
	}
	return nil
}

// GetUser retrieves a member by Discord ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx,
		"SELECT discord_id, name, balance FROM users WHERE discord_id = ?",
		id,
	).Scan(&user.ID, &user.Name, &user.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByName retrieves a member by in-game name, case-insensitively.
func (s *SQLiteStore) GetUserByName(ctx context.Context, name string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx,
		"SELECT discord_id, name, balance FROM users WHERE name = ? COLLATE NOCASE",
		name,
	).Scan(&user.ID, &user.Name, &user.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by name: %w", err)
	}
	return user, nil
}

// ListUsers returns all members ordered by Discord ID.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT discord_id, name, balance FROM users ORDER BY discord_id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// ApplyDelta adds delta to the member's balance and appends the matching
// history row in one transaction. The balance update is conditioned on the
// balance staying non-negative, so a racing debit cannot overdraw and
// concurrent deltas on the same member cannot lose updates.
func (s *SQLiteStore) ApplyDelta(ctx context.Context, id string, delta int64, reason string) (int64, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var oldBalance int64
	err = tx.QueryRowContext(ctx,
		"SELECT balance FROM users WHERE discord_id = ?",
		id,
	).Scan(&oldBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, storage.ErrUnknownUser
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read balance: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE users SET balance = balance + ? WHERE discord_id = ? AND balance + ? >= 0",
		delta, id, delta,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to update balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return 0, 0, &storage.InsufficientFundsError{Balance: oldBalance}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO history (user_id, amount, reason, date) VALUES (?, ?, ?, ?)",
		id, delta, reason, time.Now().Unix(),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to insert history entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return oldBalance, oldBalance + delta, nil
}

// History returns the member's most recent history entries, newest first.
func (s *SQLiteStore) History(ctx context.Context, id string, limit int) ([]models.HistoryEntry, error) {
	query := "SELECT id, user_id, amount, reason, date FROM history WHERE user_id = ? ORDER BY id DESC"
	args := []any{id}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var (
			entry models.HistoryEntry
			date  int64
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Amount, &entry.Reason, &date); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.Date = time.Unix(date, 0)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return entries, nil
}
