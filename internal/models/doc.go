// Package models defines the persistent domain models for the guild bank.
//
// Two kinds of state exist in the system:
//
//   - Durable ledger state (this package): registered users with their
//     in-game name and silver balance, plus an append-only history of
//     signed balance changes. Stored in sqlite, survives restarts.
//
//   - Volatile split-session state (package split): the roster and pool of
//     an in-flight loot split. Lives only in process memory and is lost on
//     restart, which is accepted — a split is announced, joined and
//     finalized within minutes.
//
// A user's balance must always equal the sum of their history deltas since
// registration. The ledger service keeps this true by construction: every
// credit or debit writes its history row in the same transaction as the
// balance update. The one deliberate exception is the bulk Excel import,
// which assigns balances directly without history rows.
package models
