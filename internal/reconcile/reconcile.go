// Package reconcile mirrors the ledger to and from an Excel workbook so
// admins can audit or mass-edit balances in a spreadsheet and merge the
// result back in.
package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/guildtools/guildbank/internal/ledger"
)

// ErrUnsupportedFormat is returned when an imported file is not an xlsx
// workbook.
var ErrUnsupportedFormat = errors.New("unsupported file format, expected .xlsx")

// SheetName is the worksheet holding the balance rows.
const SheetName = "Balances"

// Column headers, matching the users table so exported sheets can be
// re-imported unchanged.
const (
	colID      = "discord_id"
	colName    = "name"
	colBalance = "balance"
)

// Reconciler converts the ledger to and from xlsx snapshots.
type Reconciler struct {
	ledger *ledger.Service
}

// New creates a reconciler over the given ledger service.
func New(ledger *ledger.Service) *Reconciler {
	return &Reconciler{ledger: ledger}
}

// Export serializes the full ledger to an xlsx workbook, one row per member.
// The caller owns the bytes; nothing is persisted.
func (r *Reconciler) Export(ctx context.Context) ([]byte, error) {
	users, err := r.ledger.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("export snapshot: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(SheetName); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to locate sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := f.SetSheetRow(SheetName, "A1", &[]any{colID, colName, colBalance}); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, user := range users {
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(SheetName, cell, &[]any{user.ID, user.Name, user.Balance}); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	slog.Info("ledger exported", "rows", len(users))
	return buf.Bytes(), nil
}

// Import merges an edited snapshot back into the ledger. Rows carrying both
// a discord_id and a balance overwrite that member directly (no history);
// rows missing either are skipped. Returns the number of rows applied.
// Non-xlsx payloads are rejected with ErrUnsupportedFormat.
func (r *Reconciler) Import(ctx context.Context, data []byte) (int, error) {
	// xlsx workbooks are zip archives; anything else (csv, xls, garbage)
	// is rejected before parsing.
	if !bytes.HasPrefix(data, []byte("PK")) {
		return 0, ErrUnsupportedFormat
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return 0, ErrUnsupportedFormat
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return 0, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	// Map columns by header so edited sheets survive reordering.
	cols := map[string]int{}
	for i, header := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(header))] = i
	}
	idCol, ok := cols[colID]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s column", ErrUnsupportedFormat, colID)
	}
	balanceCol, hasBalance := cols[colBalance]
	nameCol, hasName := cols[colName]

	snapshot := make([]ledger.SnapshotRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		var sr ledger.SnapshotRow
		if idCol < len(row) {
			sr.ID = strings.TrimSpace(row[idCol])
		}
		if hasName && nameCol < len(row) && row[nameCol] != "" {
			name := row[nameCol]
			sr.Name = &name
		}
		if hasBalance && balanceCol < len(row) {
			if balance, err := parseBalance(row[balanceCol]); err == nil {
				sr.Balance = &balance
			}
		}
		snapshot = append(snapshot, sr)
	}

	applied, err := r.ledger.BulkUpsert(ctx, snapshot)
	if err != nil {
		return applied, fmt.Errorf("import snapshot: %w", err)
	}
	slog.Info("ledger imported", "applied", applied, "rows", len(snapshot))
	return applied, nil
}

// parseBalance accepts both integer cells and float-formatted ones, which
// spreadsheet editors sometimes produce.
func parseBalance(cell string) (int64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, fmt.Errorf("empty balance cell")
	}
	if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return v, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid balance %q: %w", cell, err)
	}
	return int64(v), nil
}
