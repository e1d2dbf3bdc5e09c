package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/carddex/internal/catalog"
	"github.com/louisbranch/carddex/internal/filter"
	apperrors "github.com/louisbranch/carddex/internal/platform/errors"
	"github.com/louisbranch/carddex/internal/storage"
	"github.com/louisbranch/carddex/internal/storage/cursor"
)

const ledgerColumns = "seq, ts, actor_id, kind, item_kind, item_id, coin_delta, xp_delta, quantity_delta, ref"

// appendLedgerTx journals one economy mutation inside tx. Callers hold
// the transaction that applies the mutation itself.
func appendLedgerTx(ctx context.Context, tx *sql.Tx, e storage.LedgerEntry) error {
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO ledger_entries (ts, actor_id, kind, item_kind, item_id, coin_delta, xp_delta, quantity_delta, ref)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		toMillis(e.Timestamp),
		e.ActorID,
		string(e.Kind),
		string(e.Item.Kind),
		e.Item.ID,
		e.CoinDelta,
		e.XPDelta,
		e.QuantityDelta,
		e.Ref,
	); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func scanLedgerEntry(scan func(dest ...any) error) (storage.LedgerEntry, error) {
	var e storage.LedgerEntry
	var ts int64
	var itemKind string
	if err := scan(
		&e.Seq,
		&ts,
		&e.ActorID,
		&e.Kind,
		&itemKind,
		&e.Item.ID,
		&e.CoinDelta,
		&e.XPDelta,
		&e.QuantityDelta,
		&e.Ref,
	); err != nil {
		return storage.LedgerEntry{}, err
	}
	e.Timestamp = fromMillis(ts)
	e.Item.Kind = catalog.ItemKind(itemKind)
	return e, nil
}

// conditionFingerprint keys page tokens to the filter that minted them.
func conditionFingerprint(c filter.SQLCondition) string {
	if c.Clause == "" {
		return ""
	}
	return c.Clause + "|" + fmt.Sprint(c.Params...)
}

// ListLedger returns one page of journal entries, newest first.
func (s *Store) ListLedger(ctx context.Context, q storage.LedgerQuery) (storage.LedgerPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.LedgerPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.LedgerPage{}, fmt.Errorf("storage is not configured")
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}

	fingerprint := conditionFingerprint(q.Condition)
	whereClause := "1 = 1"
	params := []any{}
	if q.PageToken != "" {
		cur, err := cursor.Decode(q.PageToken)
		if err != nil {
			return storage.LedgerPage{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "page token is invalid", err)
		}
		if err := cursor.ValidateFilterHash(cur, fingerprint); err != nil {
			return storage.LedgerPage{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "page token does not match filter", err)
		}
		whereClause += " AND seq < ?"
		params = append(params, cur.Seq)
	}
	if q.Condition.Clause != "" {
		whereClause += " AND " + q.Condition.Clause
		params = append(params, q.Condition.Params...)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM ledger_entries WHERE %s ORDER BY seq DESC LIMIT %d",
		ledgerColumns,
		whereClause,
		pageSize+1,
	)
	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return storage.LedgerPage{}, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	page := storage.LedgerPage{Entries: make([]storage.LedgerEntry, 0, pageSize)}
	for rows.Next() {
		entry, err := scanLedgerEntry(rows.Scan)
		if err != nil {
			return storage.LedgerPage{}, fmt.Errorf("scan ledger entry: %w", err)
		}
		page.Entries = append(page.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return storage.LedgerPage{}, fmt.Errorf("iterate ledger: %w", err)
	}

	if len(page.Entries) > pageSize {
		page.Entries = page.Entries[:pageSize]
		token, err := cursor.Encode(cursor.Cursor{
			Seq:        page.Entries[pageSize-1].Seq,
			FilterHash: cursor.HashFilter(fingerprint),
		})
		if err != nil {
			return storage.LedgerPage{}, fmt.Errorf("encode page token: %w", err)
		}
		page.NextPageToken = token
	}
	return page, nil
}

// StreamLedger walks entries with sequence numbers above sinceSeq in
// ascending order, stopping at the first callback error.
func (s *Store) StreamLedger(ctx context.Context, sinceSeq int64, fn func(storage.LedgerEntry) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if fn == nil {
		return fmt.Errorf("callback is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE seq > ? ORDER BY seq ASC`,
		sinceSeq,
	)
	if err != nil {
		return fmt.Errorf("query ledger stream: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanLedgerEntry(rows.Scan)
		if err != nil {
			return fmt.Errorf("scan ledger entry: %w", err)
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate ledger stream: %w", err)
	}
	return nil
}
