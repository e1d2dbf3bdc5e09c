package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/carddex/internal/catalog"
	apperrors "github.com/louisbranch/carddex/internal/platform/errors"
	"github.com/louisbranch/carddex/internal/storage"
)

const tradeColumns = "id, actor_a, actor_b, state, confirmed_a, confirmed_b, created_at, last_activity_at"

func scanTrade(scan func(dest ...any) error) (storage.Trade, error) {
	var t storage.Trade
	var state string
	var confirmedA, confirmedB int
	var createdAt, lastActivityAt int64
	if err := scan(
		&t.ID,
		&t.ActorA,
		&t.ActorB,
		&state,
		&confirmedA,
		&confirmedB,
		&createdAt,
		&lastActivityAt,
	); err != nil {
		return storage.Trade{}, err
	}
	t.State = storage.TradeState(state)
	t.ConfirmedA = confirmedA != 0
	t.ConfirmedB = confirmedB != 0
	t.CreatedAt = fromMillis(createdAt)
	t.LastActivityAt = fromMillis(lastActivityAt)
	return t, nil
}

func errTradeState(state storage.TradeState, operation string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidTradeState, "trade state does not allow this operation", map[string]string{
		"State":     string(state),
		"Operation": operation,
	})
}

// CreateTrade opens a negotiating session between two actors, failing
// while either party already has a live session.
func (s *Store) CreateTrade(ctx context.Context, p storage.CreateTradeParams) (storage.Trade, error) {
	if err := ctx.Err(); err != nil {
		return storage.Trade{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Trade{}, fmt.Errorf("storage is not configured")
	}
	tradeID := strings.TrimSpace(p.ID)
	if tradeID == "" {
		return storage.Trade{}, fmt.Errorf("trade id is required")
	}
	actorA := strings.TrimSpace(p.ActorA)
	actorB := strings.TrimSpace(p.ActorB)
	if actorA == "" || actorB == "" {
		return storage.Trade{}, fmt.Errorf("both actor ids are required")
	}
	if actorA == actorB {
		return storage.Trade{}, fmt.Errorf("cannot trade with self")
	}
	if p.Now.IsZero() {
		return storage.Trade{}, fmt.Errorf("now is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Trade{}, fmt.Errorf("begin create trade: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var busyA, busyB string
	err = tx.QueryRowContext(
		ctx,
		`SELECT actor_a, actor_b FROM trades
		  WHERE state IN (?, ?) AND last_activity_at > ?
		    AND (actor_a IN (?, ?) OR actor_b IN (?, ?))
		  LIMIT 1`,
		string(storage.TradeNegotiating),
		string(storage.TradeAwaiting),
		toMillis(p.IdleCutoff),
		actorA, actorB,
		actorA, actorB,
	).Scan(&busyA, &busyB)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return storage.Trade{}, fmt.Errorf("check active trades: %w", err)
	}
	if err == nil {
		busy := actorB
		if busyA == actorA || busyB == actorA {
			busy = actorA
		}
		return storage.Trade{}, apperrors.WithMetadata(apperrors.CodeTradeAlreadyActive, "actor already has an active trade", map[string]string{
			"Actor": busy,
		})
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO trades (id, actor_a, actor_b, state, confirmed_a, confirmed_b, created_at, last_activity_at)
		 VALUES (?, ?, ?, ?, 0, 0, ?, ?)`,
		tradeID,
		actorA,
		actorB,
		string(storage.TradeNegotiating),
		toMillis(p.Now),
		toMillis(p.Now),
	); err != nil {
		if isUniqueViolation(err) {
			return storage.Trade{}, storage.ErrAlreadyExists
		}
		return storage.Trade{}, fmt.Errorf("create trade: %w", err)
	}

	trade, err := loadTradeTx(ctx, tx, tradeID)
	if err != nil {
		return storage.Trade{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.Trade{}, fmt.Errorf("commit create trade: %w", err)
	}
	return trade, nil
}

// GetTrade returns one session with its offers.
func (s *Store) GetTrade(ctx context.Context, tradeID string) (storage.Trade, error) {
	if err := ctx.Err(); err != nil {
		return storage.Trade{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Trade{}, fmt.Errorf("storage is not configured")
	}
	tradeID = strings.TrimSpace(tradeID)
	if tradeID == "" {
		return storage.Trade{}, fmt.Errorf("trade id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE id = ?`,
		tradeID,
	)
	trade, err := scanTrade(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Trade{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Trade{}, fmt.Errorf("get trade: %w", err)
	}
	trade.Offers, err = listTradeOffers(ctx, s.sqlDB, tradeID)
	if err != nil {
		return storage.Trade{}, err
	}
	return trade, nil
}

// ActiveTradeForActor returns the actor's live session, if any.
func (s *Store) ActiveTradeForActor(ctx context.Context, actorID string, idleCutoff time.Time) (storage.Trade, error) {
	if err := ctx.Err(); err != nil {
		return storage.Trade{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Trade{}, fmt.Errorf("storage is not configured")
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return storage.Trade{}, fmt.Errorf("actor id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+tradeColumns+` FROM trades
		  WHERE (actor_a = ? OR actor_b = ?) AND state IN (?, ?) AND last_activity_at > ?
		  ORDER BY last_activity_at DESC
		  LIMIT 1`,
		actorID,
		actorID,
		string(storage.TradeNegotiating),
		string(storage.TradeAwaiting),
		toMillis(idleCutoff),
	)
	trade, err := scanTrade(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Trade{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Trade{}, fmt.Errorf("get active trade: %w", err)
	}
	trade.Offers, err = listTradeOffers(ctx, s.sqlDB, trade.ID)
	if err != nil {
		return storage.Trade{}, err
	}
	return trade, nil
}

// PutTradeOffer sets or clears one offered stack. Any offer change
// clears both confirmations and rewinds an awaiting session to
// negotiating.
func (s *Store) PutTradeOffer(ctx context.Context, p storage.TradeOfferParams) (storage.Trade, error) {
	if err := ctx.Err(); err != nil {
		return storage.Trade{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Trade{}, fmt.Errorf("storage is not configured")
	}
	tradeID := strings.TrimSpace(p.TradeID)
	if tradeID == "" {
		return storage.Trade{}, fmt.Errorf("trade id is required")
	}
	actorID := strings.TrimSpace(p.ActorID)
	if actorID == "" {
		return storage.Trade{}, fmt.Errorf("actor id is required")
	}
	if !p.Item.Kind.Valid() || p.Item.ID == "" {
		return storage.Trade{}, fmt.Errorf("item reference is required")
	}
	if p.Quantity < 0 {
		return storage.Trade{}, fmt.Errorf("offer quantity must be non-negative")
	}
	if p.Now.IsZero() {
		return storage.Trade{}, fmt.Errorf("now is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Trade{}, fmt.Errorf("begin offer: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	trade, err := loadTradeTx(ctx, tx, tradeID)
	if err != nil {
		return storage.Trade{}, err
	}
	if !trade.Party(actorID) {
		return storage.Trade{}, fmt.Errorf("actor is not a trade participant")
	}
	if trade.State.Terminal() {
		return storage.Trade{}, errTradeState(trade.State, "offer")
	}

	if p.Quantity == 0 {
		if _, err := tx.ExecContext(
			ctx,
			`DELETE FROM trade_offers WHERE trade_id = ? AND actor_id = ? AND item_kind = ? AND item_id = ?`,
			tradeID,
			actorID,
			string(p.Item.Kind),
			p.Item.ID,
		); err != nil {
			return storage.Trade{}, fmt.Errorf("clear offer: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO trade_offers (trade_id, actor_id, item_kind, item_id, quantity, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(trade_id, actor_id, item_kind, item_id) DO UPDATE SET
			   quantity = excluded.quantity,
			   updated_at = excluded.updated_at`,
			tradeID,
			actorID,
			string(p.Item.Kind),
			p.Item.ID,
			p.Quantity,
			toMillis(p.Now),
		); err != nil {
			return storage.Trade{}, fmt.Errorf("put offer: %w", err)
		}
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE trades SET state = ?, confirmed_a = 0, confirmed_b = 0, last_activity_at = ? WHERE id = ?`,
		string(storage.TradeNegotiating),
		toMillis(p.Now),
		tradeID,
	); err != nil {
		return storage.Trade{}, fmt.Errorf("reset confirmations: %w", err)
	}

	trade, err = loadTradeTx(ctx, tx, tradeID)
	if err != nil {
		return storage.Trade{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.Trade{}, fmt.Errorf("commit offer: %w", err)
	}
	return trade, nil
}

// ConfirmTrade records one party's confirmation. When both parties have
// confirmed, the session moves to awaiting confirmation. Confirming an
// awaiting session is a no-op.
func (s *Store) ConfirmTrade(ctx context.Context, p storage.ConfirmTradeParams) (storage.Trade, error) {
	if err := ctx.Err(); err != nil {
		return storage.Trade{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Trade{}, fmt.Errorf("storage is not configured")
	}
	tradeID := strings.TrimSpace(p.TradeID)
	if tradeID == "" {
		return storage.Trade{}, fmt.Errorf("trade id is required")
	}
	actorID := strings.TrimSpace(p.ActorID)
	if actorID == "" {
		return storage.Trade{}, fmt.Errorf("actor id is required")
	}
	if p.Now.IsZero() {
		return storage.Trade{}, fmt.Errorf("now is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Trade{}, fmt.Errorf("begin confirm: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	trade, err := loadTradeTx(ctx, tx, tradeID)
	if err != nil {
		return storage.Trade{}, err
	}
	if !trade.Party(actorID) {
		return storage.Trade{}, fmt.Errorf("actor is not a trade participant")
	}
	if trade.State.Terminal() {
		return storage.Trade{}, errTradeState(trade.State, "confirm")
	}
	if trade.State == storage.TradeAwaiting {
		return trade, nil
	}

	column := "confirmed_a"
	if actorID == trade.ActorB {
		column = "confirmed_b"
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE trades SET `+column+` = 1, last_activity_at = ? WHERE id = ?`,
		toMillis(p.Now),
		tradeID,
	); err != nil {
		return storage.Trade{}, fmt.Errorf("confirm trade: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE trades SET state = ? WHERE id = ? AND confirmed_a = 1 AND confirmed_b = 1`,
		string(storage.TradeAwaiting),
		tradeID,
	); err != nil {
		return storage.Trade{}, fmt.Errorf("advance trade: %w", err)
	}

	trade, err = loadTradeTx(ctx, tx, tradeID)
	if err != nil {
		return storage.Trade{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.Trade{}, fmt.Errorf("commit confirm: %w", err)
	}
	return trade, nil
}

// SettleTrade re-validates every offer against current stacks and moves
// the items both directions in a single transaction. A shortfall
// commits a rewind to negotiating with cleared confirmations and
// reports the short items.
func (s *Store) SettleTrade(ctx context.Context, p storage.SettleTradeParams) (storage.Trade, error) {
	if err := ctx.Err(); err != nil {
		return storage.Trade{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Trade{}, fmt.Errorf("storage is not configured")
	}
	tradeID := strings.TrimSpace(p.TradeID)
	if tradeID == "" {
		return storage.Trade{}, fmt.Errorf("trade id is required")
	}
	if p.Now.IsZero() {
		return storage.Trade{}, fmt.Errorf("now is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Trade{}, fmt.Errorf("begin settle: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	trade, err := loadTradeTx(ctx, tx, tradeID)
	if err != nil {
		return storage.Trade{}, err
	}
	if trade.State != storage.TradeAwaiting {
		return storage.Trade{}, errTradeState(trade.State, "settle")
	}

	var shortItems []string
	for _, offer := range trade.Offers {
		have, err := stackQuantityTx(ctx, tx, offer.ActorID, offer.Item)
		if err != nil {
			return storage.Trade{}, err
		}
		if have < offer.Quantity {
			shortItems = append(shortItems, offer.Item.ID)
		}
	}
	if len(shortItems) > 0 {
		// The rewind commits even though settlement failed, so the
		// parties see cleared confirmations and can adjust offers.
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE trades SET state = ?, confirmed_a = 0, confirmed_b = 0, last_activity_at = ? WHERE id = ?`,
			string(storage.TradeNegotiating),
			toMillis(p.Now),
			tradeID,
		); err != nil {
			return storage.Trade{}, fmt.Errorf("rewind trade: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return storage.Trade{}, fmt.Errorf("commit rewind: %w", err)
		}
		return storage.Trade{}, apperrors.WithMetadata(apperrors.CodeStaleOffer, "offered items are no longer available", map[string]string{
			"Items": strings.Join(shortItems, ", "),
		})
	}

	for _, offer := range trade.Offers {
		recipient := trade.Counterparty(offer.ActorID)
		if err := decrementStackTx(ctx, tx, offer.ActorID, offer.Item, offer.Quantity, p.Now); err != nil {
			return storage.Trade{}, err
		}
		if err := upsertStackTx(ctx, tx, recipient, offer.Item, offer.Quantity, p.Now); err != nil {
			return storage.Trade{}, err
		}
		if err := appendLedgerTx(ctx, tx, storage.LedgerEntry{
			Timestamp:     p.Now,
			ActorID:       offer.ActorID,
			Kind:          storage.LedgerTrade,
			Item:          offer.Item,
			QuantityDelta: -offer.Quantity,
			Ref:           tradeID,
		}); err != nil {
			return storage.Trade{}, err
		}
		if err := appendLedgerTx(ctx, tx, storage.LedgerEntry{
			Timestamp:     p.Now,
			ActorID:       recipient,
			Kind:          storage.LedgerTrade,
			Item:          offer.Item,
			QuantityDelta: offer.Quantity,
			Ref:           tradeID,
		}); err != nil {
			return storage.Trade{}, err
		}
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE trades SET state = ?, last_activity_at = ? WHERE id = ?`,
		string(storage.TradeSettled),
		toMillis(p.Now),
		tradeID,
	); err != nil {
		return storage.Trade{}, fmt.Errorf("settle trade: %w", err)
	}

	trade, err = loadTradeTx(ctx, tx, tradeID)
	if err != nil {
		return storage.Trade{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.Trade{}, fmt.Errorf("commit settle: %w", err)
	}
	return trade, nil
}

// CancelTrade cancels a session from any non-terminal state.
func (s *Store) CancelTrade(ctx context.Context, p storage.CancelTradeParams) (storage.Trade, error) {
	if err := ctx.Err(); err != nil {
		return storage.Trade{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Trade{}, fmt.Errorf("storage is not configured")
	}
	tradeID := strings.TrimSpace(p.TradeID)
	if tradeID == "" {
		return storage.Trade{}, fmt.Errorf("trade id is required")
	}
	actorID := strings.TrimSpace(p.ActorID)
	if actorID == "" {
		return storage.Trade{}, fmt.Errorf("actor id is required")
	}
	if p.Now.IsZero() {
		return storage.Trade{}, fmt.Errorf("now is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Trade{}, fmt.Errorf("begin cancel: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	trade, err := loadTradeTx(ctx, tx, tradeID)
	if err != nil {
		return storage.Trade{}, err
	}
	if !trade.Party(actorID) {
		return storage.Trade{}, fmt.Errorf("actor is not a trade participant")
	}
	if trade.State.Terminal() {
		return storage.Trade{}, errTradeState(trade.State, "cancel")
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE trades SET state = ?, last_activity_at = ? WHERE id = ?`,
		string(storage.TradeCancelled),
		toMillis(p.Now),
		tradeID,
	); err != nil {
		return storage.Trade{}, fmt.Errorf("cancel trade: %w", err)
	}

	trade, err = loadTradeTx(ctx, tx, tradeID)
	if err != nil {
		return storage.Trade{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.Trade{}, fmt.Errorf("commit cancel: %w", err)
	}
	return trade, nil
}

// ExpireTrades marks sessions idle since before the cutoff expired and
// reports how many changed.
func (s *Store) ExpireTrades(ctx context.Context, idleCutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if idleCutoff.IsZero() {
		return 0, fmt.Errorf("idle cutoff is required")
	}

	res, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE trades SET state = ? WHERE state IN (?, ?) AND last_activity_at <= ?`,
		string(storage.TradeExpired),
		string(storage.TradeNegotiating),
		string(storage.TradeAwaiting),
		toMillis(idleCutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("expire trades: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire trades rows: %w", err)
	}
	return affected, nil
}

// querier covers *sql.DB and *sql.Tx for read helpers shared between
// transactional and plain paths.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadTradeTx(ctx context.Context, tx *sql.Tx, tradeID string) (storage.Trade, error) {
	row := tx.QueryRowContext(
		ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE id = ?`,
		tradeID,
	)
	trade, err := scanTrade(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Trade{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Trade{}, fmt.Errorf("get trade: %w", err)
	}
	trade.Offers, err = listTradeOffers(ctx, tx, tradeID)
	if err != nil {
		return storage.Trade{}, err
	}
	return trade, nil
}

func listTradeOffers(ctx context.Context, q querier, tradeID string) ([]storage.TradeOffer, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT actor_id, item_kind, item_id, quantity, updated_at
		   FROM trade_offers
		  WHERE trade_id = ?
		  ORDER BY actor_id ASC, item_kind ASC, item_id ASC`,
		tradeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	var offers []storage.TradeOffer
	for rows.Next() {
		offer := storage.TradeOffer{TradeID: tradeID}
		var kind string
		var updatedAt int64
		if err := rows.Scan(&offer.ActorID, &kind, &offer.Item.ID, &offer.Quantity, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		offer.Item.Kind = catalog.ItemKind(kind)
		offer.UpdatedAt = fromMillis(updatedAt)
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offers: %w", err)
	}
	return offers, nil
}
