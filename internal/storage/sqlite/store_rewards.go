package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/carddex/internal/catalog"
	apperrors "github.com/louisbranch/carddex/internal/platform/errors"
	"github.com/louisbranch/carddex/internal/storage"
)

// GrantDraw credits one drawn item together with its coin and
// experience reward. The whole grant is a single transaction, and the
// new-item bonus is decided by the stack quantity inside it.
func (s *Store) GrantDraw(ctx context.Context, p storage.GrantDrawParams) (storage.Grant, error) {
	if err := ctx.Err(); err != nil {
		return storage.Grant{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Grant{}, fmt.Errorf("storage is not configured")
	}
	actorID := strings.TrimSpace(p.ActorID)
	if actorID == "" {
		return storage.Grant{}, fmt.Errorf("actor id is required")
	}
	if !p.Item.Kind.Valid() || p.Item.ID == "" {
		return storage.Grant{}, fmt.Errorf("item reference is required")
	}
	if p.Coins < 0 || p.XP < 0 || p.NewItemCoins < 0 || p.NewItemXP < 0 {
		return storage.Grant{}, fmt.Errorf("grant amounts must be non-negative")
	}
	if p.Kind == "" {
		return storage.Grant{}, fmt.Errorf("ledger kind is required")
	}
	if p.Now.IsZero() {
		return storage.Grant{}, fmt.Errorf("now is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Grant{}, fmt.Errorf("begin grant: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	grant, err := grantDrawTx(ctx, tx, p)
	if err != nil {
		return storage.Grant{}, err
	}

	if err := tx.Commit(); err != nil {
		return storage.Grant{}, fmt.Errorf("commit grant: %w", err)
	}
	return grant, nil
}

// grantDrawTx applies one draw grant inside tx. ClaimSpawn reuses it so
// the claim transition and the reward share a transaction.
func grantDrawTx(ctx context.Context, tx *sql.Tx, p storage.GrantDrawParams) (storage.Grant, error) {
	quantity, err := stackQuantityTx(ctx, tx, p.ActorID, p.Item)
	if err != nil {
		return storage.Grant{}, err
	}
	wasNew := quantity == 0

	coins := p.Coins
	xp := p.XP
	if wasNew {
		coins += p.NewItemCoins
		xp += p.NewItemXP
	}

	if err := upsertStackTx(ctx, tx, p.ActorID, p.Item, 1, p.Now); err != nil {
		return storage.Grant{}, err
	}
	actor, err := creditActorTx(ctx, tx, p.ActorID, coins, xp, p.Now)
	if err != nil {
		return storage.Grant{}, err
	}
	if err := appendLedgerTx(ctx, tx, storage.LedgerEntry{
		Timestamp:     p.Now,
		ActorID:       p.ActorID,
		Kind:          p.Kind,
		Item:          p.Item,
		CoinDelta:     coins,
		XPDelta:       xp,
		QuantityDelta: 1,
		Ref:           p.Ref,
	}); err != nil {
		return storage.Grant{}, err
	}
	stack, err := getStackTx(ctx, tx, p.ActorID, p.Item)
	if err != nil {
		return storage.Grant{}, err
	}

	return storage.Grant{
		Actor:        actor,
		Stack:        stack,
		WasNew:       wasNew,
		CoinsAwarded: coins,
		XPAwarded:    xp,
	}, nil
}

// OpenPack debits the pack cost and credits every drawn card, the
// optional piece, and the experience reward in a single transaction.
func (s *Store) OpenPack(ctx context.Context, p storage.OpenPackParams) (storage.PackGrant, error) {
	if err := ctx.Err(); err != nil {
		return storage.PackGrant{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PackGrant{}, fmt.Errorf("storage is not configured")
	}
	actorID := strings.TrimSpace(p.ActorID)
	if actorID == "" {
		return storage.PackGrant{}, fmt.Errorf("actor id is required")
	}
	if p.Cost < 0 {
		return storage.PackGrant{}, fmt.Errorf("pack cost must be non-negative")
	}
	if len(p.Cards) == 0 {
		return storage.PackGrant{}, fmt.Errorf("pack cards are required")
	}
	if p.HasPiece && p.Piece.Puzzle == "" {
		return storage.PackGrant{}, fmt.Errorf("piece reference is required")
	}
	if p.PackXP < 0 || p.NewCardXP < 0 || p.PieceXP < 0 {
		return storage.PackGrant{}, fmt.Errorf("pack experience must be non-negative")
	}
	if p.Now.IsZero() {
		return storage.PackGrant{}, fmt.Errorf("now is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.PackGrant{}, fmt.Errorf("begin pack: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Charge the cost and count the pack before granting contents.
	res, err := tx.ExecContext(
		ctx,
		`UPDATE actors SET balance = balance - ?, packs_opened = packs_opened + 1, updated_at = ?
		  WHERE id = ? AND balance >= ?`,
		p.Cost,
		toMillis(p.Now),
		actorID,
		p.Cost,
	)
	if err != nil {
		return storage.PackGrant{}, fmt.Errorf("debit pack cost: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storage.PackGrant{}, fmt.Errorf("debit pack cost rows: %w", err)
	}
	if affected == 0 {
		var balance int64
		err := tx.QueryRowContext(ctx, `SELECT balance FROM actors WHERE id = ?`, actorID).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PackGrant{}, errActorNotFound(actorID)
		}
		if err != nil {
			return storage.PackGrant{}, fmt.Errorf("inspect balance: %w", err)
		}
		return storage.PackGrant{}, apperrors.WithMetadata(apperrors.CodeInsufficientFunds, "balance too low", map[string]string{
			"Balance":  strconv.FormatInt(balance, 10),
			"Required": strconv.FormatInt(p.Cost, 10),
		})
	}

	xpTotal := p.PackXP
	cards := make([]storage.PackCard, 0, len(p.Cards))
	for _, card := range p.Cards {
		item := catalog.CardItem(card)
		quantity, err := stackQuantityTx(ctx, tx, actorID, item)
		if err != nil {
			return storage.PackGrant{}, err
		}
		wasNew := quantity == 0
		if wasNew {
			xpTotal += p.NewCardXP
		}
		if err := upsertStackTx(ctx, tx, actorID, item, 1, p.Now); err != nil {
			return storage.PackGrant{}, err
		}
		if err := appendLedgerTx(ctx, tx, storage.LedgerEntry{
			Timestamp:     p.Now,
			ActorID:       actorID,
			Kind:          storage.LedgerPack,
			Item:          item,
			QuantityDelta: 1,
			Ref:           p.Ref,
		}); err != nil {
			return storage.PackGrant{}, err
		}
		cards = append(cards, storage.PackCard{Card: card, WasNew: wasNew})
	}

	if p.HasPiece {
		item := catalog.PieceItem(p.Piece)
		if err := upsertStackTx(ctx, tx, actorID, item, 1, p.Now); err != nil {
			return storage.PackGrant{}, err
		}
		xpTotal += p.PieceXP
		if err := appendLedgerTx(ctx, tx, storage.LedgerEntry{
			Timestamp:     p.Now,
			ActorID:       actorID,
			Kind:          storage.LedgerPack,
			Item:          item,
			QuantityDelta: 1,
			Ref:           p.Ref,
		}); err != nil {
			return storage.PackGrant{}, err
		}
	}

	if xpTotal > 0 {
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE actors SET experience = experience + ?, updated_at = ? WHERE id = ?`,
			xpTotal,
			toMillis(p.Now),
			actorID,
		); err != nil {
			return storage.PackGrant{}, fmt.Errorf("credit pack experience: %w", err)
		}
	}
	if err := appendLedgerTx(ctx, tx, storage.LedgerEntry{
		Timestamp: p.Now,
		ActorID:   actorID,
		Kind:      storage.LedgerPack,
		CoinDelta: -p.Cost,
		XPDelta:   xpTotal,
		Ref:       p.Ref,
	}); err != nil {
		return storage.PackGrant{}, err
	}
	actor, err := getActorTx(ctx, tx, actorID)
	if err != nil {
		return storage.PackGrant{}, err
	}

	if err := tx.Commit(); err != nil {
		return storage.PackGrant{}, fmt.Errorf("commit pack: %w", err)
	}
	return storage.PackGrant{
		Actor:     actor,
		Cards:     cards,
		Piece:     p.Piece,
		HasPiece:  p.HasPiece,
		XPAwarded: xpTotal,
	}, nil
}
