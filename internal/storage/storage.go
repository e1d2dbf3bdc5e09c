// Package storage defines the persistence contracts of the engine.
//
// Implementations guarantee that every method is atomic: composite
// operations (claims, settlements, pack openings) either apply all of
// their effects or none. Conditional mutations (debits, stack
// decrements, the pending-to-claimed spawn transition) never lose
// updates under concurrent callers.
package storage

import (
	"context"
	"time"

	"github.com/louisbranch/carddex/internal/catalog"
	"github.com/louisbranch/carddex/internal/platform/errors"
)

// Sentinel errors. Implementations may return richer instances that
// carry metadata; callers match with errors.Is, which compares by code.
var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New(errors.CodeNotFound, "record not found")
	// ErrAlreadyExists indicates a unique record already exists.
	ErrAlreadyExists = errors.New(errors.CodeAlreadyExists, "record already exists")
	// ErrSpawnPending indicates the channel already has an open claim window.
	ErrSpawnPending = errors.New(errors.CodeSpawnAlreadyPending, "a spawn is already pending in this channel")
	// ErrSpawnClaimed indicates another actor won the pending spawn.
	ErrSpawnClaimed = errors.New(errors.CodeAlreadyClaimed, "spawn already claimed")
	// ErrSpawnExpired indicates the claim window has closed.
	ErrSpawnExpired = errors.New(errors.CodeSpawnExpired, "spawn expired")
	// ErrInsufficientFunds indicates a debit would overdraw the balance.
	ErrInsufficientFunds = errors.New(errors.CodeInsufficientFunds, "balance too low")
	// ErrInsufficientInventory indicates a decrement would overdraw a stack.
	ErrInsufficientInventory = errors.New(errors.CodeInsufficientInventory, "stack too small")
	// ErrCooldownActive indicates the rate-limit window has not elapsed.
	ErrCooldownActive = errors.New(errors.CodeCooldownActive, "cooldown active")
	// ErrTradeActive indicates a party already has a live trade session.
	ErrTradeActive = errors.New(errors.CodeTradeAlreadyActive, "actor already has an active trade")
	// ErrTradeState indicates the session state disallows the operation.
	ErrTradeState = errors.New(errors.CodeInvalidTradeState, "trade state does not allow this operation")
	// ErrStaleOffer indicates settlement found offers no longer covered
	// by the offeror's stacks.
	ErrStaleOffer = errors.New(errors.CodeStaleOffer, "offered items are no longer available")
)

// ActorStore persists actor economy records.
type ActorStore interface {
	// EnsureActor returns the actor, creating a zeroed record first if
	// none exists.
	EnsureActor(ctx context.Context, actorID string, now time.Time) (Actor, error)
	GetActor(ctx context.Context, actorID string) (Actor, error)
	// CreditActor adds coins and experience and journals the change.
	CreditActor(ctx context.Context, p CreditParams) (Actor, error)
	// DebitActor removes coins, failing with ErrInsufficientFunds when
	// the balance cannot cover the amount. The check and the write are
	// one atomic step.
	DebitActor(ctx context.Context, p DebitParams) (Actor, error)
	Leaderboard(ctx context.Context, order LeaderboardOrder, limit int) ([]Actor, error)
}

// StackStore persists item ownership stacks.
type StackStore interface {
	// GetStack reads one stack. A missing row reads as quantity zero
	// rather than ErrNotFound.
	GetStack(ctx context.Context, actorID string, item catalog.ItemRef) (Stack, error)
	ListStacks(ctx context.Context, actorID string) ([]Stack, error)
	// AdjustStack applies a quantity delta, failing with
	// ErrInsufficientInventory when the stack cannot cover a negative
	// delta. The check and the write are one atomic step.
	AdjustStack(ctx context.Context, p AdjustStackParams) (Stack, error)
}

// GrantStore applies composite reward operations.
type GrantStore interface {
	// GrantDraw credits one drawn item, its coins, and its experience
	// in a single transaction, applying new-item bonuses when the actor
	// holds no copies at grant time.
	GrantDraw(ctx context.Context, p GrantDrawParams) (Grant, error)
	// OpenPack debits the pack cost and credits all pack contents in a
	// single transaction.
	OpenPack(ctx context.Context, p OpenPackParams) (PackGrant, error)
}

// TransferStore moves value between actors.
type TransferStore interface {
	// TransferCoins moves coins between two actors, re-validating the
	// payer balance inside the transaction.
	TransferCoins(ctx context.Context, p TransferCoinsParams) error
	// TransferItems moves stacks between two actors all-or-nothing.
	TransferItems(ctx context.Context, p TransferItemsParams) error
}

// PuzzleStore persists puzzle completion records.
type PuzzleStore interface {
	// CompletePuzzle consumes one piece of every slot and increments
	// the completion counter in a single transaction.
	CompletePuzzle(ctx context.Context, p CompletePuzzleParams) (PuzzleCompletion, error)
	// GetPuzzleCompletion reads one completion counter. A missing row
	// reads as zero completions rather than ErrNotFound.
	GetPuzzleCompletion(ctx context.Context, actorID, puzzleID string) (PuzzleCompletion, error)
	ListPuzzleCompletions(ctx context.Context, actorID string) ([]PuzzleCompletion, error)
}

// CraftStore applies variant conversions.
type CraftStore interface {
	// CraftCard consumes p.Cost copies of p.From and produces one
	// p.To in a single transaction. Concurrent crafts cannot spend the
	// same copies twice.
	CraftCard(ctx context.Context, p CraftParams) (Craft, error)
}

// SpawnStore persists spawn channels and events.
type SpawnStore interface {
	PutSpawnChannel(ctx context.Context, ch SpawnChannel) error
	GetSpawnChannel(ctx context.Context, channelID string) (SpawnChannel, error)
	ListSpawnChannels(ctx context.Context) ([]SpawnChannel, error)
	GetSpawn(ctx context.Context, channelID string) (Spawn, error)
	// OpenSpawn opens a pending window, failing with ErrSpawnPending
	// while an unexpired pending event exists for the channel.
	OpenSpawn(ctx context.Context, p OpenSpawnParams) (Spawn, error)
	// ClaimSpawn performs the conditional pending-to-claimed transition
	// and credits the full reward in the same transaction. Exactly one
	// concurrent caller succeeds; losers get ErrSpawnClaimed and
	// late callers get ErrSpawnExpired.
	ClaimSpawn(ctx context.Context, p ClaimSpawnParams) (SpawnClaim, error)
	// ExpireSpawns marks overdue pending events expired and reports
	// how many changed.
	ExpireSpawns(ctx context.Context, now time.Time) (int64, error)
}

// TradeStore persists trade sessions and offers.
type TradeStore interface {
	// CreateTrade opens a session in the negotiating state, failing
	// with ErrTradeActive when either party already has a live session.
	CreateTrade(ctx context.Context, p CreateTradeParams) (Trade, error)
	GetTrade(ctx context.Context, tradeID string) (Trade, error)
	// ActiveTradeForActor returns the actor's live session, if any.
	ActiveTradeForActor(ctx context.Context, actorID string, idleCutoff time.Time) (Trade, error)
	// PutTradeOffer sets or clears one offered stack, resets both
	// confirmations, and rewinds awaiting sessions to negotiating.
	PutTradeOffer(ctx context.Context, p TradeOfferParams) (Trade, error)
	// ConfirmTrade records one party's confirmation; when both are set
	// the session moves to awaiting confirmation.
	ConfirmTrade(ctx context.Context, p ConfirmTradeParams) (Trade, error)
	// SettleTrade re-validates every offer against current stacks and
	// moves all items both directions in a single transaction. A
	// shortfall commits a rewind to negotiating with cleared
	// confirmations and returns ErrStaleOffer naming the short items.
	SettleTrade(ctx context.Context, p SettleTradeParams) (Trade, error)
	CancelTrade(ctx context.Context, p CancelTradeParams) (Trade, error)
	// ExpireTrades marks sessions idle since before cutoff expired.
	ExpireTrades(ctx context.Context, idleCutoff time.Time) (int64, error)
}

// CooldownStore persists per-actor rate limits.
type CooldownStore interface {
	// CheckAndSetCooldown advances the (actor, action) timestamp, or
	// fails with ErrCooldownActive carrying the remaining wait. The
	// check and the write are one atomic step.
	CheckAndSetCooldown(ctx context.Context, p CooldownParams) (Cooldown, error)
	// GetCooldown reads the timestamp without stamping it. A missing
	// row reads as never used rather than ErrNotFound.
	GetCooldown(ctx context.Context, actorID, action string) (Cooldown, error)
}

// LedgerStore reads the append-only economy journal.
type LedgerStore interface {
	ListLedger(ctx context.Context, q LedgerQuery) (LedgerPage, error)
	// StreamLedger walks entries with sequence greater than sinceSeq in
	// ascending order, stopping at the first callback error.
	StreamLedger(ctx context.Context, sinceSeq int64, fn func(LedgerEntry) error) error
}

// DefinitionStore persists seeded catalog reference rows.
type DefinitionStore interface {
	PutCardDefinitions(ctx context.Context, defs []CardDefinition) error
	PutPuzzleDefinitions(ctx context.Context, defs []PuzzleDefinition) error
	CountCardDefinitions(ctx context.Context) (int64, error)
}

// Store is the full persistence surface used by daemon wiring.
type Store interface {
	ActorStore
	StackStore
	GrantStore
	TransferStore
	PuzzleStore
	CraftStore
	SpawnStore
	TradeStore
	CooldownStore
	LedgerStore
	DefinitionStore
	Close() error
}
