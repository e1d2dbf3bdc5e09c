package storage

import (
	"time"

	"github.com/louisbranch/carddex/internal/catalog"
	"github.com/louisbranch/carddex/internal/filter"
)

// Actor is one identity's economy record.
type Actor struct {
	ID          string
	Balance     int64
	Experience  int64
	PacksOpened int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Stack is one (actor, item) ownership row. Quantity never goes
// negative; rows are zeroed rather than deleted.
type Stack struct {
	ActorID   string
	Item      catalog.ItemRef
	Quantity  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemQuantity pairs an item with a positive quantity.
type ItemQuantity struct {
	Item     catalog.ItemRef
	Quantity int64
}

// LedgerKind labels the operation that produced a ledger entry.
type LedgerKind string

const (
	LedgerDaily        LedgerKind = "daily"
	LedgerClaim        LedgerKind = "claim"
	LedgerLeveledClaim LedgerKind = "leveled_claim"
	LedgerCatch        LedgerKind = "catch"
	LedgerPack         LedgerKind = "pack"
	LedgerCraft        LedgerKind = "craft"
	LedgerPuzzle       LedgerKind = "puzzle"
	LedgerTrade        LedgerKind = "trade"
	LedgerTransfer     LedgerKind = "transfer"
	LedgerAdjust       LedgerKind = "adjust"
)

// LedgerEntry is one appended journal row. Every economy mutation
// writes its entries in the same transaction as the mutation.
type LedgerEntry struct {
	Seq           int64
	Timestamp     time.Time
	ActorID       string
	Kind          LedgerKind
	Item          catalog.ItemRef // zero when the entry moves no item
	CoinDelta     int64
	XPDelta       int64
	QuantityDelta int64
	Ref           string // channel, trade session, or puzzle reference
}

// LedgerQuery selects a page of ledger history, newest first.
type LedgerQuery struct {
	// Condition is an optional translated filter over ledger columns.
	Condition filter.SQLCondition
	PageSize  int
	PageToken string
}

// LedgerPage is one page of ledger history.
type LedgerPage struct {
	Entries       []LedgerEntry
	NextPageToken string
}

// CreditParams adds coins and experience to an actor.
type CreditParams struct {
	ActorID string
	Coins   int64
	XP      int64
	Kind    LedgerKind
	Ref     string
	Now     time.Time
}

// DebitParams removes coins from an actor, failing on a shortfall.
type DebitParams struct {
	ActorID string
	Coins   int64
	Kind    LedgerKind
	Ref     string
	Now     time.Time
}

// AdjustStackParams changes one stack quantity, failing on a shortfall.
type AdjustStackParams struct {
	ActorID string
	Item    catalog.ItemRef
	Delta   int64
	Kind    LedgerKind
	Ref     string
	Now     time.Time
}

// TransferCoinsParams moves coins between two actors atomically.
type TransferCoinsParams struct {
	FromID string
	ToID   string
	Amount int64
	Ref    string
	Now    time.Time
}

// TransferItemsParams moves item stacks between two actors atomically.
type TransferItemsParams struct {
	FromID string
	ToID   string
	Items  []ItemQuantity
	Ref    string
	Now    time.Time
}

// GrantDrawParams credits one drawn item with its reward in a single
// transaction. The new-item bonuses apply only when the actor holds no
// copies of the item at grant time.
type GrantDrawParams struct {
	ActorID      string
	Item         catalog.ItemRef
	Coins        int64
	XP           int64
	NewItemCoins int64
	NewItemXP    int64
	Kind         LedgerKind
	Ref          string
	Now          time.Time
}

// Grant reports one applied draw grant.
type Grant struct {
	Actor        Actor
	Stack        Stack
	WasNew       bool
	CoinsAwarded int64
	XPAwarded    int64
}

// OpenPackParams debits the pack cost and credits the pack contents in
// a single transaction.
type OpenPackParams struct {
	ActorID   string
	Cost      int64
	Cards     []catalog.CardID
	Piece     catalog.PieceRef
	HasPiece  bool
	PackXP    int64
	NewCardXP int64
	PieceXP   int64
	Ref       string
	Now       time.Time
}

// PackCard reports one granted pack card.
type PackCard struct {
	Card   catalog.CardID
	WasNew bool
}

// PackGrant reports one applied pack opening.
type PackGrant struct {
	Actor     Actor
	Cards     []PackCard
	Piece     catalog.PieceRef
	HasPiece  bool
	XPAwarded int64
}

// CompletePuzzleParams consumes one piece of every slot and records
// the completion.
type CompletePuzzleParams struct {
	ActorID  string
	PuzzleID string
	Slots    int
	XP       int64
	Now      time.Time
}

// PuzzleCompletion is one (actor, puzzle) completion record.
type PuzzleCompletion struct {
	ActorID         string
	PuzzleID        string
	TimesCompleted  int64
	LastCompletedAt time.Time
}

// CraftParams converts cost copies of one card into one copy of
// another in a single transaction.
type CraftParams struct {
	ActorID string
	From    catalog.CardID
	To      catalog.CardID
	Cost    int64
	XP      int64
	Now     time.Time
}

// Craft reports one applied conversion.
type Craft struct {
	Actor     Actor
	FromStack Stack
	ToStack   Stack
}

// SpawnState is the lifecycle state of a spawn event.
type SpawnState string

const (
	SpawnPending SpawnState = "pending"
	SpawnClaimed SpawnState = "claimed"
	SpawnExpired SpawnState = "expired"
)

// Spawn is the spawn event of one channel. A channel holds at most
// one row; opening a new spawn replaces a settled one.
type Spawn struct {
	ChannelID string
	Item      catalog.ItemRef
	State     SpawnState
	SpawnedAt time.Time
	ExpiresAt time.Time
	ClaimedBy string
	ClaimedAt time.Time
}

// SpawnChannel is the spawn configuration of one channel.
type SpawnChannel struct {
	ChannelID   string
	Enabled     bool
	LastSpawnAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OpenSpawnParams opens a pending claim window on a channel.
type OpenSpawnParams struct {
	ChannelID string
	Item      catalog.ItemRef
	Now       time.Time
	ExpiresAt time.Time
}

// ClaimSpawnParams attempts the pending-to-claimed transition and, on
// success, credits the reward in the same transaction.
type ClaimSpawnParams struct {
	ChannelID    string
	ActorID      string
	Coins        int64
	XP           int64
	NewItemCoins int64
	NewItemXP    int64
	Now          time.Time
}

// SpawnClaim reports one won claim.
type SpawnClaim struct {
	Spawn Spawn
	Grant Grant
}

// TradeState is the lifecycle state of a trade session.
type TradeState string

const (
	TradeNegotiating TradeState = "negotiating"
	TradeAwaiting    TradeState = "awaiting_confirmation"
	TradeSettled     TradeState = "settled"
	TradeCancelled   TradeState = "cancelled"
	TradeExpired     TradeState = "expired"
)

// Terminal reports whether the state admits no further transitions.
func (s TradeState) Terminal() bool {
	return s == TradeSettled || s == TradeCancelled || s == TradeExpired
}

// Trade is one two-party session with its offers.
type Trade struct {
	ID             string
	ActorA         string
	ActorB         string
	State          TradeState
	ConfirmedA     bool
	ConfirmedB     bool
	Offers         []TradeOffer
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Party reports whether actorID is one of the two participants.
func (t Trade) Party(actorID string) bool {
	return actorID == t.ActorA || actorID == t.ActorB
}

// Counterparty returns the other participant.
func (t Trade) Counterparty(actorID string) string {
	if actorID == t.ActorA {
		return t.ActorB
	}
	return t.ActorA
}

// TradeOffer is one offered stack inside a session.
type TradeOffer struct {
	TradeID   string
	ActorID   string
	Item      catalog.ItemRef
	Quantity  int64
	UpdatedAt time.Time
}

// CreateTradeParams opens a session between two actors.
type CreateTradeParams struct {
	ID         string
	ActorA     string
	ActorB     string
	Now        time.Time
	IdleCutoff time.Time // sessions idle since before this are dead
}

// TradeOfferParams sets or clears one offered stack. Quantity zero
// removes the offer.
type TradeOfferParams struct {
	TradeID  string
	ActorID  string
	Item     catalog.ItemRef
	Quantity int64
	Now      time.Time
}

// ConfirmTradeParams records one party's confirmation.
type ConfirmTradeParams struct {
	TradeID string
	ActorID string
	Now     time.Time
}

// SettleTradeParams executes the exchange after both confirmations.
type SettleTradeParams struct {
	TradeID string
	Now     time.Time
}

// CancelTradeParams cancels a session from any non-terminal state.
type CancelTradeParams struct {
	TradeID string
	ActorID string
	Now     time.Time
}

// Cooldown is one (actor, action) rate-limit record.
type Cooldown struct {
	ActorID    string
	Action     string
	LastUsedAt time.Time
}

// CooldownParams atomically checks and advances a cooldown window.
type CooldownParams struct {
	ActorID string
	Action  string
	Window  time.Duration
	Now     time.Time
}

// CardDefinition is one seeded catalog card row, kept in SQLite for
// referential queries and offline analysis.
type CardDefinition struct {
	ID          string
	Series      string
	Number      int
	Variant     string
	Tier        string
	DisplayName string
}

// PuzzleDefinition is one seeded puzzle row.
type PuzzleDefinition struct {
	ID          string
	Series      string
	DisplayName string
	Slots       int
}

// LeaderboardOrder selects the leaderboard ranking column.
type LeaderboardOrder string

const (
	LeaderboardByBalance    LeaderboardOrder = "balance"
	LeaderboardByExperience LeaderboardOrder = "experience"
)
