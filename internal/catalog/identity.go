package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/carddex/internal/platform/errors"
)

// Variant distinguishes the two printings of a card.
type Variant string

const (
	VariantA Variant = "a"
	VariantB Variant = "b"
)

// Valid reports whether v is one of the two known variants.
func (v Variant) Valid() bool {
	return v == VariantA || v == VariantB
}

// puzzleSuffix terminates every puzzle identity.
const puzzleSuffix = "_puzzle"

// PieceSlots is the number of piece slots in every puzzle.
const PieceSlots = 9

// CardID identifies one printed card, e.g. os1-12a.
type CardID struct {
	Series  string
	Number  int
	Variant Variant
}

// ErrBadCardID reports a card identity that does not parse as
// {series}-{number}{variant}, like os1-12a.
var ErrBadCardID = errors.New(errors.CodeInvalidArgument, "card id must look like os1-12a")

// ErrBadPieceRef reports a piece reference that does not parse as
// {puzzle}/{slot}, like os1_puzzle/3.
var ErrBadPieceRef = errors.New(errors.CodeInvalidArgument, "piece reference must look like os1_puzzle/3")

// ErrBadItemKind reports an item kind outside card/piece.
var ErrBadItemKind = errors.New(errors.CodeInvalidArgument, "item kind must be card or piece")

// ParseCardID parses a card identity of the form {series}-{number}{variant}.
// Input is case-insensitive.
func ParseCardID(raw string) (CardID, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	sep := strings.LastIndexByte(s, '-')
	if sep <= 0 || sep == len(s)-1 {
		return CardID{}, ErrBadCardID
	}
	series, rest := s[:sep], s[sep+1:]
	if !validSeriesID(series) {
		return CardID{}, ErrBadCardID
	}
	variant := Variant(rest[len(rest)-1:])
	if !variant.Valid() {
		return CardID{}, ErrBadCardID
	}
	number, err := strconv.Atoi(rest[:len(rest)-1])
	if err != nil || number < 1 {
		return CardID{}, ErrBadCardID
	}
	return CardID{Series: series, Number: number, Variant: variant}, nil
}

// String renders the canonical lowercase identity, e.g. os1-12a.
func (id CardID) String() string {
	return fmt.Sprintf("%s-%d%s", id.Series, id.Number, id.Variant)
}

// Label renders the display identity, e.g. OS1-12A.
func (id CardID) Label() string {
	return strings.ToUpper(id.String())
}

// Base returns the identity with the variant forced to A. Crafting
// converts between the two printings of the same base.
func (id CardID) Base() CardID {
	id.Variant = VariantA
	return id
}

// WithVariant returns the identity with the given variant.
func (id CardID) WithVariant(v Variant) CardID {
	id.Variant = v
	return id
}

// PuzzleIDForSeries derives the puzzle identity of a series.
func PuzzleIDForSeries(series string) string {
	return series + puzzleSuffix
}

// SeriesOfPuzzle recovers the series a puzzle identity belongs to.
func SeriesOfPuzzle(puzzleID string) (string, bool) {
	series, ok := strings.CutSuffix(puzzleID, puzzleSuffix)
	if !ok || !validSeriesID(series) {
		return "", false
	}
	return series, true
}

// PieceRef identifies one puzzle piece slot, e.g. os1_puzzle/3.
type PieceRef struct {
	Puzzle string
	Slot   int
}

// ParsePieceRef parses a piece reference of the form {puzzle}/{slot}.
func ParsePieceRef(raw string) (PieceRef, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	puzzle, slotPart, ok := strings.Cut(s, "/")
	if !ok {
		return PieceRef{}, ErrBadPieceRef
	}
	if _, ok := SeriesOfPuzzle(puzzle); !ok {
		return PieceRef{}, ErrBadPieceRef
	}
	slot, err := strconv.Atoi(slotPart)
	if err != nil || slot < 1 || slot > PieceSlots {
		return PieceRef{}, ErrBadPieceRef
	}
	return PieceRef{Puzzle: puzzle, Slot: slot}, nil
}

// String renders the canonical reference, e.g. os1_puzzle/3.
func (r PieceRef) String() string {
	return fmt.Sprintf("%s/%d", r.Puzzle, r.Slot)
}

// ItemKind tags the two kinds of ownable items.
type ItemKind string

const (
	ItemCard  ItemKind = "card"
	ItemPiece ItemKind = "piece"
)

// Valid reports whether k is a known item kind.
func (k ItemKind) Valid() bool {
	return k == ItemCard || k == ItemPiece
}

// ItemRef identifies a card or puzzle piece wherever items are held:
// owned stacks, spawn payloads, trade offers, ledger entries.
type ItemRef struct {
	Kind ItemKind
	ID   string
}

// CardItem wraps a card identity as an item reference.
func CardItem(id CardID) ItemRef {
	return ItemRef{Kind: ItemCard, ID: id.String()}
}

// PieceItem wraps a piece reference as an item reference.
func PieceItem(ref PieceRef) ItemRef {
	return ItemRef{Kind: ItemPiece, ID: ref.String()}
}

// ParseItemRef validates a (kind, id) pair read from storage or input.
func ParseItemRef(kind ItemKind, id string) (ItemRef, error) {
	switch kind {
	case ItemCard:
		cardID, err := ParseCardID(id)
		if err != nil {
			return ItemRef{}, err
		}
		return CardItem(cardID), nil
	case ItemPiece:
		ref, err := ParsePieceRef(id)
		if err != nil {
			return ItemRef{}, err
		}
		return PieceItem(ref), nil
	default:
		return ItemRef{}, ErrBadItemKind
	}
}

// Card returns the parsed card identity of a card item.
func (r ItemRef) Card() (CardID, error) {
	if r.Kind != ItemCard {
		return CardID{}, ErrBadItemKind
	}
	return ParseCardID(r.ID)
}

// Piece returns the parsed piece reference of a piece item.
func (r ItemRef) Piece() (PieceRef, error) {
	if r.Kind != ItemPiece {
		return PieceRef{}, ErrBadItemKind
	}
	return ParsePieceRef(r.ID)
}

// String renders the item as kind:id, used in logs and ledger references.
func (r ItemRef) String() string {
	return string(r.Kind) + ":" + r.ID
}
