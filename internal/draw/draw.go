// Package draw implements the probabilistic reward draws: weighted
// card selection, B-variant and puzzle-piece trials, and pack
// generation. Draws mutate no game state; an Engine only consumes
// randomness.
package draw

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"

	"github.com/louisbranch/carddex/internal/catalog"
)

// PackSize is the number of cards in every pack.
const PackSize = 4

// Engine draws cards and pieces from a catalog. Safe for concurrent use.
//
// Determinism: an Engine built with New and a fixed seed produces the
// same sequence of draws for the same sequence of calls.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
	cat *catalog.Catalog

	series      []catalog.Series
	seriesTotal float64
	puzzles     []catalog.Puzzle
	puzzleTotal float64
}

// New builds an engine over cat seeded with seed.
func New(cat *catalog.Catalog, seed int64) *Engine {
	e := &Engine{
		rng:     rand.New(rand.NewSource(seed)),
		cat:     cat,
		series:  cat.SeriesList(),
		puzzles: cat.Puzzles(),
	}
	for _, s := range e.series {
		// Each card in a series carries the series weight, so a series'
		// share of the pool scales with its size.
		e.seriesTotal += s.Weight * float64(s.Size())
	}
	for _, p := range e.puzzles {
		e.puzzleTotal += p.Weight
	}
	return e
}

// NewFromEntropy builds an engine seeded from crypto/rand.
func NewFromEntropy(cat *catalog.Catalog) (*Engine, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("read draw seed: %w", err)
	}
	return New(cat, int64(binary.LittleEndian.Uint64(b[:]))), nil
}

// Bool performs one Bernoulli trial with probability p.
func (e *Engine) Bool(p float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trial(p)
}

func (e *Engine) trial(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return e.rng.Float64() < p
}

// Card draws one card: a weighted series pick, a uniform ordinal, and
// a B-variant trial at the card's tier chance.
func (e *Engine) Card() catalog.CardID {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, _ := e.card()
	return id
}

// CardWithBChance draws one card with the B-variant trial run at the
// given probability instead of the tier chance. Series without B
// printings always come up A.
func (e *Engine) CardWithBChance(p float64) catalog.CardID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finishCard(e.pickSeries(), p)
}

func (e *Engine) card() (catalog.CardID, catalog.Series) {
	s := e.pickSeries()
	chance := 0.0
	if traits, ok := e.cat.Tier(s.Tier); ok {
		chance = traits.BChance
	}
	return e.finishCard(s, chance), s
}

func (e *Engine) pickSeries() catalog.Series {
	r := e.rng.Float64() * e.seriesTotal
	acc := 0.0
	for _, s := range e.series {
		acc += s.Weight * float64(s.Size())
		if r <= acc {
			return s
		}
	}
	return e.series[len(e.series)-1]
}

func (e *Engine) finishCard(s catalog.Series, bChance float64) catalog.CardID {
	id := catalog.CardID{
		Series:  s.ID,
		Number:  s.Start + e.rng.Intn(s.Size()),
		Variant: catalog.VariantA,
	}
	if !s.NoBVariants && e.trial(bChance) {
		id.Variant = catalog.VariantB
	}
	return id
}

// Piece draws one puzzle piece: a weighted puzzle pick and a uniform
// slot. Reports false when the catalog defines no puzzles.
func (e *Engine) Piece() (catalog.PieceRef, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.piece()
}

func (e *Engine) piece() (catalog.PieceRef, bool) {
	if len(e.puzzles) == 0 {
		return catalog.PieceRef{}, false
	}
	r := e.rng.Float64() * e.puzzleTotal
	acc := 0.0
	p := e.puzzles[len(e.puzzles)-1]
	for _, cand := range e.puzzles {
		acc += cand.Weight
		if r <= acc {
			p = cand
			break
		}
	}
	return catalog.PieceRef{Puzzle: p.ID, Slot: 1 + e.rng.Intn(catalog.PieceSlots)}, true
}

// Pack is the outcome of one pack draw.
type Pack struct {
	Cards    []catalog.CardID
	Piece    catalog.PieceRef
	HasPiece bool
}

// OpenPack draws PackSize cards. Each card additionally runs a piece
// trial at its tier piece chance; the first success grants the pack's
// single piece.
func (e *Engine) OpenPack() Pack {
	e.mu.Lock()
	defer e.mu.Unlock()
	pack := Pack{Cards: make([]catalog.CardID, 0, PackSize)}
	for i := 0; i < PackSize; i++ {
		id, series := e.card()
		pack.Cards = append(pack.Cards, id)
		if pack.HasPiece {
			continue
		}
		traits, ok := e.cat.Tier(series.Tier)
		if !ok || !e.trial(traits.PieceChance) {
			continue
		}
		if ref, ok := e.piece(); ok {
			pack.Piece = ref
			pack.HasPiece = true
		}
	}
	return pack
}

// LeveledChance is the claim bonus probability for an actor level:
// 5% plus 2% per level, capped at 50%.
func LeveledChance(level int64) float64 {
	p := 0.05 + 0.02*float64(level)
	if p > 0.50 {
		p = 0.50
	}
	return p
}
