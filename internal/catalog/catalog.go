// Package catalog holds the immutable card, series, and puzzle
// definitions the rest of the engine draws from. A catalog is built
// once from YAML and is safe for concurrent reads.
package catalog

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Tier classifies a series by rarity.
type Tier string

const (
	TierCommon    Tier = "common"
	TierUncommon  Tier = "uncommon"
	TierRare      Tier = "rare"
	TierUltraRare Tier = "ultra_rare"
	TierLegendary Tier = "legendary"
	TierEpic      Tier = "epic"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierCommon, TierUncommon, TierRare, TierUltraRare, TierLegendary, TierEpic:
		return true
	}
	return false
}

// TierTraits are the draw and reward traits of one rarity tier.
type TierTraits struct {
	// CoinMultiplier scales catch rewards for cards of this tier.
	CoinMultiplier int64
	// BChance is the probability a drawn card comes up as its B variant.
	BChance float64
	// PieceChance is the probability a pack draw also yields a puzzle piece.
	PieceChance float64
}

// Series is one card series with its ordinal range and draw weight.
type Series struct {
	ID        string
	Name      string
	Tier      Tier
	Weight    float64
	CraftCost int64
	Start     int
	End       int
	// NoBVariants marks series printed without a B form.
	NoBVariants bool
}

// Size returns the number of ordinals in the series.
func (s Series) Size() int {
	return s.End - s.Start + 1
}

// Contains reports whether number falls in the series ordinal range.
func (s Series) Contains(number int) bool {
	return number >= s.Start && number <= s.End
}

// CardCount returns the number of distinct cards in the series,
// counting both variants where they exist.
func (s Series) CardCount() int {
	if s.NoBVariants {
		return s.Size()
	}
	return s.Size() * 2
}

// Puzzle is one puzzle definition. Every puzzle has PieceSlots slots.
type Puzzle struct {
	ID     string
	Series string
	Name   string
	Weight float64
}

// Catalog is the full set of definitions. Immutable after New.
type Catalog struct {
	tiers      map[Tier]TierTraits
	series     []Series
	seriesIdx  map[string]int
	puzzles    []Puzzle
	puzzleIdx  map[string]int
	names      []nameEntry
	totalCards int
}

type nameEntry struct {
	name string
	card CardID
}

// New validates cfg and builds a catalog from it.
func New(cfg Config) (*Catalog, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Catalog{
		tiers:     make(map[Tier]TierTraits, len(cfg.Tiers)),
		series:    make([]Series, 0, len(cfg.Series)),
		seriesIdx: make(map[string]int, len(cfg.Series)),
		puzzles:   make([]Puzzle, 0, len(cfg.Puzzles)),
		puzzleIdx: make(map[string]int, len(cfg.Puzzles)),
	}
	for tier, tc := range cfg.Tiers {
		c.tiers[tier] = TierTraits{
			CoinMultiplier: tc.CoinMultiplier,
			BChance:        tc.BChance,
			PieceChance:    tc.PieceChance,
		}
	}
	for _, sc := range cfg.Series {
		s := Series{
			ID:          sc.ID,
			Name:        sc.Name,
			Tier:        sc.Tier,
			Weight:      sc.Weight,
			CraftCost:   sc.CraftCost,
			Start:       sc.Start,
			End:         sc.End,
			NoBVariants: sc.NoBVariants,
		}
		if s.CraftCost == 0 {
			s.CraftCost = defaultCraftCost
		}
		c.seriesIdx[s.ID] = len(c.series)
		c.series = append(c.series, s)
		c.totalCards += s.CardCount()
	}
	for _, pc := range cfg.Puzzles {
		p := Puzzle{ID: pc.ID, Series: pc.Series, Name: pc.Name, Weight: pc.Weight}
		if p.Weight == 0 {
			p.Weight = 1
		}
		c.puzzleIdx[p.ID] = len(c.puzzles)
		c.puzzles = append(c.puzzles, p)
	}
	c.buildNameIndex()
	return c, nil
}

func (c *Catalog) buildNameIndex() {
	c.names = make([]nameEntry, 0, c.totalCards)
	for _, s := range c.series {
		variants := []Variant{VariantA, VariantB}
		if s.NoBVariants {
			variants = variants[:1]
		}
		for n := s.Start; n <= s.End; n++ {
			for _, v := range variants {
				id := CardID{Series: s.ID, Number: n, Variant: v}
				c.names = append(c.names, nameEntry{
					name: normalizeName(c.DisplayName(id)),
					card: id,
				})
			}
		}
	}
}

// Series returns the series with the given id.
func (c *Catalog) Series(id string) (Series, bool) {
	i, ok := c.seriesIdx[strings.ToLower(id)]
	if !ok {
		return Series{}, false
	}
	return c.series[i], true
}

// SeriesList returns every series in catalog order.
func (c *Catalog) SeriesList() []Series {
	out := make([]Series, len(c.series))
	copy(out, c.series)
	return out
}

// Tier returns the traits of a rarity tier.
func (c *Catalog) Tier(t Tier) (TierTraits, bool) {
	traits, ok := c.tiers[t]
	return traits, ok
}

// Puzzle returns the puzzle with the given id.
func (c *Catalog) Puzzle(id string) (Puzzle, bool) {
	i, ok := c.puzzleIdx[strings.ToLower(id)]
	if !ok {
		return Puzzle{}, false
	}
	return c.puzzles[i], true
}

// Puzzles returns every puzzle in catalog order.
func (c *Catalog) Puzzles() []Puzzle {
	out := make([]Puzzle, len(c.puzzles))
	copy(out, c.puzzles)
	return out
}

// CardExists reports whether id names a card defined by the catalog.
func (c *Catalog) CardExists(id CardID) bool {
	s, ok := c.Series(id.Series)
	if !ok || !s.Contains(id.Number) {
		return false
	}
	if id.Variant == VariantB && s.NoBVariants {
		return false
	}
	return id.Variant.Valid()
}

// CardSeries returns the series a card belongs to.
func (c *Catalog) CardSeries(id CardID) (Series, bool) {
	if !c.CardExists(id) {
		return Series{}, false
	}
	return c.Series(id.Series)
}

// CardTier returns the tier traits of a card.
func (c *Catalog) CardTier(id CardID) (Tier, TierTraits, bool) {
	s, ok := c.CardSeries(id)
	if !ok {
		return "", TierTraits{}, false
	}
	traits, ok := c.tiers[s.Tier]
	return s.Tier, traits, ok
}

// ItemExists reports whether ref names a card or piece the catalog defines.
func (c *Catalog) ItemExists(ref ItemRef) bool {
	switch ref.Kind {
	case ItemCard:
		id, err := ParseCardID(ref.ID)
		return err == nil && c.CardExists(id)
	case ItemPiece:
		pr, err := ParsePieceRef(ref.ID)
		if err != nil {
			return false
		}
		_, ok := c.Puzzle(pr.Puzzle)
		return ok
	}
	return false
}

// DisplayName renders a card's user-facing name, e.g. "Series 1 #12A".
func (c *Catalog) DisplayName(id CardID) string {
	s, ok := c.Series(id.Series)
	if !ok {
		return id.Label()
	}
	return fmt.Sprintf("%s #%d%s", s.Name, id.Number, strings.ToUpper(string(id.Variant)))
}

// PieceDisplayName renders a piece's user-facing name,
// e.g. "Leaky Lindsay / Messy Tessie piece 3".
func (c *Catalog) PieceDisplayName(ref PieceRef) string {
	p, ok := c.Puzzle(ref.Puzzle)
	if !ok {
		return ref.String()
	}
	return fmt.Sprintf("%s piece %d", p.Name, ref.Slot)
}

// ItemDisplayName renders the user-facing name of any item.
func (c *Catalog) ItemDisplayName(ref ItemRef) string {
	switch ref.Kind {
	case ItemCard:
		if id, err := ParseCardID(ref.ID); err == nil {
			return c.DisplayName(id)
		}
	case ItemPiece:
		if pr, err := ParsePieceRef(ref.ID); err == nil {
			return c.PieceDisplayName(pr)
		}
	}
	return ref.ID
}

// TotalCards returns the number of distinct cards across all series.
func (c *Catalog) TotalCards() int {
	return c.totalCards
}

// FindCard resolves a query to a card: an exact identity like os1-12a,
// an exact display name, or the closest display name by prefix and
// edit distance. Reports false when nothing comes close.
func (c *Catalog) FindCard(query string) (CardID, bool) {
	if id, err := ParseCardID(query); err == nil && c.CardExists(id) {
		return id, true
	}
	q := normalizeName(query)
	if q == "" {
		return CardID{}, false
	}

	type candidate struct {
		card  CardID
		score float64
	}
	var best candidate
	for _, e := range c.names {
		var score float64
		switch {
		case e.name == q:
			return e.card, true
		case strings.HasPrefix(e.name, q) && len(q) >= 3:
			score = 0.9
		case strings.Contains(e.name, q) && len(q) >= 3:
			score = 0.8
		default:
			if len(q) < 3 {
				continue
			}
			dist := levenshtein.ComputeDistance(q, e.name)
			if dist > levenshteinLimit(len(e.name)) {
				continue
			}
			score = 0.72 - 0.08*float64(dist)
		}
		if score > best.score || (score == best.score && lessCard(e.card, best.card)) {
			best = candidate{card: e.card, score: score}
		}
	}
	if best.score == 0 {
		return CardID{}, false
	}
	return best.card, true
}

// FindSeries resolves a query to a series by id or display name.
func (c *Catalog) FindSeries(query string) (Series, bool) {
	if s, ok := c.Series(query); ok {
		return s, true
	}
	q := normalizeName(query)
	if q == "" {
		return Series{}, false
	}
	bestScore := 0.0
	var best Series
	for _, s := range c.series {
		name := normalizeName(s.Name)
		var score float64
		switch {
		case name == q:
			return s, true
		case strings.HasPrefix(name, q) && len(q) >= 3:
			score = 0.9
		default:
			if len(q) < 3 {
				continue
			}
			dist := levenshtein.ComputeDistance(q, name)
			if dist > levenshteinLimit(len(name)) {
				continue
			}
			score = 0.72 - 0.08*float64(dist)
		}
		if score > bestScore {
			bestScore = score
			best = s
		}
	}
	return best, bestScore > 0
}

// FindPuzzle resolves a query to a puzzle by id or display name.
func (c *Catalog) FindPuzzle(query string) (Puzzle, bool) {
	if p, ok := c.Puzzle(query); ok {
		return p, true
	}
	if series, ok := c.Series(query); ok {
		if p, ok := c.Puzzle(PuzzleIDForSeries(series.ID)); ok {
			return p, true
		}
	}
	q := normalizeName(query)
	if q == "" {
		return Puzzle{}, false
	}
	bestScore := 0.0
	var best Puzzle
	for _, p := range c.puzzles {
		name := normalizeName(p.Name)
		var score float64
		switch {
		case name == q:
			return p, true
		case strings.HasPrefix(name, q) && len(q) >= 3:
			score = 0.9
		case strings.Contains(name, q) && len(q) >= 3:
			score = 0.8
		default:
			if len(q) < 3 {
				continue
			}
			dist := levenshtein.ComputeDistance(q, name)
			if dist > levenshteinLimit(len(name)) {
				continue
			}
			score = 0.72 - 0.08*float64(dist)
		}
		if score > bestScore {
			bestScore = score
			best = p
		}
	}
	return best, bestScore > 0
}

func levenshteinLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}

// normalizeName lowercases, strips '#', and collapses whitespace so
// queries match display names regardless of punctuation.
func normalizeName(s string) string {
	s = strings.ReplaceAll(strings.ToLower(s), "#", "")
	return strings.Join(strings.Fields(s), " ")
}

func lessCard(a, b CardID) bool {
	if a.Series != b.Series {
		return a.Series < b.Series
	}
	if a.Number != b.Number {
		return a.Number < b.Number
	}
	return a.Variant < b.Variant
}
