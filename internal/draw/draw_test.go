package draw

import (
	"math"
	"testing"

	"github.com/louisbranch/carddex/internal/catalog"
)

func testCatalog(t *testing.T, pieceChance float64) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(catalog.Config{
		Tiers: map[catalog.Tier]catalog.TierConfig{
			catalog.TierCommon:    {CoinMultiplier: 1, BChance: 0.05, PieceChance: pieceChance},
			catalog.TierUltraRare: {CoinMultiplier: 5, BChance: 0.02, PieceChance: pieceChance},
			catalog.TierEpic:      {CoinMultiplier: 20, BChance: 0, PieceChance: pieceChance},
		},
		Series: []catalog.SeriesConfig{
			{ID: "os1", Name: "Series 1", Tier: catalog.TierUltraRare, Weight: 1, CraftCost: 20, Start: 1, End: 41},
			{ID: "os11", Name: "Series 11", Tier: catalog.TierCommon, Weight: 10, CraftCost: 5, Start: 418, End: 459},
			{ID: "wb", Name: "White Border Error", Tier: catalog.TierEpic, Weight: 0.25, CraftCost: 30, Start: 1, End: 80, NoBVariants: true},
		},
		Puzzles: []catalog.PuzzleConfig{
			{ID: "os1_puzzle", Series: "os1", Name: "Leaky Lindsay / Messy Tessie", Weight: 1},
			{ID: "os11_puzzle", Series: "os11", Name: "Live Mike / Jolted Joel", Weight: 4},
		},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func TestCard_StaysInCatalog(t *testing.T) {
	cat := testCatalog(t, 0.5)
	e := New(cat, 1)
	for i := 0; i < 500; i++ {
		id := e.Card()
		if !cat.CardExists(id) {
			t.Fatalf("draw %d produced unknown card %s", i, id)
		}
	}
}

func TestCard_EpicNeverDrawsB(t *testing.T) {
	cat := testCatalog(t, 0.5)
	e := New(cat, 7)
	for i := 0; i < 2000; i++ {
		id := e.Card()
		if id.Series == "wb" && id.Variant == catalog.VariantB {
			t.Fatal("drew a B variant from a series without B printings")
		}
	}
}

func TestCard_SeedDeterminism(t *testing.T) {
	cat := testCatalog(t, 0.5)
	a := New(cat, 42)
	b := New(cat, 42)
	for i := 0; i < 100; i++ {
		if got, want := a.Card(), b.Card(); got != want {
			t.Fatalf("draw %d diverged: %s vs %s", i, got, want)
		}
	}
}

func TestCard_WeightSkewsSeries(t *testing.T) {
	cat := testCatalog(t, 0.5)
	e := New(cat, 3)
	counts := map[string]int{}
	for i := 0; i < 2000; i++ {
		counts[e.Card().Series]++
	}
	// os11 carries 10x the per-card weight of os1 over a similar range.
	if counts["os11"] < counts["os1"]*3 {
		t.Fatalf("weighting off: os11=%d os1=%d", counts["os11"], counts["os1"])
	}
}

func TestCardWithBChance_ForcesVariant(t *testing.T) {
	cat := testCatalog(t, 0.5)
	e := New(cat, 11)
	for i := 0; i < 200; i++ {
		id := e.CardWithBChance(1)
		if id.Series != "wb" && id.Variant != catalog.VariantB {
			t.Fatalf("expected B variant, got %s", id)
		}
	}
	for i := 0; i < 200; i++ {
		if id := e.CardWithBChance(0); id.Variant != catalog.VariantA {
			t.Fatalf("expected A variant, got %s", id)
		}
	}
}

func TestPiece_DrawsKnownSlots(t *testing.T) {
	cat := testCatalog(t, 0.5)
	e := New(cat, 5)
	for i := 0; i < 300; i++ {
		ref, ok := e.Piece()
		if !ok {
			t.Fatal("expected a piece")
		}
		if _, found := cat.Puzzle(ref.Puzzle); !found {
			t.Fatalf("unknown puzzle %s", ref.Puzzle)
		}
		if ref.Slot < 1 || ref.Slot > catalog.PieceSlots {
			t.Fatalf("slot out of range: %d", ref.Slot)
		}
	}
}

func TestPiece_NoPuzzlesDefined(t *testing.T) {
	c, err := catalog.New(catalog.Config{
		Tiers: map[catalog.Tier]catalog.TierConfig{
			catalog.TierCommon: {CoinMultiplier: 1, BChance: 0.05, PieceChance: 0.5},
		},
		Series: []catalog.SeriesConfig{
			{ID: "os11", Name: "Series 11", Tier: catalog.TierCommon, Weight: 10, Start: 418, End: 459},
		},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	e := New(c, 1)
	if _, ok := e.Piece(); ok {
		t.Fatal("expected no piece from an empty puzzle set")
	}
	pack := e.OpenPack()
	if pack.HasPiece {
		t.Fatal("pack granted a piece with no puzzles defined")
	}
}

func TestOpenPack_FourCardsAtMostOnePiece(t *testing.T) {
	cat := testCatalog(t, 1)
	e := New(cat, 9)
	pack := e.OpenPack()
	if len(pack.Cards) != PackSize {
		t.Fatalf("pack has %d cards, want %d", len(pack.Cards), PackSize)
	}
	if !pack.HasPiece {
		t.Fatal("expected a piece with certain piece chance")
	}

	none := New(testCatalog(t, 0), 9)
	if pack := none.OpenPack(); pack.HasPiece {
		t.Fatal("expected no piece with zero piece chance")
	}
}

func TestNewFromEntropy(t *testing.T) {
	e, err := NewFromEntropy(testCatalog(t, 0.5))
	if err != nil {
		t.Fatalf("entropy engine: %v", err)
	}
	if !testCatalog(t, 0.5).CardExists(e.Card()) {
		t.Fatal("entropy engine drew unknown card")
	}
}

func TestLeveledChance_CapsAtHalf(t *testing.T) {
	tests := []struct {
		level int64
		want  float64
	}{
		{0, 0.05},
		{1, 0.07},
		{10, 0.25},
		{22, 0.49},
		{23, 0.50},
		{100, 0.50},
	}
	for _, tc := range tests {
		if got := LeveledChance(tc.level); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("LeveledChance(%d) = %v, want %v", tc.level, got, tc.want)
		}
	}
}
