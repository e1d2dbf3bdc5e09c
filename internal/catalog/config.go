package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultCraftCost applies when a series omits craft_cost.
const defaultCraftCost = 3

// Config is the YAML document a catalog is built from.
type Config struct {
	Tiers   map[Tier]TierConfig `yaml:"tiers"`
	Series  []SeriesConfig      `yaml:"series"`
	Puzzles []PuzzleConfig      `yaml:"puzzles"`
}

// TierConfig declares the draw traits of one rarity tier.
type TierConfig struct {
	CoinMultiplier int64   `yaml:"coin_multiplier"`
	BChance        float64 `yaml:"b_chance"`
	PieceChance    float64 `yaml:"piece_chance"`
}

// SeriesConfig declares one card series and its ordinal range.
type SeriesConfig struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Tier        Tier    `yaml:"tier"`
	Weight      float64 `yaml:"weight"`
	CraftCost   int64   `yaml:"craft_cost"`
	Start       int     `yaml:"start"`
	End         int     `yaml:"end"`
	NoBVariants bool    `yaml:"no_b_variants"`
}

// PuzzleConfig declares one puzzle tied to a series.
type PuzzleConfig struct {
	ID     string  `yaml:"id"`
	Series string  `yaml:"series"`
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
}

// Load reads a catalog definition from a YAML file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

// Parse builds a catalog from YAML bytes.
func Parse(raw []byte) (*Catalog, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(cfg)
}

// Must panics when err is non-nil. It is intended for static catalogs
// whose validity is established at build time.
func Must(c *Catalog, err error) *Catalog {
	if err != nil {
		panic(err)
	}
	return c
}

func (cfg Config) validate() error {
	if len(cfg.Tiers) == 0 {
		return fmt.Errorf("catalog: no tiers defined")
	}
	for tier, tc := range cfg.Tiers {
		if !tier.Valid() {
			return fmt.Errorf("catalog: unknown tier %q", tier)
		}
		if tc.CoinMultiplier < 1 {
			return fmt.Errorf("catalog: tier %s: coin multiplier must be >= 1", tier)
		}
		if tc.BChance < 0 || tc.BChance > 1 {
			return fmt.Errorf("catalog: tier %s: b chance out of range", tier)
		}
		if tc.PieceChance < 0 || tc.PieceChance > 1 {
			return fmt.Errorf("catalog: tier %s: piece chance out of range", tier)
		}
	}
	if len(cfg.Series) == 0 {
		return fmt.Errorf("catalog: no series defined")
	}
	seen := make(map[string]bool, len(cfg.Series))
	for _, sc := range cfg.Series {
		if sc.ID == "" {
			return fmt.Errorf("catalog: series with empty id")
		}
		if !validSeriesID(sc.ID) {
			return fmt.Errorf("catalog: series %q: invalid id", sc.ID)
		}
		if seen[sc.ID] {
			return fmt.Errorf("catalog: duplicate series %q", sc.ID)
		}
		seen[sc.ID] = true
		if sc.Name == "" {
			return fmt.Errorf("catalog: series %s: missing name", sc.ID)
		}
		if _, ok := cfg.Tiers[sc.Tier]; !ok {
			return fmt.Errorf("catalog: series %s: undefined tier %q", sc.ID, sc.Tier)
		}
		if sc.Weight <= 0 {
			return fmt.Errorf("catalog: series %s: weight must be positive", sc.ID)
		}
		if sc.CraftCost < 0 {
			return fmt.Errorf("catalog: series %s: negative craft cost", sc.ID)
		}
		if sc.Start < 1 || sc.End < sc.Start {
			return fmt.Errorf("catalog: series %s: invalid ordinal range %d-%d", sc.ID, sc.Start, sc.End)
		}
	}
	seenPuzzles := make(map[string]bool, len(cfg.Puzzles))
	for _, pc := range cfg.Puzzles {
		if pc.Series == "" || !seen[pc.Series] {
			return fmt.Errorf("catalog: puzzle %q: undefined series %q", pc.ID, pc.Series)
		}
		if want := PuzzleIDForSeries(pc.Series); pc.ID != want {
			return fmt.Errorf("catalog: puzzle %q: id must be %q", pc.ID, want)
		}
		if seenPuzzles[pc.ID] {
			return fmt.Errorf("catalog: duplicate puzzle %q", pc.ID)
		}
		seenPuzzles[pc.ID] = true
		if pc.Name == "" {
			return fmt.Errorf("catalog: puzzle %s: missing name", pc.ID)
		}
		if pc.Weight < 0 {
			return fmt.Errorf("catalog: puzzle %s: negative weight", pc.ID)
		}
	}
	return nil
}

func validSeriesID(id string) bool {
	for i, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r == '_' && i > 0:
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return len(id) > 0
}
