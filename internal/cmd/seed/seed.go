// Package seed parses seed command flags and loads catalog reference
// rows into the store.
package seed

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/carddex/internal/catalog"
	entrypoint "github.com/louisbranch/carddex/internal/platform/cmd"
	"github.com/louisbranch/carddex/internal/storage"
	"github.com/louisbranch/carddex/internal/storage/sqlite"
)

// Config holds seed command configuration.
type Config struct {
	DBPath      string `env:"CARDDEX_DB_PATH" envDefault:"data/dex.sqlite"`
	CatalogPath string `env:"CARDDEX_CATALOG_PATH"`
	Force       bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "Catalog YAML path (default: built-in catalog)")
	fs.BoolVar(&cfg.Force, "force", false, "Reseed even when definitions already exist")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run seeds card and puzzle definitions from the catalog.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close store: %v", closeErr)
		}
	}()

	count, err := store.CountCardDefinitions(ctx)
	if err != nil {
		return err
	}
	if count > 0 && !cfg.Force {
		fmt.Fprintf(out, "definitions already seeded (%d cards); use -force to reseed\n", count)
		return nil
	}

	cards := CardDefinitions(cat)
	puzzles := PuzzleDefinitions(cat)
	if err := store.PutCardDefinitions(ctx, cards); err != nil {
		return err
	}
	if err := store.PutPuzzleDefinitions(ctx, puzzles); err != nil {
		return err
	}
	fmt.Fprintf(out, "seeded %d cards and %d puzzles\n", len(cards), len(puzzles))
	return nil
}

// CardDefinitions enumerates every printed card the catalog defines.
func CardDefinitions(cat *catalog.Catalog) []storage.CardDefinition {
	var defs []storage.CardDefinition
	for _, s := range cat.SeriesList() {
		variants := []catalog.Variant{catalog.VariantA}
		if !s.NoBVariants {
			variants = append(variants, catalog.VariantB)
		}
		for n := s.Start; n <= s.End; n++ {
			for _, v := range variants {
				id := catalog.CardID{Series: s.ID, Number: n, Variant: v}
				defs = append(defs, storage.CardDefinition{
					ID:          id.String(),
					Series:      s.ID,
					Number:      n,
					Variant:     string(v),
					Tier:        string(s.Tier),
					DisplayName: cat.DisplayName(id),
				})
			}
		}
	}
	return defs
}

// PuzzleDefinitions enumerates every puzzle the catalog defines.
func PuzzleDefinitions(cat *catalog.Catalog) []storage.PuzzleDefinition {
	puzzles := cat.Puzzles()
	defs := make([]storage.PuzzleDefinition, 0, len(puzzles))
	for _, p := range puzzles {
		defs = append(defs, storage.PuzzleDefinition{
			ID:          p.ID,
			Series:      p.Series,
			DisplayName: p.Name,
			Slots:       catalog.PieceSlots,
		})
	}
	return defs
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}
