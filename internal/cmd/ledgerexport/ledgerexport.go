// Package ledgerexport parses export command flags and writes ledger
// archives for offline analysis.
package ledgerexport

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/louisbranch/carddex/internal/archive"
	entrypoint "github.com/louisbranch/carddex/internal/platform/cmd"
	"github.com/louisbranch/carddex/internal/storage/sqlite"
)

// Config holds ledger-export command configuration.
type Config struct {
	DBPath   string `env:"CARDDEX_DB_PATH" envDefault:"data/dex.sqlite"`
	Output   string
	SinceSeq int64
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	fs.StringVar(&cfg.Output, "o", "ledger.jsonl.zst", "Archive output path")
	fs.Int64Var(&cfg.SinceSeq, "since-seq", 0, "Export only entries with sequence above this value")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run exports the ledger to a zstd-compressed JSONL file.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
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

	f, err := os.Create(cfg.Output)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	written, err := archive.Export(ctx, store, f, cfg.SinceSeq)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(cfg.Output)
		return fmt.Errorf("export ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close archive file: %w", err)
	}

	fmt.Fprintf(out, "exported %d entries to %s\n", written, cfg.Output)
	return nil
}
