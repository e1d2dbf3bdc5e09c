// Package dexd parses daemon flags and runs the dex engine process.
package dexd

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/carddex/internal/catalog"
	"github.com/louisbranch/carddex/internal/draw"
	entrypoint "github.com/louisbranch/carddex/internal/platform/cmd"
	"github.com/louisbranch/carddex/internal/platform/keylock"
	"github.com/louisbranch/carddex/internal/spawn"
	"github.com/louisbranch/carddex/internal/storage/sqlite"
	"github.com/louisbranch/carddex/internal/trade"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config holds dexd command configuration.
type Config struct {
	DBPath          string        `env:"CARDDEX_DB_PATH" envDefault:"data/dex.sqlite"`
	CatalogPath     string        `env:"CARDDEX_CATALOG_PATH"`
	SweepInterval   time.Duration `env:"CARDDEX_SWEEP_INTERVAL" envDefault:"1m"`
	ClaimWindow     time.Duration `env:"CARDDEX_CLAIM_WINDOW" envDefault:"10m"`
	TradeIdleWindow time.Duration `env:"CARDDEX_TRADE_IDLE_WINDOW" envDefault:"30m"`
	DrawSeed        int64         `env:"CARDDEX_DRAW_SEED"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "Catalog YAML path (default: built-in catalog)")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Spawn and trade expiry sweep interval")
	fs.DurationVar(&cfg.ClaimWindow, "claim-window", cfg.ClaimWindow, "Window for claiming a pending spawn")
	fs.DurationVar(&cfg.TradeIdleWindow, "trade-idle-window", cfg.TradeIdleWindow, "Idle window before a trade session expires")
	fs.Int64Var(&cfg.DrawSeed, "draw-seed", cfg.DrawSeed, "Deterministic draw seed (0 = seed from entropy)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the dex daemon: it owns the store, runs the expiry
// sweepers, and blocks until the context is cancelled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceDexd, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
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

	eng, err := newEngine(cat, cfg.DrawSeed)
	if err != nil {
		return err
	}
	locks := keylock.New()

	spawns, err := spawn.NewService(store, cat, eng, locks, nil, cfg.ClaimWindow)
	if err != nil {
		return err
	}
	trades, err := trade.NewService(store, cat, locks, nil, nil, cfg.TradeIdleWindow)
	if err != nil {
		return err
	}

	log.Printf("dexd ready db=%s cards=%d puzzles=%d sweep=%s", cfg.DBPath, cat.TotalCards(), len(cat.Puzzles()), cfg.SweepInterval)

	startSweep(ctx, cfg.SweepInterval, "spawns", spawns.ExpireDue)
	startSweep(ctx, cfg.SweepInterval, "trades", trades.ExpireIdle)

	<-ctx.Done()
	log.Printf("dexd shutting down")
	return nil
}

// startSweep runs a named expiry sweep on a fixed interval until the
// context is cancelled. Each pass runs under its own trace span.
func startSweep(ctx context.Context, interval time.Duration, name string, sweep func(context.Context) (int64, error)) {
	if interval <= 0 {
		return
	}
	tracer := otel.Tracer("github.com/louisbranch/carddex/internal/cmd/dexd")
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, span := tracer.Start(ctx, "dexd.sweep",
					trace.WithAttributes(attribute.String("sweep.name", name)))
				n, err := sweep(tickCtx)
				if err != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
					span.End()
					log.Printf("sweep name=%s err=%v", name, err)
					continue
				}
				span.SetAttributes(attribute.Int64("sweep.expired", n))
				span.End()
				if n > 0 {
					log.Printf("sweep name=%s expired=%d", name, n)
				}
			}
		}
	}()
}

func newEngine(cat *catalog.Catalog, seed int64) (*draw.Engine, error) {
	if seed != 0 {
		return draw.New(cat, seed), nil
	}
	return draw.NewFromEntropy(cat)
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}
