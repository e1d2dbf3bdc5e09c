// Package main provides a CLI for exporting the economy ledger to a
// zstd-compressed JSONL archive.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	ledgerexportcmd "github.com/louisbranch/carddex/internal/cmd/ledgerexport"
	"github.com/louisbranch/carddex/internal/platform/config"
)

func main() {
	cfg, err := ledgerexportcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ledgerexportcmd.Run(ctx, cfg, os.Stdout); err != nil {
		config.Exitf("Error: %v", err)
	}
}
