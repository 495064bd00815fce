package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"brandkit/src/builder"
	"brandkit/src/cli"
)

func main() {
	opts := cli.Bind(pflag.CommandLine)
	pages := pflag.String("pages", "", "markdown pages directory, overrides pages.dir")
	pflag.Parse()
	cli.SetupLogging(opts.Verbose)

	cfg, err := opts.Load()
	if err != nil {
		cli.Exit(err)
	}
	if *pages != "" {
		cfg.Pages.Dir = *pages
	}
	// the card is the whole point of this command
	cfg.OG.Enabled = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := builder.NewBuilder(cfg).Build(ctx, builder.TargetOG|builder.TargetPages)
	if err != nil {
		cli.Exit(err)
	}

	for _, f := range report.Files {
		fmt.Println("✓", filepath.Base(f))
	}
}
