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
	pflag.Parse()
	cli.SetupLogging(opts.Verbose)

	cfg, err := opts.Load()
	if err != nil {
		cli.Exit(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := builder.NewBuilder(cfg).Build(ctx, builder.TargetIcons)
	if err != nil {
		cli.Exit(err)
	}

	for _, f := range report.Files {
		fmt.Println("✓", filepath.Base(f))
	}
}
