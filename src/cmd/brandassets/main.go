package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"brandkit/src/builder"
	"brandkit/src/cli"
)

func main() {
	opts := cli.Bind(pflag.CommandLine)
	siteBuild := pflag.Bool("site-build", false, "run site.build_command after publishing")
	pflag.Parse()
	cli.SetupLogging(opts.Verbose)

	cfg, err := opts.Load()
	if err != nil {
		cli.Exit(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := builder.NewBuilder(cfg)
	b.SiteBuild = *siteBuild
	report, err := b.Build(ctx, builder.TargetAll)
	if err != nil {
		cli.Exit(err)
	}

	for _, f := range report.Files {
		fmt.Println("✓", filepath.Base(f))
	}
	fmt.Printf("%d files for revision %s in %s\n", len(report.Files), report.Revision, report.Duration.Round(time.Millisecond))
}
