package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"brandkit/src/builder"
	"brandkit/src/cli"
	"brandkit/src/notify"
	"brandkit/src/watcher"
)

func main() {
	opts := cli.Bind(pflag.CommandLine)
	once := pflag.Bool("once", false, "build and exit without watching")
	siteBuild := pflag.Bool("site-build", false, "run site.build_command after every build")
	pflag.Parse()
	cli.SetupLogging(opts.Verbose)

	fmt.Println("brandkit - favicon and social card builder")
	fmt.Println("==========================================")

	cfg, err := opts.Load()
	if err != nil {
		cli.Exit(err)
	}
	log.Printf("Loaded config: revision %s, output %s", cfg.Revision, cfg.PublicPath())

	b := builder.NewBuilder(cfg)
	b.SiteBuild = *siteBuild
	sender := notify.NewSender(cfg.Ntfy)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := b.Build(ctx, builder.TargetAll)
	if err != nil {
		cli.Exit(err)
	}
	log.Printf("Initial build wrote %d files", len(report.Files))
	if *once {
		return
	}

	w, err := watcher.NewWatcher(cfg, opts.ResolveConfigPath(), b)
	if err != nil {
		cli.Exit(err)
	}
	if sender.Enabled() {
		w.SetNotifier(sender)
	}
	if err := w.Start(); err != nil {
		cli.Exit(err)
	}

	log.Println("Watcher started. Press Ctrl+C to stop")

	go func() {
		for event := range w.Events() {
			log.Debugf("📄 Event: %v - %s", event.Type, event.FilePath)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down...")
	if err := w.Stop(); err != nil {
		log.Warnf("Failed to stop watcher: %v", err)
	}
}
