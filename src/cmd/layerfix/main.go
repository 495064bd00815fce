package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"brandkit/src/cli"
	"brandkit/src/layering"
)

func main() {
	opts := cli.Bind(pflag.CommandLine)
	out := pflag.StringP("out", "o", "", "write the patched page here (default stdout)")
	inPlace := pflag.BoolP("in-place", "i", false, "overwrite the input file")
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: layerfix [flags] <page.html>")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	cli.SetupLogging(opts.Verbose)

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(1)
	}

	cfg, err := opts.Load()
	if err != nil {
		cli.Exit(err)
	}

	input := pflag.Arg(0)
	f, err := os.Open(input)
	if err != nil {
		cli.Exit(err)
	}
	doc, err := layering.Parse(f)
	f.Close()
	if err != nil {
		cli.Exit(err)
	}

	patcher, err := layering.NewPatcher(doc, layering.OptionsFromConfig(cfg.Layering))
	if err != nil {
		cli.Exit(err)
	}
	fixed := patcher.Fix()
	log.WithField("overlays", fixed).Info("Patched page")

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		cli.Exit(err)
	}

	target := *out
	if *inPlace {
		target = input
	}
	if target == "" {
		if _, err := io.Copy(os.Stdout, &buf); err != nil {
			cli.Exit(err)
		}
		return
	}
	if err := os.WriteFile(target, buf.Bytes(), 0644); err != nil {
		cli.Exit(err)
	}
}
