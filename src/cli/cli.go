// Package cli holds the flags and setup shared by the brandkit commands.
package cli

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"brandkit/src/config"
)

// DefaultConfigFile is picked up from the working directory when --config is not given
const DefaultConfigFile = "brandkit.yaml"

// Options are the common command-line flags
type Options struct {
	ConfigPath string
	PublicDir  string
	Revision   string
	Verbose    bool
}

// Bind registers the common flags on fs
func Bind(fs *pflag.FlagSet) *Options {
	o := &Options{}
	fs.StringVarP(&o.ConfigPath, "config", "c", "", "path to brandkit.yaml (default ./"+DefaultConfigFile+" when present)")
	fs.StringVar(&o.PublicDir, "public", "", "output directory, overrides site.public_dir")
	fs.StringVarP(&o.Revision, "revision", "r", "", "revision preset (v3, v4, v5, v6, v7)")
	fs.BoolVarP(&o.Verbose, "verbose", "v", false, "debug logging")
	return o
}

// ResolveConfigPath returns the config file to load, or "" for defaults only
func (o *Options) ResolveConfigPath() string {
	if o.ConfigPath != "" {
		return o.ConfigPath
	}
	if info, err := os.Stat(DefaultConfigFile); err == nil && !info.IsDir() {
		return DefaultConfigFile
	}
	return ""
}

// Load reads the configuration and applies the flag overrides. --revision
// selects the preset the file is layered on.
func (o *Options) Load() (*config.Config, error) {
	cfg, err := config.LoadRevision(o.ResolveConfigPath(), o.Revision)
	if err != nil {
		return nil, err
	}
	if o.PublicDir != "" {
		cfg.Site.PublicDir = o.PublicDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetupLogging configures logrus the same way for every command
func SetupLogging(verbose bool) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// Exit prints err to standard error and exits with status 1
func Exit(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
