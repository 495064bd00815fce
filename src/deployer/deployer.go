package deployer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"brandkit/src/config"
)

// StagingPrefix names the temporary directories builds write into
const StagingPrefix = ".brandkit-staging-"

// Deployer moves finished assets into the public directory and optionally
// ships them to the webhost
type Deployer struct {
	cfg *config.Config
	// RsyncPath is the rsync binary, overridable for tests
	RsyncPath string
}

// NewDeployer creates a new deployer
func NewDeployer(cfg *config.Config) *Deployer {
	return &Deployer{cfg: cfg, RsyncPath: "rsync"}
}

// NewStaging creates an empty staging directory inside publicDir so the final
// renames stay on one filesystem
func NewStaging(publicDir string) (string, error) {
	if err := os.MkdirAll(publicDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create public directory: %w", err)
	}
	dir, err := os.MkdirTemp(publicDir, StagingPrefix)
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	return dir, nil
}

// Deploy publishes the staged files and rsyncs them when enabled
func (d *Deployer) Deploy(ctx context.Context, stagingDir, publicDir string) ([]string, error) {
	files, err := Publish(stagingDir, publicDir)
	if err != nil {
		return nil, fmt.Errorf("failed to publish assets: %w", err)
	}

	if d.cfg.Rsync.Enabled {
		if err := d.rsyncToWebhost(ctx, publicDir, files); err != nil {
			return files, fmt.Errorf("failed to rsync to webhost: %w", err)
		}
	}
	return files, nil
}

// Publish renames every regular file in stagingDir into publicDir, replacing
// existing files, then removes stagingDir. It returns the published paths.
func Publish(stagingDir, publicDir string) ([]string, error) {
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read staging directory: %w", err)
	}

	var published []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		dst := filepath.Join(publicDir, e.Name())
		if err := os.Rename(filepath.Join(stagingDir, e.Name()), dst); err != nil {
			return published, fmt.Errorf("failed to move %s: %w", e.Name(), err)
		}
		published = append(published, dst)
	}
	sort.Strings(published)

	if err := os.RemoveAll(stagingDir); err != nil {
		return published, fmt.Errorf("failed to remove staging directory: %w", err)
	}

	log.WithField("files", len(published)).Infof("✓ Published to %s", publicDir)
	return published, nil
}

// Discard removes a staging directory after a failed build
func Discard(stagingDir string) {
	if stagingDir == "" {
		return
	}
	if err := os.RemoveAll(stagingDir); err != nil {
		log.Warnf("Failed to remove staging directory %s: %v", stagingDir, err)
	}
}

// CleanStale removes staging directories left behind by interrupted runs
func CleanStale(publicDir string) error {
	matches, err := filepath.Glob(filepath.Join(publicDir, StagingPrefix+"*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.RemoveAll(m); err != nil {
			return fmt.Errorf("failed to remove %s: %w", m, err)
		}
		log.Debugf("Removed stale staging directory %s", m)
	}
	return nil
}

// rsyncToWebhost copies the published files to the webhost. No --delete:
// the rest of the public directory belongs to the site build.
func (d *Deployer) rsyncToWebhost(ctx context.Context, publicDir string, files []string) error {
	if len(files) == 0 {
		return nil
	}
	log.Info("🌐 Deploying assets to webhost via rsync...")

	target := fmt.Sprintf("%s:%s", d.cfg.Rsync.Host, strings.TrimRight(d.cfg.Rsync.TargetPath, "/")+"/")
	if d.cfg.Rsync.User != "" {
		target = d.cfg.Rsync.User + "@" + target
	}

	args := []string{"-avz"}
	if d.cfg.Rsync.SSHKey != "" {
		args = append(args, "-e", fmt.Sprintf("ssh -i %s", d.cfg.Rsync.SSHKey))
	}
	args = append(args, files...)
	args = append(args, target)

	cmd := exec.CommandContext(ctx, d.RsyncPath, args...)
	cmd.Dir = publicDir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("rsync failed: %w\nOutput: %s", err, string(output))
	}

	log.Infof("✓ Deployed to: %s", target)
	return nil
}
