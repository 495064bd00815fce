package builder

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// RunSiteBuild runs the site's own build command (e.g. "npm run build") in
// siteDir so the static output picks up freshly published assets
func RunSiteBuild(ctx context.Context, siteDir, command string) error {
	dir, err := filepath.Abs(siteDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute site path: %w", err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Errorf("Site build error: %s", string(output))
		return fmt.Errorf("site build failed: %w", err)
	}
	log.WithField("command", command).Info("Site build successful")
	return nil
}
