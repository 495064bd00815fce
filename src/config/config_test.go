package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temp config file
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "brandkit.yaml")

	configContent := `
revision: v7

site:
  root: "."
  public_dir: "public"

mark:
  path: "public/ai-mark.svg"
  threshold: 230

icons:
  sizes: [16, 32, 48, 180]
  ico_sizes: [16, 32]
  background: "#FFFFFF"

og:
  title: "Kalyan AI"
  subtitle: "Private AI systems"

ntfy:
  enabled: true
  topic: "brand-assets"
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "v7", cfg.Revision)
	assert.Equal(t, "-v7", cfg.Suffix())
	assert.Equal(t, 230, cfg.Mark.Threshold)
	assert.Equal(t, 1024, cfg.Mark.RasterSize, "defaults survive partial files")
	assert.Equal(t, []int{16, 32}, cfg.Icons.ICOSizes)
	assert.Equal(t, Background("#FFFFFF"), cfg.Icons.Background)
	assert.InDelta(t, 0.92, cfg.Icons.ContentScale, 1e-9)
	assert.Equal(t, PlaceBaseline, cfg.OG.Placement)
	assert.Equal(t, "Private AI systems", cfg.OG.Subtitle)
	assert.Equal(t, filepath.Join(tmpDir, "public"), cfg.PublicPath())
	assert.Equal(t, filepath.Join(tmpDir, "public", "ai-mark.svg"), cfg.MarkPath())
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "v5", cfg.Revision)
	assert.Equal(t, "-v5", cfg.Suffix())
	assert.Equal(t, Transparent, cfg.Icons.Background)
	assert.Equal(t, TextHeuristic, cfg.OG.TextStrategy)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"BRANDKIT_REVISION":      "v6",
		"BRANDKIT_MARK":          "brand/mark.png",
		"BRANDKIT_PUBLIC_DIR":    "dist",
		"BRANDKIT_CONTENT_SCALE": "0.95",
		"BRANDKIT_NTFY_TOPIC":    "assets",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "v5", cfg.Revision, "revision is resolved by LoadRevision")
	assert.Equal(t, "dist", cfg.Site.PublicDir)
	assert.Equal(t, "brand/mark.png", cfg.Mark.Path)
	assert.InDelta(t, 0.95, cfg.Icons.ContentScale, 1e-9)
	assert.True(t, cfg.Ntfy.Enabled)
	assert.Equal(t, "assets", cfg.Ntfy.Topic)

	env["BRANDKIT_CONTENT_SCALE"] = "big"
	assert.Error(t, Default().ApplyEnv(func(k string) string { return env[k] }))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "brandkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRevisionOverrideKeepsFileFields(t *testing.T) {
	path := writeConfig(t, `
revision: v6
icons:
  content_scale: 0.95
  background: "#000000"
og:
  placement: baseline
`)

	tests := []struct {
		name     string
		env      string
		revision string
		want     string
		strategy string
	}{
		{"file only", "", "", "v6", TextMetrics},
		{"same revision from env", "v6", "", "v6", TextMetrics},
		{"other revision from env", "v4", "", "v4", TextHeuristic},
		{"flag wins over env", "v4", "v7", "v7", TextMetrics},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BRANDKIT_REVISION", tt.env)

			cfg, err := LoadRevision(path, tt.revision)
			require.NoError(t, err)

			assert.Equal(t, tt.want, cfg.Revision)
			assert.Equal(t, tt.strategy, cfg.OG.TextStrategy, "unset fields follow the preset")
			assert.InDelta(t, 0.95, cfg.Icons.ContentScale, 1e-9)
			assert.Equal(t, Background("#000000"), cfg.Icons.Background)
			assert.Equal(t, PlaceBaseline, cfg.OG.Placement)
		})
	}
}

func TestRevisionFromDotEnv(t *testing.T) {
	path := writeConfig(t, "og:\n  title: Pricing\n")
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte("BRANDKIT_REVISION=v7\n"), 0644))
	t.Setenv("BRANDKIT_REVISION", "")
	os.Unsetenv("BRANDKIT_REVISION")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "v7", cfg.Revision)
	assert.Equal(t, PlaceBaseline, cfg.OG.Placement)
	assert.Equal(t, "Pricing", cfg.OG.Title)
}

func TestLoadRevisionUnknown(t *testing.T) {
	t.Setenv("BRANDKIT_REVISION", "")
	_, err := LoadRevision(writeConfig(t, "revision: v6\n"), "v9")
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("BRANDKIT_MARK=brand/mark.png\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("BRANDKIT_MARK") })

	cfg := Default()
	require.NoError(t, cfg.LoadEnv(envFile))
	assert.Equal(t, "brand/mark.png", cfg.Mark.Path)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing public_dir",
			mutate:  func(c *Config) { c.Site.PublicDir = "" },
			wantErr: true,
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Mark.Threshold = 300 },
			wantErr: true,
		},
		{
			name:    "content scale above one",
			mutate:  func(c *Config) { c.Icons.ContentScale = 1.2 },
			wantErr: true,
		},
		{
			name:    "ico size not rendered",
			mutate:  func(c *Config) { c.Icons.ICOSizes = []int{64} },
			wantErr: true,
		},
		{
			name:    "bad background",
			mutate:  func(c *Config) { c.Icons.Background = "#GGHHII" },
			wantErr: true,
		},
		{
			name:    "unknown text strategy",
			mutate:  func(c *Config) { c.OG.TextStrategy = "guess" },
			wantErr: true,
		},
		{
			name:    "quote in overlay class",
			mutate:  func(c *Config) { c.Layering.OverlayClass = "calendly'overlay" },
			wantErr: true,
		},
		{
			name:    "space in popup class",
			mutate:  func(c *Config) { c.Layering.PopupClasses = []string{"calendly popup"} },
			wantErr: true,
		},
		{
			name:    "ntfy without topic",
			mutate:  func(c *Config) { c.Ntfy.Enabled = true },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPresetSelectsSourceAndAppleTouchName(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "public/ai-mark.svg", cfg.Mark.Path)
	assert.Equal(t, "apple-touch-icon", cfg.Icons.AppleTouchName)

	require.NoError(t, cfg.ApplyPreset("v4"))
	assert.Equal(t, "public/ai-text.png", cfg.Mark.Path)
	assert.Equal(t, "apple-touch-icon-180x180", cfg.Icons.AppleTouchName)

	path := writeConfig(t, "revision: v3\nmark:\n  path: brand/logo.png\n")
	t.Setenv("BRANDKIT_REVISION", "")
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "brand/logo.png", loaded.Mark.Path)
	assert.Equal(t, "apple-touch-icon-180x180", loaded.Icons.AppleTouchName)
}

func TestApplyPresetUnknown(t *testing.T) {
	assert.Error(t, Default().ApplyPreset("v99"))
}

func TestBackgroundParse(t *testing.T) {
	rgb, err := Transparent.Parse()
	require.NoError(t, err)
	assert.Nil(t, rgb)

	rgb, err = Background("#fff").Parse()
	require.NoError(t, err)
	assert.Equal(t, &RGB{R: 255, G: 255, B: 255}, rgb)

	rgb, err = Background("#0F1F3A").Parse()
	require.NoError(t, err)
	assert.Equal(t, &RGB{R: 0x0F, G: 0x1F, B: 0x3A}, rgb)
}
