package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the brandkit configuration
type Config struct {
	Revision string         `yaml:"revision"`
	Site     SiteConfig     `yaml:"site"`
	Mark     MarkConfig     `yaml:"mark"`
	Icons    IconsConfig    `yaml:"icons"`
	OG       OGConfig       `yaml:"og"`
	Fonts    FontsConfig    `yaml:"fonts"`
	Pages    PagesConfig    `yaml:"pages"`
	Watch    WatchConfig    `yaml:"watch"`
	Ntfy     NtfyConfig     `yaml:"ntfy"`
	Rsync    RsyncConfig    `yaml:"rsync"`
	Layering LayeringConfig `yaml:"layering"`
}

type SiteConfig struct {
	Root      string `yaml:"root"`
	PublicDir string `yaml:"public_dir"`
	// BuildCommand runs after assets are published, e.g. "npm run build".
	BuildCommand string `yaml:"build_command"`
}

type MarkConfig struct {
	Path string `yaml:"path"`
	// RasterSize is the square size the mark is rasterised to before trimming.
	RasterSize int     `yaml:"raster_size"`
	Threshold  int     `yaml:"threshold"`
	Padding    float64 `yaml:"padding"`
}

type IconsConfig struct {
	Sizes        []int      `yaml:"sizes"`
	ICOSizes     []int      `yaml:"ico_sizes"`
	ContentScale float64    `yaml:"content_scale"`
	Background   Background `yaml:"background"`
	// Encoders lists the ICO encoders in the order they are tried.
	Encoders []string `yaml:"encoders"`

	// AppleTouchName is the 180px file name without suffix and extension.
	AppleTouchName string `yaml:"apple_touch_name"`
}

// Background is either "transparent" or an opaque hex colour such as "#FFFFFF".
type Background string

type OGConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	GradientFrom  string  `yaml:"gradient_from"`
	GradientTo    string  `yaml:"gradient_to"`
	MarkHeight    int     `yaml:"mark_height"`
	MarkX         int     `yaml:"mark_x"`
	TextX         int     `yaml:"text_x"`
	MaxTextWidth  int     `yaml:"max_text_width"`
	Title         string  `yaml:"title"`
	Subtitle      string  `yaml:"subtitle"`
	TitleSize     float64 `yaml:"title_size"`
	SubtitleSize  float64 `yaml:"subtitle_size"`
	FallbackSize  float64 `yaml:"fallback_subtitle_size"`
	LineGap       float64 `yaml:"line_gap"`
	SubLineGap    float64 `yaml:"sub_line_gap"`
	TextColor     string  `yaml:"text_color"`
	TextStrategy  string  `yaml:"text_strategy"`
	Placement     string  `yaml:"placement"`
	TitleBaseline float64 `yaml:"title_baseline"`
}

type FontsConfig struct {
	Regular string `yaml:"regular"`
	Bold    string `yaml:"bold"`
}

type PagesConfig struct {
	Dir string `yaml:"dir"`
}

type WatchConfig struct {
	DebounceMillis int `yaml:"debounce_ms"`
}

type NtfyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Server  string `yaml:"server"`
	Topic   string `yaml:"topic"`
	// PublicURL is where the public dir is served. When set, success
	// notifications link to the new OG card.
	PublicURL string `yaml:"public_url"`
}

type RsyncConfig struct {
	Enabled    bool   `yaml:"enabled"`
	User       string `yaml:"user"`
	Host       string `yaml:"host"`
	TargetPath string `yaml:"target_path"`
	SSHKey     string `yaml:"ssh_key"`
}

type LayeringConfig struct {
	OverlayClass string   `yaml:"overlay_class"`
	PopupClasses []string `yaml:"popup_classes"`
}

// Text strategies and placement policies for the OG card
const (
	TextMetrics   = "metrics"
	TextHeuristic = "heuristic"

	PlaceCenter   = "center"
	PlaceBaseline = "baseline"

	Transparent Background = "transparent"
)

// Default returns the configuration the original v5 scripts used
func Default() *Config {
	cfg := &Config{
		Site: SiteConfig{
			Root:      ".",
			PublicDir: "public",
		},
		Mark: MarkConfig{
			RasterSize: 1024,
			Threshold:  220,
			Padding:    0.01,
		},
		Icons: IconsConfig{
			Sizes:    []int{16, 32, 48, 180},
			ICOSizes: []int{16, 32, 48},
			Encoders: []string{"png", "bmp"},
		},
		OG: OGConfig{
			Enabled:       true,
			Width:         1200,
			Height:        630,
			GradientFrom:  "#0F1F3A",
			GradientTo:    "#AB71F7",
			MarkHeight:    360,
			MarkX:         110,
			TextX:         560,
			MaxTextWidth:  560,
			Title:         "Kalyan AI",
			Subtitle:      "Bespoke hosted AI systems",
			TitleSize:     72,
			SubtitleSize:  52,
			FallbackSize:  44,
			LineGap:       18,
			SubLineGap:    12,
			TextColor:     "#F5F8FF",
			TitleBaseline: 260,
		},
		Watch: WatchConfig{
			DebounceMillis: 500,
		},
		Ntfy: NtfyConfig{
			Server: "https://ntfy.sh",
		},
		Layering: LayeringConfig{
			OverlayClass: "calendly-overlay",
			PopupClasses: []string{"calendly-popup", "calendly-popup-content"},
		},
	}
	if err := cfg.ApplyPreset("v5"); err != nil {
		panic(err)
	}
	return cfg
}

// Load reads and parses the configuration file on top of Default().
// A missing file at path is not an error when path is empty.
func Load(path string) (*Config, error) {
	return LoadRevision(path, "")
}

// LoadRevision is Load with an explicit revision that wins over
// BRANDKIT_REVISION and the file's revision key. The chosen preset is applied
// before the file, so fields set in the file override it.
func LoadRevision(path, revision string) (*Config, error) {
	cfg := Default()

	var data []byte
	var head struct {
		Revision string `yaml:"revision"`
		Site     struct {
			Root string `yaml:"root"`
		} `yaml:"site"`
	}
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &head); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Relative paths in the file are relative to the file itself
	root := cfg.Site.Root
	if head.Site.Root != "" {
		root = head.Site.Root
	}
	if path != "" && !filepath.IsAbs(root) {
		root = filepath.Join(filepath.Dir(path), root)
	}
	if err := loadDotEnv(filepath.Join(root, ".env")); err != nil {
		return nil, err
	}

	if revision == "" {
		revision = os.Getenv("BRANDKIT_REVISION")
	}
	if revision == "" {
		revision = head.Revision
	}
	if revision != "" {
		if err := cfg.ApplyPreset(revision); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	if data != nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if revision != "" {
			cfg.Revision = revision
		}
	}
	cfg.Site.Root = root

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func loadDotEnv(envFile string) error {
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	return nil
}

// LoadEnv reads an optional .env file and applies BRANDKIT_* overrides.
// Variables already set in the process environment win over the file.
func (c *Config) LoadEnv(envFile string) error {
	if err := loadDotEnv(envFile); err != nil {
		return err
	}
	return c.ApplyEnv(os.Getenv)
}

// ApplyEnv applies BRANDKIT_* field overrides read through getenv.
// BRANDKIT_REVISION is resolved by LoadRevision, not here.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("BRANDKIT_PUBLIC_DIR"); v != "" {
		c.Site.PublicDir = v
	}
	if v := getenv("BRANDKIT_MARK"); v != "" {
		c.Mark.Path = v
	}
	if v := getenv("BRANDKIT_FONT_REGULAR"); v != "" {
		c.Fonts.Regular = v
	}
	if v := getenv("BRANDKIT_FONT_BOLD"); v != "" {
		c.Fonts.Bold = v
	}
	if v := getenv("BRANDKIT_CONTENT_SCALE"); v != "" {
		scale, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("BRANDKIT_CONTENT_SCALE: %w", err)
		}
		c.Icons.ContentScale = scale
	}
	if v := getenv("BRANDKIT_NTFY_TOPIC"); v != "" {
		c.Ntfy.Topic = v
		c.Ntfy.Enabled = true
	}
	return nil
}

// ApplyPreset sets the fields that drifted between script revisions
func (c *Config) ApplyPreset(name string) error {
	p, ok := presets[name]
	if !ok {
		return fmt.Errorf("unknown revision %q", name)
	}
	c.Revision = name
	c.Icons.Background = p.background
	c.Icons.ContentScale = p.contentScale
	c.OG.TextStrategy = p.textStrategy
	c.OG.Placement = p.placement
	c.Mark.Path = p.markPath
	c.Icons.AppleTouchName = p.appleTouchName
	return nil
}

type preset struct {
	background   Background
	contentScale float64
	textStrategy string
	placement    string
	suffix       string

	// v3 and v4 scaled the raster wordmark, later revisions the SVG mark
	markPath       string
	appleTouchName string
}

var presets = map[string]preset{
	"v3": {"#FFFFFF", 0.88, TextHeuristic, PlaceCenter, "", "public/ai-text.png", "apple-touch-icon-180x180"},
	"v4": {"#FFFFFF", 0.97, TextHeuristic, PlaceCenter, "", "public/ai-text.png", "apple-touch-icon-180x180"},
	"v5": {Transparent, 0.83, TextHeuristic, PlaceCenter, "-v5", "public/ai-mark.svg", "apple-touch-icon"},
	"v6": {Transparent, 0.90, TextMetrics, PlaceCenter, "-v6", "public/ai-mark.svg", "apple-touch-icon"},
	"v7": {Transparent, 0.92, TextMetrics, PlaceBaseline, "-v7", "public/ai-mark.svg", "apple-touch-icon"},
}

// Suffix returns the file name suffix for the configured revision
func (c *Config) Suffix() string {
	return RevisionSuffix(c.Revision)
}

// RevisionSuffix returns the file name suffix for revision
func RevisionSuffix(revision string) string {
	if p, ok := presets[revision]; ok {
		return p.suffix
	}
	return "-" + revision
}

// PublicPath returns the absolute-ish path of the public output directory
func (c *Config) PublicPath() string {
	if filepath.IsAbs(c.Site.PublicDir) {
		return c.Site.PublicDir
	}
	return filepath.Join(c.Site.Root, c.Site.PublicDir)
}

// MarkPath returns the mark path resolved against the site root
func (c *Config) MarkPath() string {
	if filepath.IsAbs(c.Mark.Path) {
		return c.Mark.Path
	}
	return filepath.Join(c.Site.Root, c.Mark.Path)
}

// ResolvePath resolves an optional path against the site root
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Site.Root, p)
}

// Validate checks if required configuration fields are set
func (c *Config) Validate() error {
	if c.Site.PublicDir == "" {
		return fmt.Errorf("site.public_dir is required")
	}
	if c.Mark.Path == "" {
		return fmt.Errorf("mark.path is required")
	}
	if c.Mark.Threshold < 0 || c.Mark.Threshold > 255 {
		return fmt.Errorf("mark.threshold must be within 0-255, got %d", c.Mark.Threshold)
	}
	if c.Mark.Padding < 0 {
		return fmt.Errorf("mark.padding must not be negative")
	}
	if c.Icons.ContentScale <= 0 || c.Icons.ContentScale > 1 {
		return fmt.Errorf("icons.content_scale must be within (0, 1], got %g", c.Icons.ContentScale)
	}
	if len(c.Icons.Sizes) == 0 {
		return fmt.Errorf("icons.sizes is required")
	}
	for _, s := range c.Icons.Sizes {
		if s <= 0 {
			return fmt.Errorf("icons.sizes contains invalid size %d", s)
		}
	}
	for _, s := range c.Icons.ICOSizes {
		if !containsInt(c.Icons.Sizes, s) {
			return fmt.Errorf("icons.ico_sizes: %d is not one of icons.sizes", s)
		}
		if s > 256 {
			return fmt.Errorf("icons.ico_sizes: %d exceeds 256", s)
		}
	}
	if _, err := c.Icons.Background.Parse(); err != nil {
		return fmt.Errorf("icons.background: %w", err)
	}
	switch c.OG.TextStrategy {
	case TextMetrics, TextHeuristic:
	default:
		return fmt.Errorf("og.text_strategy must be %q or %q", TextMetrics, TextHeuristic)
	}
	switch c.OG.Placement {
	case PlaceCenter, PlaceBaseline:
	default:
		return fmt.Errorf("og.placement must be %q or %q", PlaceCenter, PlaceBaseline)
	}
	if c.Layering.OverlayClass != "" {
		if err := ValidClassName(c.Layering.OverlayClass); err != nil {
			return fmt.Errorf("layering.overlay_class: %w", err)
		}
	}
	for _, class := range c.Layering.PopupClasses {
		if err := ValidClassName(class); err != nil {
			return fmt.Errorf("layering.popup_classes: %w", err)
		}
	}
	if c.Ntfy.Enabled && c.Ntfy.Topic == "" {
		return fmt.Errorf("ntfy.topic is required when ntfy is enabled")
	}
	if c.Rsync.Enabled && (c.Rsync.Host == "" || c.Rsync.TargetPath == "") {
		return fmt.Errorf("rsync.host and rsync.target_path are required when rsync is enabled")
	}
	return nil
}

// ValidClassName rejects names that cannot be matched as a single HTML class
func ValidClassName(class string) error {
	if class == "" {
		return fmt.Errorf("class name is empty")
	}
	if strings.ContainsAny(class, "'\" \t\r\n\f") {
		return fmt.Errorf("invalid class name %q", class)
	}
	return nil
}

// RGB is an opaque colour
type RGB struct {
	R, G, B uint8
}

// Parse returns nil for a transparent background
func (b Background) Parse() (*RGB, error) {
	if b == "" || strings.EqualFold(string(b), string(Transparent)) {
		return nil, nil
	}
	c, err := ParseHex(string(b))
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ParseHex parses #RGB or #RRGGBB
func ParseHex(s string) (RGB, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return RGB{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid colour %q", s)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
