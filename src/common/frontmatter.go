package common

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Page represents a site page whose frontmatter drives a social card
type Page struct {
	FilePath string `yaml:"-"`

	// Required fields
	Title string `yaml:"title"`

	// Optional fields
	Description string  `yaml:"description,omitempty"`
	Slug        string  `yaml:"slug,omitempty"`
	OG          *PageOG `yaml:"og,omitempty"`
}

// PageOG overrides the card text for a single page
type PageOG struct {
	Title    string `yaml:"title,omitempty"`
	Subtitle string `yaml:"subtitle,omitempty"`
	Skip     bool   `yaml:"skip,omitempty"`
}

var slugStrip = regexp.MustCompile(`[^a-z0-9-]+`)

// ParsePage reads a markdown file and parses the YAML frontmatter
func ParsePage(filePath string) (*Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Frontmatter must open the file
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\ufeff\r\n "), []byte("---")) {
		return nil, fmt.Errorf("invalid frontmatter: missing --- delimiters")
	}
	parts := bytes.SplitN(data, []byte("---"), 3)
	if len(parts) < 3 {
		return nil, fmt.Errorf("invalid frontmatter: missing --- delimiters")
	}

	page := &Page{FilePath: filePath}
	if err := yaml.Unmarshal(parts[1], page); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	if page.Title == "" {
		return nil, fmt.Errorf("missing required field: title")
	}

	return page, nil
}

// ListPages parses every .md and .mdx file under dir, sorted by path
func ListPages(dir string) ([]*Page, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".md", ".mdx":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk pages: %w", err)
	}
	sort.Strings(paths)

	pages := make([]*Page, 0, len(paths))
	for _, p := range paths {
		page, err := ParsePage(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// GetSlug returns the explicit slug or a URL-friendly one from the title
func (p *Page) GetSlug() string {
	src := p.Slug
	if src == "" {
		src = p.Title
	}
	slug := strings.ToLower(strings.TrimSpace(src))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "/", "-")
	slug = slugStrip.ReplaceAllString(slug, "")
	return strings.Trim(slug, "-")
}

// CardText returns the title and subtitle rendered on the page's card
func (p *Page) CardText() (title, subtitle string) {
	title, subtitle = p.Title, p.Description
	if p.OG != nil {
		if p.OG.Title != "" {
			title = p.OG.Title
		}
		if p.OG.Subtitle != "" {
			subtitle = p.OG.Subtitle
		}
	}
	return title, subtitle
}

// SkipCard reports whether the page opted out of a generated card
func (p *Page) SkipCard() bool {
	return p.OG != nil && p.OG.Skip
}
