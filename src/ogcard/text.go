package ogcard

import (
	"strings"
	"unicode/utf8"
)

// HeuristicCharWidth is the average glyph advance as a fraction of the font size.
const HeuristicCharWidth = 0.55

// TextBlock is a string broken into lines under a maximum width.
type TextBlock struct {
	Lines    []string
	FontSize float64
	LineGap  float64
}

// Height is the block height from the first line's top to the last baseline.
func (b TextBlock) Height() float64 {
	n := float64(len(b.Lines))
	if n == 0 {
		return 0
	}
	return n*b.FontSize + (n-1)*b.LineGap
}

// Measure returns the rendered width of s in pixels.
type Measure func(s string) float64

// EstimateWidth approximates the width of text without font metrics.
func EstimateWidth(text string, fontSize float64) float64 {
	return float64(utf8.RuneCountInString(text)) * fontSize * HeuristicCharWidth
}

// HeuristicMeasure returns EstimateWidth bound to fontSize.
func HeuristicMeasure(fontSize float64) Measure {
	return func(s string) float64 { return EstimateWidth(s, fontSize) }
}

// Wrap greedily packs words into lines no wider than maxWidth. A single word
// wider than maxWidth gets a line of its own and overflows.
func Wrap(text string, measure Measure, maxWidth float64) []string {
	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if current == "" || measure(candidate) <= maxWidth {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// WrapLines wraps text with the heuristic width estimate.
func WrapLines(text string, fontSize, maxWidth float64) []string {
	return Wrap(text, HeuristicMeasure(fontSize), maxWidth)
}
