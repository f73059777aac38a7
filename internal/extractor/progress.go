package extractor

import (
	"math"
	"regexp"
	"strconv"
)

const (
	// BandStart is the job percent reported once the download begins.
	BandStart = 5
	// BandEnd caps download progress; 100 is reserved for completion.
	BandEnd = 95
)

var defaultProgressPattern = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%`)

// ProgressParser extracts the tool's own percentage from an output line.
type ProgressParser interface {
	Parse(line string) (float64, bool)
}

// RegexParser matches a pattern whose first group is the percentage.
type RegexParser struct {
	pattern *regexp.Regexp
}

// NewRegexParser compiles pattern. The pattern must have one capture group.
func NewRegexParser(pattern string) (*RegexParser, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &RegexParser{pattern: re}, nil
}

// DefaultParser recognizes yt-dlp "[download]  42.0%" lines.
func DefaultParser() *RegexParser {
	return &RegexParser{pattern: defaultProgressPattern}
}

func (p *RegexParser) Parse(line string) (float64, bool) {
	match := p.pattern.FindStringSubmatch(line)
	if len(match) < 2 {
		return 0, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// MapPercent maps the tool's 0-100 onto the job's 5-95 band.
func MapPercent(toolPercent float64) int {
	if toolPercent < 0 || math.IsNaN(toolPercent) {
		toolPercent = 0
	}
	if toolPercent > 100 {
		toolPercent = 100
	}
	mapped := math.Min(BandEnd, BandStart+toolPercent*0.9)
	return int(math.Round(mapped))
}

// BandTracker emits mapped values only when they strictly increase.
type BandTracker struct {
	last int
}

// NewBandTracker starts at BandStart.
func NewBandTracker() *BandTracker {
	return &BandTracker{last: BandStart}
}

// Advance maps toolPercent and reports whether it moved the band forward.
func (b *BandTracker) Advance(toolPercent float64) (int, bool) {
	mapped := MapPercent(toolPercent)
	if mapped <= b.last {
		return b.last, false
	}
	b.last = mapped
	return mapped, true
}

// Last returns the highest value emitted so far.
func (b *BandTracker) Last() int {
	return b.last
}
