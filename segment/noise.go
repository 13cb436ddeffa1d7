package segment

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// NoiseFilter removes recurring page furniture. Whole lines matching a
// drop pattern are discarded; strip patterns are cut out of kept lines.
type NoiseFilter struct {
	drop  []*regexp.Regexp
	strip []*regexp.Regexp
}

var (
	defaultDrop = []string{
		`(?i)^\s*(?:https?://)?www\.examtopics\.com/?\s*$`,
		`(?i)^\s*page\s+\d+\s+of\s+\d+\s*$`,
		`^\s*-{3}\s*PAGE\s+\d+\s*-{3}\s*$`,
		`^\s*\(?\d+\s+of\s+\d+\)\s*$`,
		`(?i)^\s*topic\s+\d+\s*$`,
		`(?i)^\s*(?:reveal|hide)\s+solution\b.*$`,
		// Vendor footers, e.g. "Microsoft Certified: ... - Question Bank (2 of 5)".
		`(?i)^\s*Microsoft Certified\b.*?(?:Question Bank|Study Materials|ExamTopics).*$`,
		`(?i)^\s*Question Bank\b.*$`,
		`(?i)^\s*Exam\s+[A-Z]+-\d+\s*$`,
	}
	defaultStrip = []string{
		`(?i)(?:https?://)?www\.examtopics\.com/?`,
		`(?i)\bpage\s+\d+\s+of\s+\d+\b`,
		// Same footer run onto the end of a content line.
		`(?i)\s*\bMicrosoft Certified\b.*?(?:Question Bank|Study Materials|ExamTopics).*$`,
	}
	multiSpaceRe = regexp.MustCompile(`[ \t]{2,}`)
)

// DefaultNoiseFilter returns the filter for exam dump exports.
func DefaultNoiseFilter() *NoiseFilter {
	f, err := NewNoiseFilter(nil, nil)
	if err != nil {
		panic(err)
	}
	return f
}

// NewNoiseFilter compiles the default patterns plus extra drop and strip
// patterns.
func NewNoiseFilter(extraDrop, extraStrip []string) (*NoiseFilter, error) {
	f := &NoiseFilter{}
	for _, p := range append(append([]string{}, defaultDrop...), extraDrop...) {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("noise drop pattern %q: %w", p, err)
		}
		f.drop = append(f.drop, re)
	}
	for _, p := range append(append([]string{}, defaultStrip...), extraStrip...) {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("noise strip pattern %q: %w", p, err)
		}
		f.strip = append(f.strip, re)
	}
	return f, nil
}

// Keep reports whether line survives the drop patterns.
func (f *NoiseFilter) Keep(line string) bool {
	for _, re := range f.drop {
		if re.MatchString(line) {
			return false
		}
	}
	return true
}

// Clean strips control characters and strip-pattern matches and squeezes
// runs of blanks.
func (f *NoiseFilter) Clean(line string) string {
	line = strings.Map(func(r rune) rune {
		if r == '\t' || unicode.IsPrint(r) {
			return r
		}
		return -1
	}, line)
	for _, re := range f.strip {
		line = re.ReplaceAllString(line, "")
	}
	return multiSpaceRe.ReplaceAllString(line, " ")
}
