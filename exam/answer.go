package exam

import (
	"regexp"
	"strings"
)

var answerSepRe = regexp.MustCompile(`(?i)\s*(?:,|;|&|/|\band\b|\s)\s*`)

// IsYesNo reports whether a raw answer token is a yes/no value.
func IsYesNo(raw string) bool {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(raw), ".")) {
	case "yes", "no":
		return true
	}
	return false
}

// AnswerLetters normalizes a raw answer token into its choice letters,
// e.g. "A, C" and "A and C" and "AC" all give [A C]. Yes/no tokens and
// anything that is not made of capital letters give nil.
func AnswerLetters(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || IsYesNo(raw) {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, part := range answerSepRe.Split(raw, -1) {
		part = strings.Trim(part, ".()")
		if part == "" {
			continue
		}
		for _, r := range part {
			if r < 'A' || r > 'Z' {
				return nil
			}
		}
		for _, r := range part {
			l := string(r)
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	return out
}

// IsMultiAnswer reports whether a raw answer token selects more than one letter.
func IsMultiAnswer(raw string) bool {
	return len(AnswerLetters(raw)) > 1
}
