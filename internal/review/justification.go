package review

import (
	"strings"
	"unicode"

	"github.com/klarsikt-ab/kartotek/internal/model"
)

const minJustificationLen = 10

// placeholders are throwaway values reviewers type to clear the field.
var placeholders = map[string]bool{
	"ok":       true,
	"okay":     true,
	"yes":      true,
	"no":       true,
	"n/a":      true,
	"na":       true,
	"none":     true,
	"test":     true,
	"testing":  true,
	"approved": true,
	"approve":  true,
	"good":     true,
	"fine":     true,
	"done":     true,
	"ja":       true,
	"godkänd":  true,
	"godkänt":  true,
}

// keyboardPatterns are mashed-key sequences; a justification consisting of
// one is rejected outright.
var keyboardPatterns = []string{
	"qwerty", "qwert", "asdf", "asdfgh", "zxcv", "zxcvbn",
	"12345", "123456", "11111", "aaaa", "xxxx",
}

// ValidateJustification checks that a justification is substantive. Each
// failure mode returns a compliance error with its own reason so the caller
// can tell the reviewer what to fix.
func ValidateJustification(text string) error {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minJustificationLen {
		return model.Compliancef("justification too short: %d chars, need %d", len(trimmed), minJustificationLen)
	}

	lower := strings.ToLower(trimmed)
	if placeholders[lower] {
		return model.Compliancef("justification is a placeholder value: %q", trimmed)
	}
	for _, pat := range keyboardPatterns {
		if strings.Contains(strings.ReplaceAll(lower, " ", ""), pat) {
			return model.Compliancef("justification looks like a keyboard pattern: %q", trimmed)
		}
	}

	if realWords(trimmed) < 2 {
		return model.Compliancef("justification needs at least two real words: %q", trimmed)
	}
	return nil
}

// realWords counts tokens of three or more letters.
func realWords(s string) int {
	count := 0
	for _, w := range strings.Fields(s) {
		letters := 0
		for _, r := range w {
			if unicode.IsLetter(r) {
				letters++
			}
		}
		if letters >= 3 {
			count++
		}
	}
	return count
}
