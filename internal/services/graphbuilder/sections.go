package graphbuilder

import (
	"strings"
	"unicode"
)

// isHeading applies a layout heuristic: headings are short lines with
// no sentence terminator, written in title case or all caps, or
// carrying a section number prefix.
func isHeading(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > 80 {
		return false
	}
	if strings.ContainsAny(text, ".!?") && !hasNumberedPrefix(text) {
		return false
	}
	if hasNumberedPrefix(text) {
		return true
	}
	return isAllCaps(text) || isTitleCase(text)
}

// hasNumberedPrefix matches "1 Introduction", "2.3 Methods" style
func hasNumberedPrefix(text string) bool {
	i := 0
	digits := 0
	for i < len(text) {
		c := text[i]
		if c >= '0' && c <= '9' {
			digits++
			i++
			continue
		}
		if c == '.' && digits > 0 {
			i++
			digits = 0
			continue
		}
		break
	}
	if i == 0 {
		return false
	}
	rest := strings.TrimSpace(text[i:])
	return rest != "" && unicode.IsUpper(rune(rest[0]))
}

func isAllCaps(text string) bool {
	hasLetter := false
	for _, r := range text {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

// isTitleCase requires most words to start with an uppercase letter,
// allowing short connectives
func isTitleCase(text string) bool {
	words := strings.Fields(text)
	if len(words) == 0 || len(words) > 10 {
		return false
	}

	connectives := map[string]bool{
		"a": true, "an": true, "and": true, "as": true, "at": true,
		"by": true, "for": true, "in": true, "of": true, "on": true,
		"or": true, "the": true, "to": true, "with": true,
	}

	upper := 0
	for _, word := range words {
		r := rune(word[0])
		if unicode.IsUpper(r) || unicode.IsDigit(r) {
			upper++
		} else if !connectives[strings.ToLower(word)] {
			return false
		}
	}
	return upper >= (len(words)+1)/2
}
