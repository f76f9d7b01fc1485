package filter

import (
	"regexp"
	"strings"
)

// MaxRepeat is the longest run of identical consecutive tokens kept by
// Normalize.
const MaxRepeat = 3

var (
	mentionPattern = regexp.MustCompile(`@[\p{L}\p{N}_]+`)
	linkPattern    = regexp.MustCompile(`(?i)(?:https?://|www\.)[^\s\p{Z}]+`)
)

// HasMention reports whether text contains an @mention.
func HasMention(text string) bool {
	return mentionPattern.MatchString(text)
}

// Normalize strips @mentions and links, caps runs of a repeated token at
// MaxRepeat and collapses whitespace. Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	text = mentionPattern.ReplaceAllString(text, "")
	text = linkPattern.ReplaceAllString(text, "")

	tokens := strings.Fields(text)
	kept := make([]string, 0, len(tokens))
	streak := 0
	for i, token := range tokens {
		if i > 0 && token == tokens[i-1] {
			streak++
		} else {
			streak = 1
		}
		if streak <= MaxRepeat {
			kept = append(kept, token)
		}
	}
	return strings.Join(kept, " ")
}
