// Package moderation decides whether a piece of feedback text is acceptable.
// A free local rule filter runs first; external classifiers are only consulted
// when the rules find nothing.
package moderation

import (
	"fmt"
	"strings"
	"unicode"
)

// Rule names the local check that flagged a text
type Rule string

const (
	RuleLength      Rule = "length"
	RuleBadWord     Rule = "bad_word"
	RuleCharFlood   Rule = "char_flood"
	RuleCharRepeat  Rule = "char_repeat"
	RuleCaps        Rule = "caps"
	RuleDigits      Rule = "digits"
	RuleChunkRepeat Rule = "chunk_repeat"
)

const (
	MaxLength        = 2000
	floodRun         = 9
	repeatRun        = 6
	capsRun          = 15
	digitRun         = 10
	maxChunk         = 3
	chunkRepetitions = 5
)

// defaultBadWords is the built-in list; MODERATION_BAD_WORDS extends it
var defaultBadWords = []string{
	"idiota",
	"estupido",
	"estúpido",
	"imbecil",
	"imbécil",
	"pendejo",
	"mierda",
	"cabron",
	"cabrón",
	"idiot",
	"stupid",
	"moron",
	"retard",
	"fuck",
	"shit",
	"bitch",
	"asshole",
	"kill yourself",
}

// FilterResult is what the local filter found. It carries no score.
type FilterResult struct {
	Flagged bool
	Reason  string
	Rule    Rule
	Details string
}

// Filter is the local rule filter. Safe for concurrent use; it is never mutated after NewFilter.
type Filter struct {
	badWords []string
}

// NewFilter builds a filter with the built-in words plus extra
func NewFilter(extra ...string) *Filter {
	seen := make(map[string]struct{})
	words := make([]string, 0, len(defaultBadWords)+len(extra))
	for _, w := range append(append([]string{}, defaultBadWords...), extra...) {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	return &Filter{badWords: words}
}

// BadWords returns a copy of the configured word list
func (f *Filter) BadWords() []string {
	return append([]string(nil), f.badWords...)
}

// Check scans text and reports the first rule that fires
func (f *Filter) Check(text string) FilterResult {
	runes := []rune(text)

	if len(runes) > MaxLength {
		return flagged(RuleLength, "Text exceeds the maximum length",
			fmt.Sprintf("%d characters (max %d)", len(runes), MaxLength))
	}

	lower := strings.ToLower(text)
	for _, w := range f.badWords {
		if strings.Contains(lower, w) {
			return flagged(RuleBadWord, "Contains inappropriate language", fmt.Sprintf("matched %q", mask(w)))
		}
	}

	if run := longestIdenticalRun(runes); run >= floodRun {
		return flagged(RuleCharFlood, "Excessive character repetition", fmt.Sprintf("run of %d identical characters", run))
	} else if run >= repeatRun {
		return flagged(RuleCharRepeat, "Repeated characters", fmt.Sprintf("run of %d identical characters", run))
	}

	if run := longestRun(runes, unicode.IsUpper); run >= capsRun {
		return flagged(RuleCaps, "Excessive use of capital letters", fmt.Sprintf("%d consecutive uppercase letters", run))
	}

	if run := longestRun(runes, isASCIIDigit); run >= digitRun {
		return flagged(RuleDigits, "Contains a long number sequence (possible personal data)", fmt.Sprintf("%d consecutive digits", run))
	}

	if chunk, ok := repeatedChunk(runes); ok {
		return flagged(RuleChunkRepeat, "Repetitive spam pattern", fmt.Sprintf("%q repeated %d+ times", chunk, chunkRepetitions))
	}

	return FilterResult{}
}

func flagged(rule Rule, reason, details string) FilterResult {
	return FilterResult{Flagged: true, Reason: reason, Rule: rule, Details: details}
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// longestIdenticalRun ignores whitespace so paragraph breaks and indentation never count
func longestIdenticalRun(runes []rune) int {
	best, cur := 0, 0
	for i, r := range runes {
		if unicode.IsSpace(r) {
			cur = 0
			continue
		}
		if i > 0 && r == runes[i-1] {
			cur++
		} else {
			cur = 1
		}
		if cur > best {
			best = cur
		}
	}
	return best
}

func longestRun(runes []rune, match func(rune) bool) int {
	best, cur := 0, 0
	for _, r := range runes {
		if match(r) {
			cur++
			if cur > best {
				best = cur
			}
		} else {
			cur = 0
		}
	}
	return best
}

// repeatedChunk finds a 1-3 rune chunk repeated chunkRepetitions times in a row.
// A chunk of length L repeats k times when runes[j] == runes[j+L] holds for
// (k-1)*L consecutive positions, so each L costs one linear pass.
func repeatedChunk(runes []rune) (string, bool) {
	for l := 1; l <= maxChunk; l++ {
		need := (chunkRepetitions - 1) * l
		streak := 0
		for j := 0; j+l < len(runes); j++ {
			if runes[j] != runes[j+l] {
				streak = 0
				continue
			}
			streak++
			if streak >= need {
				start := j - need + 1
				chunk := runes[start : start+l]
				if !isBlank(chunk) {
					return string(chunk), true
				}
			}
		}
	}
	return "", false
}

func isBlank(chunk []rune) bool {
	for _, r := range chunk {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// mask hides the middle of a matched word so logs don't repeat it verbatim
func mask(w string) string {
	r := []rune(w)
	if len(r) <= 2 {
		return strings.Repeat("*", len(r))
	}
	return string(r[0]) + strings.Repeat("*", len(r)-2) + string(r[len(r)-1])
}
