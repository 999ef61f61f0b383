package similarity

import (
	"context"
	"strings"
)

// Lexical is the baseline backend: a Ratcliff/Obershelp sequence ratio over
// runes, with a containment shortcut for keyword-style features. No external
// dependencies, fully deterministic.
type Lexical struct{}

var _ Backend = Lexical{}

func NewLexical() Lexical {
	return Lexical{}
}

func (Lexical) Name() string { return "lexical" }

func (Lexical) Score(_ context.Context, a, b string) (float64, error) {
	na := normalize(a)
	nb := normalize(b)

	if na == "" || nb == "" {
		if na == nb {
			return 1.0, nil
		}
		return 0.0, nil
	}
	if na == nb {
		return 1.0, nil
	}

	// A short feature appearing verbatim inside an event description (or
	// vice versa) is a keyword hit and counts as a full match. Two runes
	// suffice for CJK terms; Latin words need a bit more length before
	// containment stops being accidental.
	if contained(na, nb) || contained(nb, na) {
		return 1.0, nil
	}

	return ratio([]rune(na), []rune(nb)), nil
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func contained(needle, haystack string) bool {
	runes := []rune(needle)
	minLen := 4
	for _, r := range runes {
		if r > 0x2E7F { // CJK and beyond
			minLen = 2
			break
		}
	}
	if len(runes) < minLen {
		return false
	}
	return strings.Contains(haystack, needle)
}

// ratio is difflib's 2*M/T measure: M is the total length of matching blocks
// found by recursive longest-common-substring, T the combined input length.
func ratio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingRunes(a, b)) / float64(total)
}

func matchingRunes(a, b []rune) int {
	ai, bi, size := longestCommonBlock(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchingRunes(a[:ai], b[:bi]) +
		matchingRunes(a[ai+size:], b[bi+size:])
}

func longestCommonBlock(a, b []rune) (int, int, int) {
	bestA, bestB, bestSize := 0, 0, 0

	// lengths[j] holds the length of the common suffix ending at a[i-1], b[j-1].
	lengths := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			cur := lengths[j]
			if a[i-1] == b[j-1] {
				lengths[j] = prev + 1
				if lengths[j] > bestSize {
					bestSize = lengths[j]
					bestA = i - bestSize
					bestB = j - bestSize
				}
			} else {
				lengths[j] = 0
			}
			prev = cur
		}
	}

	return bestA, bestB, bestSize
}
