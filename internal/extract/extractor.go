// Package extract turns a chart's free-text annotation into the FeatureSet
// the similarity pipeline scores life events against.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/lynkerai/truechart/pkg/logger"
)

// DefaultMaxFragments bounds the raw phrase fragments per chart; canonical
// pattern tags are always emitted on top of this budget.
const DefaultMaxFragments = 50

var whitespaceRE = regexp.MustCompile(`\s+`)

// Extractor is a pure function of the input text; it holds no per-chart state.
type Extractor struct {
	maxFragments int
}

func New(maxFragments int) *Extractor {
	if maxFragments <= 0 {
		maxFragments = DefaultMaxFragments
	}
	return &Extractor{maxFragments: maxFragments}
}

// Extract returns the union of canonical pattern tags and deduplicated raw
// phrase fragments. Empty or missing notes yield an empty set; downstream
// scoring degrades to zero instead of failing.
func (e *Extractor) Extract(notes string) []string {
	text := cleanNotes(notes)
	if text == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var features []string

	add := func(f string) {
		f = strings.TrimSpace(f)
		if f == "" {
			return
		}
		key := strings.ToLower(f)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		features = append(features, f)
	}

	lower := strings.ToLower(text)
	for _, p := range patternLibrary {
		if !p.Expr.MatchString(lower) && !p.Expr.MatchString(text) {
			continue
		}
		add(p.Name)
		for _, alias := range p.Aliases {
			add(alias)
		}
	}

	fragments := 0
	for _, frag := range phraseFragments(text) {
		if fragments >= e.maxFragments {
			break
		}
		before := len(features)
		add(frag)
		if len(features) > before {
			fragments++
		}
	}

	logger.Debug("Features extracted",
		zap.Int("count", len(features)),
		zap.Int("fragments", fragments),
	)

	return features
}

// cleanNotes strips any markup the digitizer left behind and collapses
// whitespace. Plain-text notes pass through unchanged.
func cleanNotes(notes string) string {
	text := strings.TrimSpace(notes)
	if text == "" {
		return ""
	}

	if strings.ContainsRune(text, '<') {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			if stripped := strings.TrimSpace(doc.Text()); stripped != "" {
				text = stripped
			}
		}
	}

	return strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
}

// phraseFragments tokenizes the cleaned notes: prose handles the
// space-delimited script, and contiguous CJK runs are split into the run
// itself plus its bigrams, which is how multi-character terms surface in
// annotations without word boundaries.
func phraseFragments(text string) []string {
	var fragments []string

	for _, run := range cjkRuns(text) {
		fragments = append(fragments, run)
		runes := []rune(run)
		for i := 0; i+2 <= len(runes); i++ {
			fragments = append(fragments, string(runes[i:i+2]))
		}
	}

	latin := strings.TrimSpace(nonCJK(text))
	if latin == "" {
		return fragments
	}

	tokens := latinTokens(latin)
	for _, tok := range tokens {
		if len([]rune(tok)) >= 3 {
			fragments = append(fragments, strings.ToLower(tok))
		}
	}

	return fragments
}

func latinTokens(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		logger.Warn("Tokenizer failed, falling back to whitespace split", zap.Error(err))
		return strings.Fields(text)
	}

	var tokens []string
	for _, tok := range doc.Tokens() {
		tokens = append(tokens, tok.Text)
	}
	return tokens
}

func cjkRuns(text string) []string {
	var runs []string
	var current []rune

	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			current = append(current, r)
			continue
		}
		if len(current) >= 2 {
			runs = append(runs, string(current))
		}
		current = current[:0]
	}
	if len(current) >= 2 {
		runs = append(runs, string(current))
	}

	return runs
}

func nonCJK(text string) string {
	var b strings.Builder
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
