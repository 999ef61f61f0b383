package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractEmptyNotes(t *testing.T) {
	e := New(0)

	assert.Empty(t, e.Extract(""))
	assert.Empty(t, e.Extract("   \n\t  "))
}

func TestExtractPatternTags(t *testing.T) {
	e := New(0)

	features := e.Extract("late marriage, career volatility, strong wealth in middle age")

	assert.Contains(t, features, "late marriage")
	assert.Contains(t, features, "career volatility")
	assert.Contains(t, features, "strong wealth")

	// Aliases ride along with their canonical tag.
	assert.Contains(t, features, "married late")
	assert.Contains(t, features, "changed jobs")
	assert.Contains(t, features, "inherited wealth")
}

func TestExtractCJKNotes(t *testing.T) {
	e := New(0)

	features := e.Extract("命主晚婚，早年留学海外")

	assert.Contains(t, features, "late marriage")
	assert.Contains(t, features, "overseas study")
	assert.Contains(t, features, "留学")

	// CJK runs surface as bigram fragments.
	assert.Contains(t, features, "晚婚")
}

func TestExtractStripsMarkup(t *testing.T) {
	e := New(0)

	features := e.Extract("<div><p>late   marriage</p></div>")

	assert.Contains(t, features, "late marriage")
	for _, f := range features {
		assert.NotContains(t, f, "<")
		assert.NotContains(t, f, "div")
	}
}

func TestExtractDeduplicates(t *testing.T) {
	e := New(0)

	features := e.Extract("wealth wealth wealth Wealth")

	seen := make(map[string]int)
	for _, f := range features {
		seen[strings.ToLower(f)]++
	}
	for f, n := range seen {
		assert.Equal(t, 1, n, "feature %q appeared %d times", f, n)
	}
}

func TestExtractFragmentCap(t *testing.T) {
	e := New(3)

	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("word")
		b.WriteByte(byte('a' + i%26))
		b.WriteByte(' ')
	}
	features := e.Extract(b.String())

	// No pattern matches here, so everything counts against the cap.
	assert.LessOrEqual(t, len(features), 3)
}

func TestExtractTagsExemptFromCap(t *testing.T) {
	e := New(1)

	features := e.Extract("late marriage and career volatility everywhere")

	assert.Contains(t, features, "late marriage")
	assert.Contains(t, features, "career volatility")
	assert.Greater(t, len(features), 2)
}
