// Package compat scores categorical agreement between two charts. It is a
// pure comparison over a fixed set of palace fields and is independent of
// the life-event verification pipeline.
package compat

import (
	"github.com/lynkerai/truechart/internal/storage/models"
)

// compareFields is the fixed comparison set, in reporting order.
var compareFields = []string{"ziwei_palace", "main_star", "shen_palace"}

// Score compares two charts field by field with exact string equality.
// A field absent on either side never counts as agreement. The tier mapping
// is 3 matches = 100, 2 = 70, 1 = 40, 0 = 0.
func Score(a, b *models.Chart) models.CompatibilityScore {
	matching := make([]string, 0, len(compareFields))
	for _, f := range compareFields {
		av, bv := a.Field(f), b.Field(f)
		if av != "" && av == bv {
			matching = append(matching, f)
		}
	}

	var score int
	switch len(matching) {
	case 3:
		score = 100
	case 2:
		score = 70
	case 1:
		score = 40
	default:
		score = 0
	}

	return models.CompatibilityScore{
		ChartAID:       a.ID,
		ChartBID:       b.ID,
		Score:          score,
		MatchingFields: matching,
		Comment:        comment(matching),
	}
}

// comment picks a fixed interpretation line for the matching-field
// combination. The strings are templates, not generated text.
func comment(matching []string) string {
	has := func(name string) bool {
		for _, f := range matching {
			if f == name {
				return true
			}
		}
		return false
	}

	switch {
	case has("ziwei_palace") && has("shen_palace"):
		return "你们的紫微宫与身宫皆同，命格气场共振，容易成为灵魂伴侣或事业拍档。"
	case has("ziwei_palace"):
		return "你们的紫微宫相同，代表人生舞台、格局相似，容易共鸣。"
	case has("shen_palace"):
		return "你们的身宫相同，说明性格节奏与生活方式接近，易产生亲和力。"
	case has("main_star"):
		return "主星相同，思想模式与应变方式类似。"
	default:
		return "气场略有差异，但仍可能互补成长。"
	}
}
