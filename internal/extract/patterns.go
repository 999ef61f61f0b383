package extract

import "regexp"

// Pattern is one labeled life-domain signal. When its expression matches the
// chart notes, the extractor emits the canonical tag plus the aliases, so the
// lexical backend has phrasing variants to align life events against.
type Pattern struct {
	Name    string
	Expr    *regexp.Regexp
	Aliases []string
}

// patternLibrary covers the life domains the digitized annotations talk
// about. Expressions accept both the CJK shorthand the digitizer emits and
// English phrasing from translated notes.
var patternLibrary = []Pattern{
	{
		Name:    "weak maternal bond",
		Expr:    regexp.MustCompile(`母缘薄|克母|母早逝|幼年丧母|weak maternal|mother.{0,12}(died|passed|absent)`),
		Aliases: []string{"mother died early", "lost mother", "丧母"},
	},
	{
		Name:    "late marriage",
		Expr:    regexp.MustCompile(`晚婚|婚迟|late marriage|marri(ed|es) late`),
		Aliases: []string{"married late", "marriage late in life", "晚婚"},
	},
	{
		Name:    "career volatility",
		Expr:    regexp.MustCompile(`事业多变|职业动荡|驿马入官|career (volatility|instability|turbulence)|unstable career`),
		Aliases: []string{"changed jobs", "frequent job changes", "unstable career", "转职"},
	},
	{
		Name:    "strong wealth",
		Expr:    regexp.MustCompile(`财旺|财帛丰|武曲守财|strong wealth|wealth in middle age|财库`),
		Aliases: []string{"wealth", "inherited wealth", "wealth accumulation", "发财"},
	},
	{
		Name:    "health vulnerability",
		Expr:    regexp.MustCompile(`体弱|多病|疾厄|health (vulnerability|issues)|chronic illness`),
		Aliases: []string{"illness", "major illness", "injury", "病伤"},
	},
	{
		Name:    "overseas study",
		Expr:    regexp.MustCompile(`留学|海外求学|出国深造|overseas stud|study abroad`),
		Aliases: []string{"studied abroad", "overseas study", "留学"},
	},
	{
		Name:    "early loss",
		Expr:    regexp.MustCompile(`早逝|幼年丧|孤辰|early (loss|bereavement)`),
		Aliases: []string{"early loss", "bereavement", "去世"},
	},
	{
		Name:    "authority and leadership",
		Expr:    regexp.MustCompile(`官禄旺|掌权|紫微守命|leadership|authority|official rank`),
		Aliases: []string{"leadership role", "promoted", "掌权"},
	},
	{
		Name:    "itinerant life",
		Expr:    regexp.MustCompile(`驿马|奔波|迁移宫旺|itinerant|frequent relocation|constant travel`),
		Aliases: []string{"moved often", "relocation", "搬迁"},
	},
	{
		Name:    "partnership strain",
		Expr:    regexp.MustCompile(`夫妻宫弱|感情波折|孤鸾|partnership strain|troubled marriage|divorce`),
		Aliases: []string{"divorce", "separation", "marriage difficulty", "离婚"},
	},
}
