// Package stage defines the canonical pipeline stage vocabulary, the
// synonym folding that maps raw labels onto it, and the ordering logic used
// to snap extracted events onto a company's interview flow.
package stage

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Vocabulary is the fixed ordered list of canonical stages. A stage's index
// here is its rank, used for "later than" comparisons and nearest-match
// snapping.
var Vocabulary = []string{
	"エントリー",
	"説明会",
	"書類選考",
	"Webテスト",
	"面談",
	"グループディスカッション",
	"一次面接",
	"二次面接",
	"三次面接",
	"最終面接",
	"内定",
}

// synonym maps a raw-label pattern (matched against the folded form) to its
// canonical stage. Order matters: first match wins.
type synonym struct {
	re    *regexp.Regexp
	canon string
}

var synonyms = []synonym{
	{regexp.MustCompile(`entry|エントリ`), "エントリー"},
	{regexp.MustCompile(`説明会`), "説明会"},
	{regexp.MustCompile(`書類`), "書類選考"},
	{regexp.MustCompile(`web.?テスト|webtest|適性|spi|玉手箱|筆記|学力`), "Webテスト"},
	{regexp.MustCompile(`面談|カジュアル`), "面談"},
	{regexp.MustCompile(`グループ.?ディスカッション|gd`), "グループディスカッション"},
	{regexp.MustCompile(`(?:一次|1次).*面接|面接.*(?:一次|1次)`), "一次面接"},
	{regexp.MustCompile(`(?:二次|2次).*面接|面接.*(?:二次|2次)`), "二次面接"},
	{regexp.MustCompile(`(?:三次|3次).*面接|面接.*(?:三次|3次)`), "三次面接"},
	{regexp.MustCompile(`最終.*面接|面接.*最終|final`), "最終面接"},
	{regexp.MustCompile(`内々定|内定`), "内定"},
}

var (
	spaceRe = regexp.MustCompile(`\s+`)
	splitRe = regexp.MustCompile(`(?:->|→|＞|>|、|,|\r?\n)`)
)

// fold prepares a raw label for synonym matching: NFKC, strip whitespace,
// lowercase.
func fold(raw string) string {
	s := norm.NFKC.String(strings.TrimSpace(raw))
	s = spaceRe.ReplaceAllString(s, "")
	return strings.ToLower(s)
}

// Canonicalize maps a raw stage label to its canonical category.
// Unrecognized labels pass through trimmed but otherwise unchanged.
func Canonicalize(raw string) string {
	s := fold(raw)
	for _, syn := range synonyms {
		if syn.re.MatchString(s) {
			return syn.canon
		}
	}
	return strings.TrimSpace(raw)
}

// Rank returns the zero-based vocabulary index of the label's canonical
// category. Unknown labels rank 0, the same as the first canonical stage:
// two distinct unknown labels are indistinguishable by rank.
func Rank(label string) int {
	cat := Canonicalize(label)
	for i, s := range Vocabulary {
		if s == cat {
			return i
		}
	}
	return 0
}

// ParseFlow splits an "A -> B -> C" flow string into its stage labels.
// Arrows, commas, Japanese separators and newlines all delimit.
func ParseFlow(flow string) []string {
	if flow == "" {
		return nil
	}
	var stages []string
	for _, part := range splitRe.Split(flow, -1) {
		if s := strings.TrimSpace(part); s != "" {
			stages = append(stages, s)
		}
	}
	return stages
}

// Snap maps a proposed stage label onto the flow. Exact canonical-category
// matches win, first in flow order; otherwise the flow stage with the
// smallest rank distance from the proposal, earliest position breaking ties.
// With no flow the trimmed proposal is returned as-is.
func Snap(flow []string, proposal string) string {
	if len(flow) == 0 {
		return strings.TrimSpace(proposal)
	}
	targetCat := Canonicalize(proposal)
	for _, s := range flow {
		if Canonicalize(s) == targetCat {
			return s
		}
	}

	targetRank := Rank(proposal)
	best := flow[0]
	bestDiff := absDiff(Rank(flow[0]), targetRank)
	for _, s := range flow[1:] {
		if diff := absDiff(Rank(s), targetRank); diff < bestDiff {
			best = s
			bestDiff = diff
		}
	}
	return best
}

// NextInFlow returns the stage that follows current in the flow. An empty
// current yields the first stage. When current is not in the flow by
// canonical equality, the first stage ranked later than it is used, or the
// flow's first stage if none is. The pipeline does not overflow past its
// last stage.
func NextInFlow(flow []string, current string) string {
	if len(flow) == 0 {
		return ""
	}
	cur := strings.TrimSpace(current)
	if cur == "" {
		return flow[0]
	}

	idx := -1
	curCat := Canonicalize(cur)
	for i, s := range flow {
		if Canonicalize(s) == curCat {
			idx = i
			break
		}
	}
	if idx < 0 {
		curRank := Rank(cur)
		for _, s := range flow {
			if Rank(s) > curRank {
				return s
			}
		}
		return flow[0]
	}
	if idx+1 < len(flow) {
		return flow[idx+1]
	}
	return flow[idx]
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
