// Package extract implements the email field extractor: heuristic parsing
// of free-form Japanese/English recruiting-email text into an event type, a
// normalized date/time (or range), and a location. Extraction never fails;
// unmatched fields come back as empty strings and the caller decides what
// to do with the gaps.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// timeNow is swapped out in tests to pin year inference.
var timeNow = time.Now

// Fields is the structured result of extracting one email body.
type Fields struct {
	Event    string `json:"event"`
	Date     string `json:"date"`
	Location string `json:"location"`
}

// Extract parses raw email text. The text is NFKC-normalized first so
// full-width digits and punctuation match their half-width forms.
func Extract(text string) Fields {
	src := norm.NFKC.String(text)

	date := ""
	for _, parse := range dateParsers {
		if date = parse(src); date != "" {
			break
		}
	}

	return Fields{
		Event:    matchRules(eventRules, src),
		Date:     date,
		Location: matchRules(locationRules, src),
	}
}

/* ---------- date/time ---------- */

// Two competing pattern families in priority order: numeric-slash style
// first, then kanji style. First non-empty result wins.
var dateParsers = []func(string) string{
	parseSlashDateTimeRange,
	parseKanjiDateTimeRange,
}

// e.g. "2025/07/03 13:30 - 15:00", "7-3 13:30〜15:00", "7.3 9:00"
var slashDateRe = regexp.MustCompile(
	`(?i)(?:(\d{2,4})[/\-.年]\s*)?(\d{1,2})[/\-.月]\s*(\d{1,2})\s*日?\s*` +
		`(?:（[^）]*）|\([^)]*\))?\s*(AM|PM|午前|午後)?\s*(\d{1,2}):(\d{2})\s*` +
		`(?:[〜～\-~ー—–]\s*(AM|PM|午前|午後)?\s*(\d{1,2}):(\d{2}))?`)

func parseSlashDateTimeRange(src string) string {
	m := slashDateRe.FindStringSubmatch(src)
	if m == nil {
		return ""
	}
	month := atoi(m[2])
	day := atoi(m[3])
	sh := to24h(atoi(m[5]), m[4])
	sm := atoi(m[6])

	year := 0
	if m[1] != "" {
		year = toFourDigitYear(atoi(m[1]))
	} else {
		year = inferYear(month, day)
	}

	start := ymdhm(year, month, day, sh, sm)
	if m[8] == "" {
		return start
	}
	// End time shares the start's calendar day; multi-day ranges are not
	// representable.
	eh := to24h(atoi(m[8]), m[7])
	em := atoi(m[9])
	return start + " 〜 " + ymdhm(year, month, day, eh, em)
}

// e.g. "7月3日（木） 13時30分〜15時", "午後1時〜2時" (with a preceding M月D日)
var kanjiDateRe = regexp.MustCompile(
	`(\d{1,2})月(\d{1,2})日(?:（[^）]*）|\([^)]*\))?\s*(午前|午後)?\s*(\d{1,2})\s*時` +
		`(?:\s*(\d{1,2})\s*分?)?\s*[〜～\-~ー—–]*\s*` +
		`(?:(午前|午後)?\s*(\d{1,2})\s*時(?:\s*(\d{1,2})\s*分?)?)?`)

func parseKanjiDateTimeRange(src string) string {
	m := kanjiDateRe.FindStringSubmatch(src)
	if m == nil {
		return ""
	}
	month := atoi(m[1])
	day := atoi(m[2])
	sh := to24h(atoi(m[4]), m[3])
	sm := 0
	if m[5] != "" {
		sm = atoi(m[5])
	}
	year := inferYear(month, day)

	start := ymdhm(year, month, day, sh, sm)
	if m[7] == "" {
		return start
	}
	eh := to24h(atoi(m[7]), m[6])
	em := 0
	if m[8] != "" {
		em = atoi(m[8])
	}
	return start + " 〜 " + ymdhm(year, month, day, eh, em)
}

// to24h converts a 12-hour value with an AM/PM or 午前/午後 marker to
// 24-hour form. Without a marker the hour is passed through untouched.
func to24h(h int, ampm string) int {
	if ampm == "" {
		return h
	}
	switch strings.ToLower(ampm) {
	case "pm", "午後":
		if h == 12 {
			return 12
		}
		return h + 12
	case "am", "午前":
		if h == 12 {
			return 0
		}
	}
	return h
}

// inferYear picks this year unless the date (at local midnight) falls
// before yesterday, in which case next year. The one-day buffer absorbs
// timezone and rounding edges.
func inferYear(month, day int) int {
	now := timeNow()
	y := now.Year()
	candidate := time.Date(y, time.Month(month), day, 0, 0, 0, 0, time.Local)
	if candidate.Add(24 * time.Hour).Before(now) {
		return y + 1
	}
	return y
}

func toFourDigitYear(y int) int {
	if y < 100 {
		return 2000 + y
	}
	return y
}

func ymdhm(y, m, d, hh, mm int) string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d", y, m, d, hh, mm)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

/* ---------- location & event type ---------- */

// rule pairs a pattern with the label it produces. Rule lists are evaluated
// in order, first match wins, so priority is data, not code order.
type rule struct {
	re    *regexp.Regexp
	label string
}

func matchRules(rules []rule, src string) string {
	for _, r := range rules {
		if r.re.MatchString(src) {
			return r.label
		}
	}
	return ""
}

// Explicit video platforms outrank generic in-person keywords, which
// outrank generic online keywords.
var locationRules = []rule{
	{regexp.MustCompile(`(?i)Teams`), "Teams"},
	{regexp.MustCompile(`(?i)Zoom`), "Zoom"},
	{regexp.MustCompile(`(?i)Google\s*Meet`), "Google Meet"},
	{regexp.MustCompile(`対面|会場|本社|支社|オフィス|会議室`), "対面"},
	{regexp.MustCompile(`オンライン|Web\s*面接`), "オンライン"},
}

// Most specific first: final round beats numbered rounds beats generic
// 面接, then the non-interview categories.
var eventRules = []rule{
	{regexp.MustCompile(`最終面接`), "最終面接"},
	{regexp.MustCompile(`(?:一次|1次).{0,5}面接|面接.{0,5}(?:一次|1次)`), "一次面接"},
	{regexp.MustCompile(`(?:二次|2次).{0,5}面接|面接.{0,5}(?:二次|2次)`), "二次面接"},
	{regexp.MustCompile(`(?:三次|3次).{0,5}面接|面接.{0,5}(?:三次|3次)`), "三次面接"},
	{regexp.MustCompile(`面接`), "面接"},
	{regexp.MustCompile(`面談|カジュアル`), "面談"},
	{regexp.MustCompile(`説明会`), "説明会"},
	{regexp.MustCompile(`(?i)グループ.?ディスカッション|GD`), "グループディスカッション"},
	{regexp.MustCompile(`(?i)web.?テスト|webtest|適性|spi|玉手箱|筆記|学力テスト`), "Webテスト"},
}
