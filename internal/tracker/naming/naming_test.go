package naming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCleanStripsAddressing removes the trailing department/honorific
// clause a sender address line carries.
func TestCleanStripsAddressing(t *testing.T) {
	cases := map[string]string{
		"株式会社ミライ 採用担当":        "株式会社ミライ",
		"株式会社ミライ　新卒採用チーム 山田様": "株式会社ミライ",
		"ミライ商事 人事部":            "ミライ商事",
		"ミライ商事の採用課":            "ミライ商事",
		"「ミライ」御中":              "ミライ",
		"【重要】ミライ 各位":           "重要ミライ",
	}
	for raw, want := range cases {
		assert.Equal(t, want, Clean(raw), "input %q", raw)
	}
}

// TestCleanStripsAbbreviatedMarker removes （株） as a unit rather than
// leaving a stray 株 behind after bracket stripping.
func TestCleanStripsAbbreviatedMarker(t *testing.T) {
	assert.Equal(t, "ミライ", Clean("ミライ（株）"))
	assert.Equal(t, "ミライ", Clean("ミライ(株)"))
	assert.Equal(t, "ミライ", Clean("ミライ（株） 採用担当"))
}

// TestKeyStableUnderClean: the key of a stored (cleaned) display name
// matches the key of the raw input it came from, for every marker form.
func TestKeyStableUnderClean(t *testing.T) {
	raws := []string{"株式会社ミライ", "ミライ（株）", "ミライ(株)", "ミライ 採用担当", "「ミライ」御中"}
	for _, raw := range raws {
		assert.Equal(t, Key(raw), Key(Clean(raw)), "raw %q", raw)
	}
}

// TestCleanNormalizesWidthAndSpace folds full-width forms and collapses
// whitespace runs.
func TestCleanNormalizesWidthAndSpace(t *testing.T) {
	assert.Equal(t, "MIRAI Inc", Clean("　ＭＩＲＡＩ 　Ｉｎｃ　"))
}

// TestCleanCapsLength truncates runaway extractions at 50 runes.
func TestCleanCapsLength(t *testing.T) {
	long := strings.Repeat("あ", 80)
	assert.Equal(t, strings.Repeat("あ", 50), Clean(long))
}

// TestKeyEquality: display variants of the same company share one key.
func TestKeyEquality(t *testing.T) {
	base := Key("ミライ")
	assert.Equal(t, "ミライ", base)

	variants := []string{
		"株式会社ミライ",
		"ミライ（株）",
		"ミライ(株)",
		" ミライ 採用担当",
		"　ミライ　",
	}
	for _, v := range variants {
		assert.Equal(t, base, Key(v), "variant %q", v)
	}
}

// TestKeyLowercases keys for ASCII names.
func TestKeyLowercases(t *testing.T) {
	assert.Equal(t, "miraiinc", Key("MIRAI Inc"))
	assert.Equal(t, Key("mirai inc"), Key("ＭＩＲＡＩ　Ｉｎｃ"))
}

// TestIsBoilerplate flags greeting prose and empty names.
func TestIsBoilerplate(t *testing.T) {
	assert.True(t, IsBoilerplate(""))
	assert.True(t, IsBoilerplate("お世話になっております"))
	assert.True(t, IsBoilerplate("いつもありがとうございます"))
	assert.True(t, IsBoilerplate("ご連絡いたしました"))
	assert.True(t, IsBoilerplate("以下の日程でいかがでしょうか"))
	assert.False(t, IsBoilerplate("株式会社ミライ"))
}
