package parser

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

var (
	langEnglish            = language.English
	langJapanese           = language.Japanese
	langTraditionalChinese = language.MustParse("zh-TW")
	langSimplifiedChinese  = language.MustParse("zh-CN")
)

// DetectLanguage classifies the query language with character-set heuristics:
// kana implies Japanese, Han without kana implies Chinese, and the two
// Chinese scripts are split by small indicator character sets with
// Traditional as the ambiguous default. Text without CJK falls back to
// English.
func DetectLanguage(text string) language.Tag {
	hasHan := false
	hasKana := false
	for _, r := range text {
		switch {
		case unicode.In(r, unicode.Hiragana, unicode.Katakana):
			hasKana = true
		case unicode.Is(unicode.Han, r):
			hasHan = true
		}
	}

	if hasKana {
		return langJapanese
	}
	if !hasHan {
		return langEnglish
	}

	simplified := 0
	traditional := 0
	for _, r := range text {
		if strings.ContainsRune(simplifiedIndicators, r) {
			simplified++
		}
		if strings.ContainsRune(traditionalIndicators, r) {
			traditional++
		}
	}
	if simplified > traditional {
		return langSimplifiedChinese
	}
	return langTraditionalChinese
}
