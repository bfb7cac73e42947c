// Package langmeta maps Minecraft locale codes (ja_jp, zh_cn, ...) to the
// display names used in prompts and CLI output.
package langmeta

import (
	"sort"
	"strings"
	"unicode"
)

// Meta describes one locale.
type Meta struct {
	Code   string
	Name   string // English name, used in prompts
	Native string
	// Scripts lists the writing systems that identify text already
	// written in this language. Empty for Latin-script languages.
	Scripts []*unicode.RangeTable
}

var (
	japanese = []*unicode.RangeTable{unicode.Hiragana, unicode.Katakana, unicode.Han}
	chinese  = []*unicode.RangeTable{unicode.Han}
	korean   = []*unicode.RangeTable{unicode.Hangul}
	cyrillic = []*unicode.RangeTable{unicode.Cyrillic}
)

// Registry holds the locales Minecraft ships resource packs for.
var Registry = map[string]Meta{
	"ja_jp": {Name: "Japanese", Native: "日本語", Scripts: japanese},
	"zh_cn": {Name: "Simplified Chinese", Native: "简体中文", Scripts: chinese},
	"zh_tw": {Name: "Traditional Chinese", Native: "繁體中文", Scripts: chinese},
	"zh_hk": {Name: "Traditional Chinese (Hong Kong)", Native: "繁體中文（香港）", Scripts: chinese},
	"ko_kr": {Name: "Korean", Native: "한국어", Scripts: korean},
	"ru_ru": {Name: "Russian", Native: "Русский", Scripts: cyrillic},
	"uk_ua": {Name: "Ukrainian", Native: "Українська", Scripts: cyrillic},
	"be_by": {Name: "Belarusian", Native: "Беларуская", Scripts: cyrillic},
	"bg_bg": {Name: "Bulgarian", Native: "Български", Scripts: cyrillic},
	"en_us": {Name: "English", Native: "English (US)"},
	"en_gb": {Name: "British English", Native: "English (UK)"},
	"de_de": {Name: "German", Native: "Deutsch"},
	"fr_fr": {Name: "French", Native: "Français"},
	"fr_ca": {Name: "Canadian French", Native: "Français (Canada)"},
	"es_es": {Name: "Spanish", Native: "Español"},
	"es_mx": {Name: "Mexican Spanish", Native: "Español (México)"},
	"it_it": {Name: "Italian", Native: "Italiano"},
	"pt_br": {Name: "Brazilian Portuguese", Native: "Português (Brasil)"},
	"pt_pt": {Name: "Portuguese", Native: "Português (Portugal)"},
	"nl_nl": {Name: "Dutch", Native: "Nederlands"},
	"pl_pl": {Name: "Polish", Native: "Polski"},
	"cs_cz": {Name: "Czech", Native: "Čeština"},
	"sv_se": {Name: "Swedish", Native: "Svenska"},
	"fi_fi": {Name: "Finnish", Native: "Suomi"},
	"da_dk": {Name: "Danish", Native: "Dansk"},
	"no_no": {Name: "Norwegian", Native: "Norsk"},
	"tr_tr": {Name: "Turkish", Native: "Türkçe"},
	"hu_hu": {Name: "Hungarian", Native: "Magyar"},
	"vi_vn": {Name: "Vietnamese", Native: "Tiếng Việt"},
	"id_id": {Name: "Indonesian", Native: "Bahasa Indonesia"},
	"th_th": {Name: "Thai", Native: "ไทย", Scripts: []*unicode.RangeTable{unicode.Thai}},
	"ar_sa": {Name: "Arabic", Native: "العربية", Scripts: []*unicode.RangeTable{unicode.Arabic}},
	"he_il": {Name: "Hebrew", Native: "עברית", Scripts: []*unicode.RangeTable{unicode.Hebrew}},
	"el_gr": {Name: "Greek", Native: "Ελληνικά", Scripts: []*unicode.RangeTable{unicode.Greek}},
}

// Canonicalize converts ja-JP, JA_jp and similar spellings to ja_jp.
func Canonicalize(lang string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(lang), "-", "_"))
}

// Resolve returns metadata for a locale code. A bare language ("ja")
// resolves to its first registered region. Unknown codes pass through
// with the code as name.
func Resolve(lang string) Meta {
	code := Canonicalize(lang)
	if m, ok := Registry[code]; ok {
		m.Code = code
		return m
	}
	base, _, _ := strings.Cut(code, "_")
	if base != "" {
		for _, c := range Codes() {
			if strings.HasPrefix(c, base+"_") {
				m := Registry[c]
				m.Code = c
				return m
			}
		}
	}
	return Meta{Code: code, Name: lang, Native: lang}
}

// Codes returns all registered codes in sorted order.
func Codes() []string {
	out := make([]string, 0, len(Registry))
	for c := range Registry {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// InScript reports whether s contains at least one rune of the locale's
// own script. Latin-script locales always report false.
func (m Meta) InScript(s string) bool {
	if len(m.Scripts) == 0 {
		return false
	}
	for _, r := range s {
		if unicode.In(r, m.Scripts...) {
			return true
		}
	}
	return false
}
