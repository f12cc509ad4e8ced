package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type entry struct {
	code2   string   // ISO 639-1 (2-letter)
	code3   string   // ISO 639-2/B as used by Matroska
	alt3    string   // ISO 639-2/T when it differs
	display string   // English name
	words   []string // names users type, lowercase
}

var languages = []entry{
	{"en", "eng", "", "English", []string{"english", "英语", "英文"}},
	{"es", "spa", "", "Spanish", []string{"spanish", "español", "西班牙语"}},
	{"fr", "fre", "fra", "French", []string{"french", "français", "法语"}},
	{"de", "ger", "deu", "German", []string{"german", "deutsch", "德语"}},
	{"it", "ita", "", "Italian", []string{"italian", "italiano", "意大利语"}},
	{"pt", "por", "", "Portuguese", []string{"portuguese", "português", "葡萄牙语"}},
	{"ja", "jpn", "", "Japanese", []string{"japanese", "日本語", "日语", "日文"}},
	{"ko", "kor", "", "Korean", []string{"korean", "한국어", "韩语"}},
	{"zh", "chi", "zho", "Chinese", []string{
		"chinese", "中文", "汉语", "普通话", "简体中文", "繁體中文", "繁体中文", "simplified chinese", "traditional chinese",
	}},
	{"ru", "rus", "", "Russian", []string{"russian", "русский", "俄语"}},
	{"ar", "ara", "", "Arabic", []string{"arabic", "العربية"}},
	{"hi", "hin", "", "Hindi", []string{"hindi", "हिन्दी"}},
	{"nl", "dut", "nld", "Dutch", []string{"dutch", "nederlands"}},
	{"pl", "pol", "", "Polish", []string{"polish", "polski"}},
	{"sv", "swe", "", "Swedish", []string{"swedish", "svenska"}},
	{"th", "tha", "", "Thai", []string{"thai", "ไทย"}},
	{"vi", "vie", "", "Vietnamese", []string{"vietnamese", "tiếng việt"}},
}

// scriptio continua: words are not separated by spaces.
var unspaced = map[string]bool{"zh": true, "ja": true, "th": true, "lo": true, "my": true, "km": true}

var (
	byCode map[string]*entry
	byWord map[string]*entry
)

func init() {
	byCode = make(map[string]*entry, len(languages)*3)
	byWord = make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		byCode[e.code2] = e
		byCode[e.code3] = e
		if e.alt3 != "" {
			byCode[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(name string) *entry {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}
	if e, ok := byCode[name]; ok {
		return e
	}
	return byWord[name]
}

// Resolve returns the BCP 47 tag for a language name or code, or
// language.Und when it cannot be recognized.
func Resolve(name string) language.Tag {
	if e := lookup(name); e != nil {
		return language.Make(e.code2)
	}
	tag, err := language.Parse(strings.TrimSpace(name))
	if err != nil {
		return language.Und
	}
	return tag
}

func base(name string) (language.Base, bool) {
	tag := Resolve(name)
	if tag == language.Und {
		return language.Base{}, false
	}
	b, conf := tag.Base()
	return b, conf != language.No
}

// ToISO2 converts a recognized language name or code to ISO 639-1. Unknown
// 2-letter input passes through; anything else unknown yields "".
func ToISO2(name string) string {
	code := strings.ToLower(strings.TrimSpace(name))
	if code == "" {
		return ""
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	if b, ok := base(code); ok && len(b.String()) == 2 {
		return b.String()
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// ToISO3 converts a recognized language name or code to the ISO 639-2 code
// Matroska expects. Returns "und" when the language is unknown.
func ToISO3(name string) string {
	code := strings.ToLower(strings.TrimSpace(name))
	if code == "" {
		return "und"
	}
	if e := lookup(code); e != nil {
		return e.code3
	}
	if b, ok := base(code); ok {
		return b.ISO3()
	}
	if len(code) == 3 {
		return code
	}
	return "und"
}

// DisplayName returns an English name for a language, "Unknown" for empty
// input, or the upper-cased input when nothing matches.
func DisplayName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "Unknown"
	}
	if e := lookup(trimmed); e != nil {
		return e.display
	}
	if tag := Resolve(trimmed); tag != language.Und {
		if n := display.English.Tags().Name(tag); n != "" {
			return n
		}
	}
	return strings.ToUpper(trimmed)
}

// SpaceDelimited reports whether words of the language are written with
// spaces between them. Unknown languages are assumed to be.
func SpaceDelimited(name string) bool {
	return !unspaced[ToISO2(name)]
}
