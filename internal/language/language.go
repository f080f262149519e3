// Package language normalizes user supplied language codes to the ISO 639-2
// three letter form MP4Box expects in its lang= import option.
package language

import (
	"errors"
	"fmt"
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ErrUnknownLanguage reports input that is neither a known code nor a language name.
var ErrUnknownLanguage = errors.New("unknown language")

// Undetermined is the ISO 639-2 code for an unknown language.
const Undetermined = "und"

type entry struct {
	code3   string   // ISO 639-2/T (3-letter)
	alt3    string   // ISO 639-2/B alternate (e.g. "fre" vs "fra")
	display string   // Human-readable name
	words   []string // Full word forms (e.g. "english")
}

// Common languages whose bibliographic codes or English names users type
// directly. Everything else resolves through x/text.
var languages = []entry{
	{"eng", "", "English", []string{"english"}},
	{"spa", "", "Spanish", []string{"spanish", "castilian"}},
	{"fra", "fre", "French", []string{"french"}},
	{"deu", "ger", "German", []string{"german"}},
	{"ita", "", "Italian", []string{"italian"}},
	{"por", "", "Portuguese", []string{"portuguese"}},
	{"jpn", "", "Japanese", []string{"japanese"}},
	{"kor", "", "Korean", []string{"korean"}},
	{"zho", "chi", "Chinese", []string{"chinese"}},
	{"rus", "", "Russian", []string{"russian"}},
	{"ara", "", "Arabic", []string{"arabic"}},
	{"hin", "", "Hindi", []string{"hindi"}},
	{"nld", "dut", "Dutch", []string{"dutch", "flemish"}},
	{"pol", "", "Polish", []string{"polish"}},
	{"swe", "", "Swedish", []string{"swedish"}},
	{"dan", "", "Danish", []string{"danish"}},
	{"nor", "", "Norwegian", []string{"norwegian"}},
	{"fin", "", "Finnish", []string{"finnish"}},
	{"ces", "cze", "Czech", []string{"czech"}},
	{"ell", "gre", "Greek", []string{"greek"}},
	{"fas", "per", "Persian", []string{"persian", "farsi"}},
	{"ron", "rum", "Romanian", []string{"romanian"}},
	{"slk", "slo", "Slovak", []string{"slovak"}},
}

var (
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	if e, ok := byCode3[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	return nil
}

// Normalize converts a language code, BCP 47 tag, or English language name to
// its ISO 639-2/T code. Empty input stays empty so callers can omit the option.
func Normalize(code string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return "", nil
	}
	if code == Undetermined {
		return Undetermined, nil
	}
	if e := lookup(code); e != nil {
		return e.code3, nil
	}
	tag, err := xlanguage.Parse(code)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
	base, confidence := tag.Base()
	if confidence == xlanguage.No {
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
	iso3 := base.ISO3()
	if iso3 == "" || iso3 == Undetermined {
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
	if e := lookup(iso3); e != nil {
		return e.code3, nil
	}
	return iso3, nil
}

// ToISO3 is Normalize without the error: unrecognized input maps to "und".
func ToISO3(code string) string {
	normalized, err := Normalize(code)
	if err != nil || normalized == "" {
		return Undetermined
	}
	return normalized
}

// DisplayName returns a human-readable language name for any recognized code.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	normalized, err := Normalize(trimmed)
	if err != nil || normalized == Undetermined {
		return strings.ToUpper(trimmed)
	}
	if e := lookup(normalized); e != nil {
		return e.display
	}
	base, err := xlanguage.ParseBase(normalized)
	if err != nil {
		return strings.ToUpper(trimmed)
	}
	if name := display.English.Languages().Name(base); name != "" {
		return name
	}
	return strings.ToUpper(trimmed)
}
