package catalog

import (
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// LanguageInfo pairs an ISO 639-1 code with its English display name.
type LanguageInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// AutoLanguage requests language auto-detection.
const AutoLanguage = "auto"

// DefaultLanguage is used when a request omits the language field.
const DefaultLanguage = AutoLanguage

// Whisper supports far more, but the service exposes a fixed table so that
// validation stays deterministic across backend versions.
var languageCodes = []string{
	"en", "es", "fr", "de", "it", "pt", "nl", "pl", "ru", "uk",
	"ja", "zh", "ko", "ar", "hi", "tr", "vi", "th", "id", "ms",
	"sv", "da", "no", "fi", "cs", "sk", "ro", "hu", "el", "he",
	"bg", "hr", "sr", "sl", "lt", "lv", "et", "ca", "gl", "eu",
	"cy", "af", "sw", "ta", "te", "ml", "bn", "ur", "fa",
}

var (
	languages   []LanguageInfo
	languageSet map[string]struct{}
)

func init() {
	namer := display.English.Languages()
	languages = make([]LanguageInfo, 0, len(languageCodes)+1)
	languages = append(languages, LanguageInfo{Code: AutoLanguage, Name: "Auto-detect"})
	languageSet = make(map[string]struct{}, len(languageCodes)+1)
	languageSet[AutoLanguage] = struct{}{}
	for _, code := range languageCodes {
		tag, err := language.Parse(code)
		if err != nil {
			continue
		}
		languages = append(languages, LanguageInfo{Code: code, Name: namer.Name(tag)})
		languageSet[code] = struct{}{}
	}
}

// Languages returns the ordered language table, auto-detect first.
func Languages() []LanguageInfo {
	cp := make([]LanguageInfo, len(languages))
	copy(cp, languages)
	return cp
}

// IsLanguage reports whether code is "auto" or a supported ISO 639-1 code.
func IsLanguage(code string) bool {
	_, ok := languageSet[code]
	return ok
}
