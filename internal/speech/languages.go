package speech

// SupportedLanguages maps the language tags the assistant accepts to their
// display names. The names are shown in notices and the language picker.
var SupportedLanguages = map[string]string{
	"en-IN": "English",
	"hi-IN": "हिन्दी",
	"gu-IN": "ગુજરાતી",
	"bn-IN": "বাংলা",
	"mr-IN": "मराठी",
	"ta-IN": "தமிழ்",
	"te-IN": "తెలుగు",
	"kn-IN": "ಕನ್ನಡ",
	"ml-IN": "മലയാളം",
	"pa-IN": "ਪੰਜਾਬੀ",
	"ur-IN": "اردو",
}

// DefaultLanguage is the tag used when a session has not chosen a language.
const DefaultLanguage = "en-IN"

// IsSupported reports whether lang is a recognised language tag.
func IsSupported(lang string) bool {
	_, ok := SupportedLanguages[lang]
	return ok
}

// LanguageName returns the display name for lang, falling back to a generic
// phrase for unknown tags so notices always read naturally.
func LanguageName(lang string) string {
	if name, ok := SupportedLanguages[lang]; ok {
		return name
	}
	return "the selected language"
}
