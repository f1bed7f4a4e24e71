package services

// Maps the catalog's language facet tags to the subdomain codes used by the
// localised API hosts. Tags missing here fall back to the world host.
var LanguageCodeMap = map[string]string{
	"en:arabic":     "ar",
	"en:chinese":    "zh",
	"en:czech":      "cs",
	"en:danish":     "da",
	"en:dutch":      "nl",
	"en:english":    "en",
	"en:finnish":    "fi",
	"en:french":     "fr",
	"en:german":     "de",
	"en:greek":      "el",
	"en:hungarian":  "hu",
	"en:italian":    "it",
	"en:japanese":   "ja",
	"en:korean":     "ko",
	"en:norwegian":  "nb",
	"en:polish":     "pl",
	"en:portuguese": "pt",
	"en:romanian":   "ro",
	"en:russian":    "ru",
	"en:spanish":    "es",
	"en:swedish":    "sv",
	"en:thai":       "th",
	"en:turkish":    "tr",
	"en:ukrainian":  "uk",
	"en:vietnamese": "vi",
}
