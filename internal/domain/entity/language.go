package entity

// Language is one entry of the marketplace language catalog.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"` // endonym, shown in signup/preference UIs
}

// SupportedLanguages is the fixed catalog a user may pick a preferred
// language from: ten Indian languages plus English.
var SupportedLanguages = []Language{
	{Code: "en", Name: "English"},
	{Code: "hi", Name: "हिन्दी"},
	{Code: "bn", Name: "বাংলা"},
	{Code: "ta", Name: "தமிழ்"},
	{Code: "te", Name: "తెలుగు"},
	{Code: "mr", Name: "मराठी"},
	{Code: "gu", Name: "ગુજરાતી"},
	{Code: "kn", Name: "ಕನ್ನಡ"},
	{Code: "ml", Name: "മലയാളം"},
	{Code: "pa", Name: "ਪੰਜਾਬੀ"},
	{Code: "or", Name: "ଓଡ଼ିଆ"},
}

// IsSupportedLanguage reports whether code is in the catalog.
func IsSupportedLanguage(code string) bool {
	for _, l := range SupportedLanguages {
		if l.Code == code {
			return true
		}
	}
	return false
}
