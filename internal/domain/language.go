package domain

// Languages is the fixed set of supported translation languages.
var Languages = []string{"fr", "en", "es", "it", "de"}

func ValidLanguage(code string) bool {
	for _, l := range Languages {
		if l == code {
			return true
		}
	}
	return false
}
