package utils

const DefaultTheme = "#007bff"

var themes = map[string]struct{}{
	"#007bff": {},
	"#28a745": {},
	"#ff69b4": {},
	"#800080": {},
}

// ThemeDisplayName returns the theme itself when it is one of the known
// colours and "default" otherwise.
func ThemeDisplayName(theme string) string {
	if _, ok := themes[theme]; ok {
		return theme
	}
	return "default"
}

func IsKnownTheme(theme string) bool {
	_, ok := themes[theme]
	return ok
}
