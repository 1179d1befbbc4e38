package gateway

import "strings"

// DefaultInvalidMarkers are the phrases the vision prompt asks the model to
// answer with when the photo is not a coffee cup, or when it cannot tell.
var DefaultInvalidMarkers = []string{
	"NOT_A_COFFEE_CUP",
	"UNSURE_COFFEE_CUP",
}

// InvalidSubject reports whether text contains any marker, ignoring case.
func InvalidSubject(text string, markers []string) bool {
	upper := strings.ToUpper(text)
	for _, m := range markers {
		if m = strings.TrimSpace(m); m != "" && strings.Contains(upper, strings.ToUpper(m)) {
			return true
		}
	}
	return false
}
