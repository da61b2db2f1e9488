package pipeline

import "regexp"

// pathLike matches filesystem-path-looking substrings: at least one
// separator followed by a final element.
var pathLike = regexp.MustCompile(`(?:[A-Za-z]:)?(?:[\w~.-]*[\\/])+([\w.-]+)`)

// redact reduces file paths in error text to their base names, so stack
// traces and wrapped I/O errors never leak the host's directory layout
// into stored status records.
func redact(text string) string {
	return pathLike.ReplaceAllString(text, "$1")
}
