package invoice

import (
	"regexp"
	"unicode/utf8"
)

// MaxFilenameLength bounds sanitized filenames, in characters.
const MaxFilenameLength = 100

var (
	unsafeFilenameChars = regexp.MustCompile(`[/\\:*?"<>|#%]`)
	whitespaceRun       = regexp.MustCompile(`[\s\v\p{Z}\x{0085}]+`)
)

// SanitizeFilename turns an arbitrary source filename into a storage-safe object name.
// Reserved characters become "-", whitespace runs become "_", and the result is
// truncated to MaxFilenameLength characters. Empty input yields empty output.
func SanitizeFilename(name string) string {
	s := unsafeFilenameChars.ReplaceAllString(name, "-")
	s = whitespaceRun.ReplaceAllString(s, "_")

	if utf8.RuneCountInString(s) <= MaxFilenameLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxFilenameLength])
}
