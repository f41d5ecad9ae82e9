package invoice

import (
	"regexp"
	"strings"
)

// fencedBlock matches the first ```json ... ``` or ``` ... ``` block, non-greedy.
var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// invisibleChars are zero-width and formatting characters some model outputs
// inject; they break JSON decoding.
var invisibleChars = strings.NewReplacer(
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\u2060", "",
	"\ufeff", "",
	"\u00ad", "",
	"\u180e", "",
)

// StripFence returns the part of a model response meant to be parsed as JSON:
// the trimmed interior of the first fenced code block, or the trimmed response
// when there is no fence.
func StripFence(raw string) string {
	s := invisibleChars.Replace(raw)

	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}

	return strings.TrimSpace(s)
}
