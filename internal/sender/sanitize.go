package sender

import (
	"regexp"
	"strings"
)

const truncationMarker = "…"

// invisibleReplacer removes zero-width and directional formatting characters
// plus byte-order marks that break rendering on the chat channel.
var invisibleReplacer = strings.NewReplacer(
	"​", "", "‌", "",
	"‍", "", "⁠", "",
	"\uFEFF", "", "­", "",
	"‪", "", "‫", "",
	"‬", "", "‭", "", "‮", "",
)

// controlCharsRegex matches non-printable control characters, keeping \n and \t.
var controlCharsRegex = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// Sanitize strips invisible formatting characters and control characters
// from text destined for the outbound channel.
func Sanitize(input string) string {
	if input == "" {
		return ""
	}

	s := strings.ReplaceAll(input, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = invisibleReplacer.Replace(s)
	s = controlCharsRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Truncate limits text to maxLen runes, appending a truncation marker
// when content was cut.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= len([]rune(truncationMarker)) {
		return truncationMarker
	}
	return string(runes[:maxLen-1]) + truncationMarker
}
