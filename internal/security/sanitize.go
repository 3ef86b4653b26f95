package security

import (
	"strings"
	"unicode"
)

// MaxTitleLength caps stored titles, in runes
const MaxTitleLength = 200

// SanitizeTitle cleans a title received from the network: invalid UTF-8 and
// control characters are dropped, whitespace runs collapse to one space and
// the result is capped at MaxTitleLength runes.
func SanitizeTitle(input string) string {
	input = strings.ToValidUTF8(input, "")

	var result strings.Builder
	space := false
	count := 0
	for _, r := range input {
		if unicode.IsSpace(r) {
			space = result.Len() > 0
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if count >= MaxTitleLength {
			break
		}
		if space {
			result.WriteRune(' ')
			count++
			space = false
			if count >= MaxTitleLength {
				break
			}
		}
		result.WriteRune(r)
		count++
	}

	return result.String()
}
