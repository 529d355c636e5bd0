package notify

import "strings"

// NormalizePhone formats a guardian contact number as a Philippine mobile
// number the SMS provider accepts:
//   - non-digits are stripped
//   - a leading "63" country code is removed
//   - "09..." numbers pass through
//   - bare 10-digit numbers starting with "9" gain a leading "0"
//   - anything else defaults to a leading "0"
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if strings.HasPrefix(digits, "63") {
		digits = digits[2:]
	}
	switch {
	case strings.HasPrefix(digits, "09"):
		return digits
	case len(digits) == 10 && strings.HasPrefix(digits, "9"):
		return "0" + digits
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		return digits
	default:
		return "0" + digits
	}
}
