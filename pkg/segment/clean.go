package segment

import (
	"regexp"
	"strings"
)

var (
	reEmoji = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}]+`)
	// Anything that is neither a CJK unified ideograph nor whitelisted punctuation.
	reNotChinese = regexp.MustCompile(`[^\x{4e00}-\x{9fa5}，。！？、；："'’‘（）《》【】]`)
	reAlnum      = regexp.MustCompile(`[a-zA-Z0-9]`)
	reSpace      = regexp.MustCompile(`\s+`)
)

// Clean reduces review text to Chinese ideographs and a small set of
// punctuation. Chinese double quotes are not in that set.
// Values that are not strings (nil, numbers, a nil *string) clean to "".
func Clean(v any) string {
	switch s := v.(type) {
	case string:
		return CleanString(s)
	case *string:
		if s == nil {
			return ""
		}
		return CleanString(*s)
	default:
		return ""
	}
}

// CleanString removes emoji, then every rune outside the allowed set, then
// ASCII letters and digits, then whitespace. The result is stable under a
// second application.
func CleanString(s string) string {
	s = reEmoji.ReplaceAllString(s, "")
	s = reNotChinese.ReplaceAllString(s, "")
	s = reAlnum.ReplaceAllString(s, "")
	s = reSpace.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
