package strings

import "strings"

// SuppySuffix returns text ending with suffix, appending suffix if missing.
func SuppySuffix(text, suffix string) string {
	if strings.HasSuffix(text, suffix) {
		return text
	}
	return text + suffix
}

// SplitIfNotEmpty is like strings.Split(s, sep), but returns an empty slice for "".
func SplitIfNotEmpty(s string, sep string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, sep)
}
