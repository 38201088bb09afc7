package grading

import "strings"

// stripped is the fixed punctuation set removed before comparing
// identification answers.
const stripped = ".,/#!$%^&*;:{}=-_`~()"

// Normalize lowercases, trims and strips punctuation so that
// "Paris " and "paris!" compare equal.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if strings.ContainsRune(stripped, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
