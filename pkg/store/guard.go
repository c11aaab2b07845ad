package store

import "strings"

// NormalizeText is the comparison key for goal texts: surrounding whitespace is
// dropped and case folded. Internal whitespace and punctuation are kept.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FindDuplicate returns the category of the first goal whose text matches text
// case-insensitively, scanning categories in display order. A goal whose ID is
// excludeID is skipped, which lets an edit keep its own text.
func FindDuplicate(text string, lists map[Category][]Goal, excludeID string) (Category, bool) {
	key := NormalizeText(text)
	if key == "" {
		return "", false
	}
	for _, c := range Categories {
		for _, g := range lists[c] {
			if excludeID != "" && g.ID == excludeID {
				continue
			}
			if NormalizeText(g.Text) == key {
				return c, true
			}
		}
	}
	return "", false
}
