package model

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Dedupe removes rows whose title matches an earlier row, ignoring case.
// The first row seen for a title is kept, with its original casing, and kept
// rows stay in input order. The input slice is not modified.
//
// Design decision: Titles are lowercased with x/text/cases rather than
// strings.ToLower because some recipe titles carry non-ASCII letters whose
// lowercase form depends on full Unicode case mapping.
func Dedupe(rows []RecipeRow) []RecipeRow {
	// A Caser keeps state, so each call gets its own.
	lower := cases.Lower(language.Und)
	seen := make(map[string]struct{}, len(rows))
	kept := make([]RecipeRow, 0, len(rows))

	for _, row := range rows {
		key := lower.String(row.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, row)
	}

	return kept
}
