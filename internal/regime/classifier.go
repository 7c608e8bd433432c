// Package regime detects names that exist in parallel, rival-government
// versions and therefore must never be auto-created without adjudication.
package regime

import (
	"strings"

	"yeto/internal/normalize"
)

// splitKeywords is scoped to national-authority vocabulary only. It is never
// applied to multilateral or UN names, so well-known international bodies
// cannot false-positive. False negatives fail open to normal resolution.
var splitKeywords = []string{
	"central bank",
	"cby",
	"ministry of finance",
	"mof",
	"ministry of planning",
	"mopic",
	"customs",
	"tax authority",
}

// RequiresSplit reports whether the raw name matches a pattern known to exist
// in duplicate under rival governments (central banks, finance and planning
// ministries, customs, tax authority).
func RequiresSplit(rawName string) bool {
	normalized := normalize.Name(rawName)
	if normalized == "" {
		return false
	}
	for _, keyword := range splitKeywords {
		if containsToken(normalized, keyword) {
			return true
		}
	}
	return false
}

// containsToken matches keyword on token boundaries so that short acronyms
// like "mof" do not fire inside unrelated words.
func containsToken(normalized, keyword string) bool {
	if strings.Contains(keyword, " ") {
		return strings.Contains(" "+normalized+" ", " "+keyword+" ")
	}
	for _, field := range strings.Fields(normalized) {
		if field == keyword {
			return true
		}
	}
	return false
}
