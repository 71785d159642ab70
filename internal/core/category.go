package core

import "strings"

const exchangeSuffix = " exchange"

// categorySynonyms maps alternate spellings to catalog keys. Values must be
// canonical themselves so that Normalize stays idempotent.
var categorySynonyms = map[string]string{
	"dried fruits":    "dried fruit",
	"fresh fruits":    "fresh fruit",
	"other vegetable": "other vegetables",
	"root vegetable":  "root vegetables",
	"leafy vegetable": "other vegetables",
	"misc free group": "free group",
	"juices":          "free group",
}

// Normalize canonicalizes a free-text category label. It never fails: labels
// with no synonym pass through lower-cased so they can still be stored.
func Normalize(raw string) string {
	c := strings.ToLower(strings.TrimSpace(raw))
	for strings.HasSuffix(c, exchangeSuffix) {
		c = strings.TrimSpace(strings.TrimSuffix(c, exchangeSuffix))
	}
	if canonical, ok := categorySynonyms[c]; ok {
		return canonical
	}
	return c
}
