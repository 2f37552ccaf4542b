package ingest

import (
	"fmt"
	"strings"
	"unicode"
)

// Storage keywords a normalized column name must not collide with.
var reservedKeywords = map[string]bool{
	"abort": true, "action": true, "add": true, "all": true, "alter": true,
	"and": true, "as": true, "asc": true, "between": true, "by": true,
	"case": true, "check": true, "column": true, "commit": true,
	"constraint": true, "create": true, "cross": true, "default": true,
	"delete": true, "desc": true, "distinct": true, "drop": true,
	"else": true, "end": true, "escape": true, "except": true,
	"exists": true, "foreign": true, "from": true, "full": true,
	"group": true, "having": true, "in": true, "index": true,
	"inner": true, "insert": true, "intersect": true, "into": true,
	"is": true, "join": true, "key": true, "left": true, "like": true,
	"limit": true, "not": true, "null": true, "offset": true, "on": true,
	"or": true, "order": true, "outer": true, "primary": true,
	"references": true, "right": true, "rollback": true, "select": true,
	"set": true, "table": true, "then": true, "to": true,
	"transaction": true, "union": true, "unique": true, "update": true,
	"using": true, "values": true, "when": true, "where": true,
}

const reservedSuffix = "_col"

// normalizeName applies the per-column rules: trim, whitespace runs to a
// single underscore, strip anything outside letters/digits/underscore,
// collapse repeated underscores, strip edge underscores. The empty-name,
// keyword and duplicate rules are applied by NormalizeColumns, which sees
// the whole header.
func normalizeName(name string) string {
	name = strings.TrimSpace(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	name = b.String()

	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return strings.Trim(name, "_")
}

// NormalizeColumns turns original header names into storage-safe,
// dataset-unique identifiers and returns them alongside the
// original-to-normalized mapping. The mapping is keyed by the original
// header text; a repeated original header maps to its first normalization.
func NormalizeColumns(originals []string) ([]string, map[string]string) {
	normalized := make([]string, len(originals))
	mapping := make(map[string]string, len(originals))
	used := make(map[string]bool, len(originals))

	for i, original := range originals {
		name := normalizeName(original)

		if name == "" || unicode.IsDigit(firstRune(name)) {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if reservedKeywords[strings.ToLower(name)] {
			name += reservedSuffix
		}

		if used[strings.ToLower(name)] {
			base := name
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s_%d", base, n)
				if !used[strings.ToLower(candidate)] {
					name = candidate
					break
				}
			}
		}
		used[strings.ToLower(name)] = true

		normalized[i] = name
		if _, seen := mapping[original]; !seen {
			mapping[original] = name
		}
	}
	return normalized, mapping
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}
