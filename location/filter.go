package location

import "strings"

// Matches reports whether the record's title or description contains query,
// ignoring case. An empty query matches every record; an empty description
// never matches a non-empty query.
func Matches(r Record, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(r.Title), q) {
		return true
	}
	return r.Description != "" && strings.Contains(strings.ToLower(r.Description), q)
}

// Filter returns the records matching query, in their original order
func Filter(records []Record, query string) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if Matches(r, query) {
			out = append(out, r)
		}
	}
	return out
}
