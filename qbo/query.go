package qbo

import (
	"fmt"
	"strings"
)

// QBO query language only understands single-quoted string literals.
// Embedded quotes are escaped by backslash per the API docs.
func escapeQueryValue(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return escaped
}

// BuildSelectByName builds the exact-match lookup used by identity
// resolution. Pagination is expressed inside the query text.
func BuildSelectByName(entity string, displayName string, startPosition int, maxResults int) string {
	if startPosition < 1 {
		startPosition = 1
	}
	if maxResults < 1 {
		maxResults = 1
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE DisplayName = '%s' STARTPOSITION %d MAXRESULTS %d",
		entity, escapeQueryValue(displayName), startPosition, maxResults)
}
