package persistence

import "strings"

// bookingSortFields are the booking columns a caller may order by
var bookingSortFields = map[string]bool{
	"arrive":     true,
	"depart":     true,
	"status":     true,
	"created_at": true,
	"updated_at": true,
}

// orderClause builds an ORDER BY expression from caller input. Only listed
// columns are accepted, anything else falls back to def. Direction is ASC
// only when asked for, DESC otherwise.
func orderClause(field, dir string, allowed map[string]bool, def string) string {
	field = strings.ToLower(strings.TrimSpace(field))
	if !allowed[field] {
		field = def
	}
	if strings.EqualFold(strings.TrimSpace(dir), "asc") {
		return field + " ASC"
	}
	return field + " DESC"
}
