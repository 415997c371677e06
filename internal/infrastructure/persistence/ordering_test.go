package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderClause(t *testing.T) {
	tests := []struct {
		field, dir string
		want       string
	}{
		{"depart", "asc", "depart ASC"},
		{" Status ", " ASC ", "status ASC"},
		{"arrive", "", "arrive DESC"},
		{"", "asc", "arrive ASC"},
		{"rate", "asc", "arrive ASC"},
		{"arrive; DROP TABLE bills;--", "asc", "arrive ASC"},
		{"created_at", "asc; DELETE", "created_at DESC"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, orderClause(tt.field, tt.dir, bookingSortFields, "arrive"), "%q %q", tt.field, tt.dir)
	}
}
