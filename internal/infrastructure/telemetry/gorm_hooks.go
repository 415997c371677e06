package telemetry

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
)

type registrar func(name string, fn func(*gorm.DB)) error

// statementSite is one gorm processor with registrars on either side of its
// core step
type statementSite struct {
	step          string
	before, after registrar
}

func statementSites(db *gorm.DB) []statementSite {
	cb := db.Callback()
	return []statementSite{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
}

// hookStatements runs before ahead of every statement and the callback built
// by after(step) once it finished. Names are "<plugin>:before_<step>" and
// "<plugin>:after_<step>".
func hookStatements(db *gorm.DB, plugin string, before func(*gorm.DB), after func(step string) func(*gorm.DB)) error {
	for _, site := range statementSites(db) {
		if err := site.before(plugin+":before_"+site.step, before); err != nil {
			return err
		}
		if err := site.after(plugin+":after_"+site.step, after(site.step)); err != nil {
			return err
		}
	}
	return nil
}

type startedAtKey struct{}

// WithQueryStartTime stamps ctx with the current time
func WithQueryStartTime(ctx context.Context) context.Context {
	return context.WithValue(ctx, startedAtKey{}, time.Now())
}

// markStart is a before callback stamping the statement context
func markStart(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = WithQueryStartTime(ctx)
}

// queryElapsed is the time since markStart, if it ran
func queryElapsed(ctx context.Context) (time.Duration, bool) {
	if ctx == nil {
		return 0, false
	}
	started, ok := ctx.Value(startedAtKey{}).(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(started), true
}

// statementVerb names what a finished statement did. Row and raw statements
// are classified by their SQL.
func statementVerb(step string, db *gorm.DB) string {
	switch step {
	case "create":
		return "INSERT"
	case "query":
		return "SELECT"
	case "update":
		return "UPDATE"
	case "delete":
		return "DELETE"
	}
	return detectOperationType(db.Statement.SQL.String())
}

// detectOperationType reads the leading SQL verb
func detectOperationType(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, verb) {
			return verb
		}
	}
	return "OTHER"
}
