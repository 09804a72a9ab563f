package sanitize

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
)

// DefaultTables are the tables the service owns.
const DefaultTables = "uploads,expenses"

var nameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParseTables splits a comma-separated list and drops names that are not
// plain identifiers.
func ParseTables(list string) []string {
	var out []string
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !nameRe.MatchString(p) {
			log.Printf("warning: skipping invalid table name '%s'", p)
			continue
		}
		out = append(out, p)
	}
	return out
}

// TruncateStatement builds the TRUNCATE for already validated names.
func TruncateStatement(tables []string) string {
	quoted := make([]string, 0, len(tables))
	for _, t := range tables {
		quoted = append(quoted, fmt.Sprintf("\"%s\"", t))
	}
	return fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(quoted, ", "))
}

// ExistingTables keeps the names that exist in the public schema.
func ExistingTables(ctx context.Context, gdb *gorm.DB, wanted []string) ([]string, error) {
	var existing []string
	for _, t := range wanted {
		var cnt int64
		if err := gdb.WithContext(ctx).Raw("SELECT count(*) FROM pg_tables WHERE schemaname = 'public' AND tablename = ?", t).Scan(&cnt).Error; err != nil {
			return nil, fmt.Errorf("query pg_tables for %s: %w", t, err)
		}
		if cnt > 0 {
			existing = append(existing, t)
		} else {
			log.Printf("info: table %s not found, skipping", t)
		}
	}
	return existing, nil
}

// Truncate empties tables.
func Truncate(ctx context.Context, gdb *gorm.DB, tables []string) error {
	if len(tables) == 0 {
		return nil
	}
	stmt := TruncateStatement(tables)
	log.Printf("Executing: %s", stmt)
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := gdb.WithContext(ctx).Exec(stmt).Error; err != nil {
		return fmt.Errorf("truncate failed: %w", err)
	}
	return nil
}
