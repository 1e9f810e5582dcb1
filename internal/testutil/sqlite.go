package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"reportbot/internal/school"
	"reportbot/internal/storage"
)

// SQLite returns a connected database in a temp dir with the schema created
// and schools inserted. It is closed when the test ends.
func SQLite(tb testing.TB, schools ...school.School) *storage.SQLite {
	tb.Helper()

	db := storage.NewSQLite(storage.Config{Path: filepath.Join(tb.TempDir(), "schools.db")})
	ctx := context.Background()
	if err := db.Connect(ctx); err != nil {
		tb.Fatalf("connect: %v", err)
	}
	tb.Cleanup(func() { db.Close() })

	if err := db.CreateSchema(ctx); err != nil {
		tb.Fatalf("create schema: %v", err)
	}
	if len(schools) > 0 {
		if _, err := db.InsertSchools(ctx, schools); err != nil {
			tb.Fatalf("insert schools: %v", err)
		}
	}
	return db
}
