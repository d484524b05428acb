package storage

import (
	"context"
	"os"
	"testing"
)

// TestPostgresKV exercises the PostgreSQL backend when RUN5K_TEST_DSN points
// at a database. Migrations are applied from the repository root.
func TestPostgresKV(t *testing.T) {
	dsn := os.Getenv("RUN5K_TEST_DSN")
	if dsn == "" {
		t.Skip("RUN5K_TEST_DSN not set")
	}
	if err := RunMigrations(dsn, "../../migrations"); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}

	ctx := context.Background()
	db, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer db.Close()

	if err := db.Set(ctx, "runningPlanProgress", "[1,2]"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := db.Get(ctx, "runningPlanProgress")
	if err != nil || !ok || v != "[1,2]" {
		t.Errorf("Get = %q, %v, %v", v, ok, err)
	}
	if _, ok, err := db.Get(ctx, "no-such-key"); err != nil || ok {
		t.Errorf("Get(absent) = %v, %v", ok, err)
	}
}
