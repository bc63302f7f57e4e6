package main

import (
	"context"
	"path/filepath"
	"testing"

	"twc/artifact"
)

func TestResolveRun(t *testing.T) {
	ctx := context.Background()
	db, err := artifact.OpenDB(filepath.Join(t.TempDir(), "artifacts.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := resolveRun(ctx, db, latestRun); err == nil {
		t.Error("expected error for empty database")
	}
	for _, id := range []string{"0190a000-0000-7000-8000-000000000001", "0190a000-0000-7000-8000-000000000002"} {
		if err := db.Begin(ctx, id, "page.html"); err != nil {
			t.Fatal(err)
		}
	}
	if got, err := resolveRun(ctx, db, latestRun); err != nil || got != "0190a000-0000-7000-8000-000000000002" {
		t.Errorf("resolveRun(latest) = %q, %v", got, err)
	}
	if got, _ := resolveRun(ctx, db, "explicit"); got != "explicit" {
		t.Errorf("explicit run id must be kept, got %q", got)
	}
}
