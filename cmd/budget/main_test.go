package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("budget %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestSeedIsIdempotent(t *testing.T) {
	db := filepath.Join(t.TempDir(), "budget.db")

	if got := execute(t, "seed", "--backend", "sqlite", "--db", db); !strings.HasPrefix(got, "seeded ") {
		t.Errorf("first seed output = %q", got)
	}
	if got := execute(t, "seed", "--backend", "sqlite", "--db", db); !strings.Contains(got, "nothing seeded") {
		t.Errorf("second seed output = %q", got)
	}
}

func TestMigrateSQLite(t *testing.T) {
	db := filepath.Join(t.TempDir(), "budget.db")
	execute(t, "migrate", "--backend", "sqlite", "--db", db)
	execute(t, "migrate", "--status", "--backend", "sqlite", "--db", db)
}

func TestInvalidConfigFails(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"seed", "--backend", "sheets"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid data backend") {
		t.Fatalf("err = %v", err)
	}
}
