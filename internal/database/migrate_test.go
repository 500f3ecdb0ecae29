package database

import (
	"strings"
	"testing"
)

func TestMigrationsFS_ContainsPairedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("failed to read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no migration files embedded")
	}

	// up/downのペアが揃っていることを確認する
	ups := make(map[string]bool)
	downs := make(map[string]bool)
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file: %s", name)
		}
	}

	for base := range ups {
		if !downs[base] {
			t.Errorf("missing down migration for %s", base)
		}
	}
	for base := range downs {
		if !ups[base] {
			t.Errorf("missing up migration for %s", base)
		}
	}
}

func TestMigrationsFS_LedgerHasUniqueConstraint(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/000002_create_messages.up.sql")
	if err != nil {
		t.Fatalf("failed to read messages migration: %v", err)
	}

	sql := string(data)
	if !strings.Contains(sql, "UNIQUE (run_id, subscription_id)") {
		t.Error("messages table must enforce one delivery per (run, subscription)")
	}
}
