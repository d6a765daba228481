package main

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		t.Fatalf("unexpected error loading embedded migrations: %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("expected at least 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "users" {
		t.Fatalf("expected first migration 1_users, got %d_%s", migrations[0].Version, migrations[0].Name)
	}
	if migrations[1].Version != 2 || migrations[1].Name != "portfolios" {
		t.Fatalf("expected second migration 2_portfolios, got %d_%s", migrations[1].Version, migrations[1].Name)
	}
	if !strings.Contains(migrations[1].UpSQL, "REFERENCES users") {
		t.Fatal("expected portfolios to reference users")
	}
}

func TestLoadMigrationsRejectsBrokenSets(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"missing down": {
			"migrations/001_users.up.sql": {Data: []byte("CREATE TABLE users ();")},
		},
		"bad filename": {
			"migrations/users.up.sql": {Data: []byte("CREATE TABLE users ();")},
		},
		"empty file": {
			"migrations/001_users.up.sql":   {Data: []byte("  ")},
			"migrations/001_users.down.sql": {Data: []byte("DROP TABLE users;")},
		},
		"conflicting names": {
			"migrations/001_users.up.sql":     {Data: []byte("CREATE TABLE users ();")},
			"migrations/001_members.down.sql": {Data: []byte("DROP TABLE users;")},
		},
		"no files": {},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := loadMigrations(fsys); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	cmd, err := parseCommand([]string{"down", "3"})
	if err != nil || cmd.name != cmdDown || cmd.steps != 3 {
		t.Fatalf("unexpected result %+v, %v", cmd, err)
	}
	cmd, err = parseCommand([]string{"up"})
	if err != nil || cmd.name != cmdUp {
		t.Fatalf("unexpected result %+v, %v", cmd, err)
	}
	for _, args := range [][]string{nil, {"sideways"}, {"down", "0"}, {"down", "x"}} {
		if _, err := parseCommand(args); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}
