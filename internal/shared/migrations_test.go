package shared

import (
	"database/sql"
	"testing"
)

func TestParseMigrationName(t *testing.T) {
	tc := []struct {
		file    string
		version int
		name    string
		up      bool
		ok      bool
	}{
		{file: "0000_create_tables_up.sql", version: 0, name: "create_tables", up: true, ok: true},
		{file: "0001_add_indexes_down.sql", version: 1, name: "add_indexes", ok: true},
		{file: "README.sql", ok: false},
		{file: "abcd_name_up.sql", ok: false},
	}

	for _, tt := range tc {
		t.Run(tt.file, func(t *testing.T) {
			version, name, up, ok := parseMigrationName(tt.file)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if version != tt.version || name != tt.name || up != tt.up {
				t.Errorf("got (%d, %q, %v), want (%d, %q, %v)", version, name, up, tt.version, tt.name, tt.up)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	script := `-- Users own connections; deleting a user removes them.
CREATE TABLE a (id TEXT); -- trailing; comment
-- ;
CREATE TABLE b (id TEXT);
`
	got := splitStatements(script)
	want := []string{"CREATE TABLE a (id TEXT)", "CREATE TABLE b (id TEXT)"}
	if len(got) != len(want) {
		t.Fatalf("expected %d statements, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("statement %d = %q, want %q", i, got[i], want[i])
		}
	}

	t.Run("Applies", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		err = inTx(db, func(tx *sql.Tx) error { return execScript(tx, script) })
		if err != nil {
			t.Fatalf("failed to execute script: %v", err)
		}
		for _, table := range []string{"a", "b"} {
			if _, err := db.Exec("SELECT 1 FROM " + table); err != nil {
				t.Errorf("%s table should exist: %v", table, err)
			}
		}
	})
}

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) < 2 {
			t.Fatalf("expected at least two migrations, got %d", len(migrations))
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}
	})

	t.Run("Schema", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		for _, table := range []string{"users", "connections"} {
			if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
				t.Errorf("%s table should exist after migrations: %v", table, err)
			}
		}

		if _, err := db.Exec(`INSERT INTO connections (id, user_id, type, access_token) VALUES ('c1', 'u1', 'jellyfin', 'tok')`); err == nil {
			t.Error("expected foreign key violation for unknown user")
		}

		if _, err := db.Exec(`INSERT INTO users (id, username) VALUES ('u1', 'alice')`); err != nil {
			t.Fatalf("failed to insert user: %v", err)
		}
		if _, err := db.Exec(`INSERT INTO connections (id, user_id, type, access_token) VALUES ('c1', 'u1', 'spotify', 'tok')`); err == nil {
			t.Error("expected check constraint to reject unknown service type")
		}
		if _, err := db.Exec(`INSERT INTO connections (id, user_id, type, access_token) VALUES ('c1', 'u1', 'jellyfin', 'tok')`); err != nil {
			t.Fatalf("failed to insert connection: %v", err)
		}
		if _, err := db.Exec(`DELETE FROM users WHERE id = 'u1'`); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}

		var remaining int
		if err := db.QueryRow("SELECT COUNT(*) FROM connections").Scan(&remaining); err != nil {
			t.Fatalf("failed to count connections: %v", err)
		}
		if remaining != 0 {
			t.Errorf("expected connections to cascade on user delete, %d remain", remaining)
		}
	})

	t.Run("Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		var after int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&after); err != nil {
			t.Fatalf("failed to query schema_migrations after rollback: %v", err)
		}
		if after != count-1 {
			t.Errorf("expected %d applied migrations after rollback, got %d", count-1, after)
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to re-apply migrations: %v", err)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		for range 2 {
			if err := RunMigrations(db); err != nil {
				t.Fatalf("failed to run migrations: %v", err)
			}
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		if count != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), count)
		}
	})
}
