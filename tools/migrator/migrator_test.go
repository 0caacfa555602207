package migrator

import (
	"database/sql"
	"strings"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// Every new connection to :memory: is a fresh database.
	db.SetMaxOpenConns(1)

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func tableExists(t *testing.T, db *sql.DB, tableName string) bool {
	t.Helper()

	var name string
	query := "SELECT name FROM sqlite_master WHERE type='table' AND name=?"
	err := db.QueryRow(query, tableName).Scan(&name)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		t.Fatalf("failed to check if table exists: %v", err)
	}
	return true
}

func getVersion(t *testing.T, db *sql.DB) int {
	t.Helper()

	version, err := GetCurrentVersion(db)
	if err != nil {
		t.Fatalf("failed to get version: %v", err)
	}
	return version
}

func migrationFile(sql string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte("-- +migrate Up\n" + sql + "\n")}
}

// =============================================================================
// Parser Tests
// =============================================================================

func TestParseMigration_Valid(t *testing.T) {
	content := []byte(`-- leading comment
-- +migrate Up
CREATE TABLE runs (
	id TEXT PRIMARY KEY
);
`)

	migration, err := ParseMigration("001_create_runs.sql", content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if migration.Version != 1 {
		t.Errorf("expected version 1, got %d", migration.Version)
	}
	if migration.Name != "create_runs" {
		t.Errorf("expected name 'create_runs', got '%s'", migration.Name)
	}
	if !strings.HasPrefix(migration.UpSQL, "CREATE TABLE runs") {
		t.Errorf("expected UpSQL to start with CREATE TABLE, got: %s", migration.UpSQL)
	}
	if migration.NoTransaction {
		t.Error("expected NoTransaction to be false")
	}
}

func TestParseMigration_NoTransaction(t *testing.T) {
	migration, err := ParseMigration("002_index.sql", []byte("-- +migrate Up notransaction\nCREATE INDEX i ON t(c);"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !migration.NoTransaction {
		t.Error("expected NoTransaction to be true")
	}
}

func TestParseMigration_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		errPart  string
	}{
		{"bad filename", "1_short.sql", "-- +migrate Up\nSELECT 1;", "invalid migration filename"},
		{"no extension", "001_name", "-- +migrate Up\nSELECT 1;", "invalid migration filename"},
		{"missing marker", "001_name.sql", "SELECT 1;", "missing '-- +migrate Up'"},
		{"empty sql", "001_name.sql", "-- +migrate Up\n\n", "no SQL statements"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMigration(tt.filename, []byte(tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("expected error containing %q, got %v", tt.errPart, err)
			}
		})
	}
}

func TestLoadMigrations_SortsAndFilters(t *testing.T) {
	fsys := fstest.MapFS{
		"002_second.sql": migrationFile("CREATE TABLE b (id INTEGER);"),
		"001_first.sql":  migrationFile("CREATE TABLE a (id INTEGER);"),
		"README.md":      &fstest.MapFile{Data: []byte("docs")},
	}

	migrations, err := LoadMigrations(fsys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Name != "first" || migrations[1].Name != "second" {
		t.Errorf("expected sorted migrations, got %s, %s", migrations[0].Name, migrations[1].Name)
	}
}

func TestLoadMigrations_Gap(t *testing.T) {
	fsys := fstest.MapFS{
		"001_first.sql": migrationFile("SELECT 1;"),
		"003_third.sql": migrationFile("SELECT 1;"),
	}

	_, err := LoadMigrations(fsys)
	if err == nil || !strings.Contains(err.Error(), "gap") {
		t.Errorf("expected gap error, got %v", err)
	}
}

func TestLoadMigrations_Duplicate(t *testing.T) {
	fsys := fstest.MapFS{
		"001_first.sql":  migrationFile("SELECT 1;"),
		"001_second.sql": migrationFile("SELECT 1;"),
	}

	_, err := LoadMigrations(fsys)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate error, got %v", err)
	}
}

// =============================================================================
// Runner Tests
// =============================================================================

func TestRunMigrations_FreshDatabase(t *testing.T) {
	db := setupTestDB(t)
	fsys := fstest.MapFS{
		"001_runs.sql":  migrationFile("CREATE TABLE runs (id TEXT PRIMARY KEY);"),
		"002_ticks.sql": migrationFile("CREATE TABLE ticks (id INTEGER PRIMARY KEY, run_id TEXT);"),
	}

	if err := RunMigrations(db, "sqlite3", fsys); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !tableExists(t, db, "runs") || !tableExists(t, db, "ticks") {
		t.Error("expected both tables to exist")
	}
	if v := getVersion(t, db); v != 2 {
		t.Errorf("expected version 2, got %d", v)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	fsys := fstest.MapFS{
		"001_runs.sql": migrationFile("CREATE TABLE runs (id TEXT PRIMARY KEY);"),
	}

	for i := 0; i < 2; i++ {
		if err := RunMigrations(db, "sqlite3", fsys); err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
	}

	applied, err := GetAppliedMigrations(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(applied) != 1 || applied[0] != 1 {
		t.Errorf("expected [1], got %v", applied)
	}
}

func TestRunMigrations_Incremental(t *testing.T) {
	db := setupTestDB(t)
	fsys := fstest.MapFS{
		"001_runs.sql": migrationFile("CREATE TABLE runs (id TEXT PRIMARY KEY);"),
	}

	if err := RunMigrations(db, "sqlite3", fsys); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fsys["002_ticks.sql"] = migrationFile("CREATE TABLE ticks (id INTEGER PRIMARY KEY);")
	if err := RunMigrations(db, "sqlite3", fsys); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v := getVersion(t, db); v != 2 {
		t.Errorf("expected version 2, got %d", v)
	}
}

func TestRunMigrations_FailedMigrationRollsBack(t *testing.T) {
	db := setupTestDB(t)
	fsys := fstest.MapFS{
		"001_runs.sql": migrationFile("CREATE TABLE runs (id TEXT PRIMARY KEY);"),
		"002_bad.sql":  migrationFile("CREATE TABLE partial (id INTEGER);\nTHIS IS NOT SQL;"),
	}

	if err := RunMigrations(db, "sqlite3", fsys); err == nil {
		t.Fatal("expected error from invalid migration")
	}

	if v := getVersion(t, db); v != 1 {
		t.Errorf("expected version 1 after failure, got %d", v)
	}
	if tableExists(t, db, "partial") {
		t.Error("expected failed migration to be rolled back")
	}
}

func TestGetCurrentVersion_FreshDatabase(t *testing.T) {
	db := setupTestDB(t)

	if v := getVersion(t, db); v != 0 {
		t.Errorf("expected version 0, got %d", v)
	}
}

func TestPlaceholder(t *testing.T) {
	if got := placeholder("pgx", 2); got != "$2" {
		t.Errorf("expected $2, got %s", got)
	}
	if got := placeholder("sqlite3", 2); got != "?" {
		t.Errorf("expected ?, got %s", got)
	}
}
