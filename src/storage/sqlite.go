package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql
var migrationFiles embed.FS

const migrationDir = "migrations/sqlite"

// DB is the conversation database. Open leaves it fully migrated, so callers
// never see a partial schema.
type DB struct {
	path string
	db   *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies pending
// migrations.
func Open(path string) (*DB, error) {
	store, err := OpenRaw(path)
	if err != nil {
		return nil, err
	}
	if err := store.migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// OpenRaw opens the database without migrating, so the schema can be
// inspected as it is.
func OpenRaw(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	return &DB{path: path, db: db}, nil
}

// DB exposes the underlying handle for packages that issue their own queries.
func (d *DB) DB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// migration is one embedded schema change, parsed from its filename
// (NNN_name.sql).
type migration struct {
	version int
	name    string
	sql     string
}

// MigrationRecord reports one known migration and whether this database has
// applied it.
type MigrationRecord struct {
	Version int
	Name    string
	Applied bool
}

// MigrationStatus lists every known migration in version order. It works on
// raw-opened databases too, where nothing has been applied yet.
func (d *DB) MigrationStatus() ([]MigrationRecord, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return nil, err
	}
	if err := d.ensureMigrationTable(); err != nil {
		return nil, err
	}
	applied, err := d.appliedVersions()
	if err != nil {
		return nil, err
	}

	records := make([]MigrationRecord, 0, len(migrations))
	for _, m := range migrations {
		records = append(records, MigrationRecord{
			Version: m.version,
			Name:    m.name,
			Applied: applied[m.version],
		})
	}
	return records, nil
}

func (d *DB) migrate() error {
	if err := d.ensureMigrationTable(); err != nil {
		return err
	}

	applied, err := d.appliedVersions()
	if err != nil {
		return err
	}
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := d.apply(m); err != nil {
			return err
		}
	}
	return nil
}

// apply runs one migration and records it, atomically.
func (d *DB) apply(m migration) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(m.sql); err != nil {
		tx.Rollback()
		return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
		tx.Rollback()
		return fmt.Errorf("record migration %d: %w", m.version, err)
	}
	return tx.Commit()
}

func (d *DB) ensureMigrationTable() error {
	_, err := d.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func (d *DB) appliedVersions() (map[int]bool, error) {
	rows, err := d.db.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// loadMigrations reads the embedded migration files in version order.
func loadMigrations() ([]migration, error) {
	entries, err := migrationFiles.ReadDir(migrationDir)
	if err != nil {
		return nil, err
	}

	migrations := make([]migration, 0, len(entries))
	for _, entry := range entries {
		version, name, ok := parseMigrationName(entry.Name())
		if !ok {
			return nil, fmt.Errorf("bad migration filename: %s", entry.Name())
		}
		content, err := migrationFiles.ReadFile(migrationDir + "/" + entry.Name())
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, migration{
			version: version,
			name:    name,
			sql:     upStatements(string(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })
	return migrations, nil
}

// parseMigrationName splits "012_add_thing.sql" into (12, "add_thing").
func parseMigrationName(filename string) (int, string, bool) {
	base, ok := strings.CutSuffix(filename, ".sql")
	if !ok {
		return 0, "", false
	}
	prefix, name, ok := strings.Cut(base, "_")
	if !ok {
		return 0, "", false
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, "", false
	}
	return version, name, true
}

// upStatements extracts the up-direction statements from a goose-format
// migration file. Marker lines stay out of the executed SQL.
func upStatements(content string) string {
	var kept []string
	up, inStatement := false, false
	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.Contains(line, "-- +goose Up"):
			up = true
		case strings.Contains(line, "-- +goose Down"):
			return strings.Join(kept, "\n")
		case strings.Contains(line, "-- +goose StatementBegin"):
			inStatement = true
		case strings.Contains(line, "-- +goose StatementEnd"):
			inStatement = false
		case up && inStatement:
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
