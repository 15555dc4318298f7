package storage

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// DB wraps a sql.DB connection to a SQLite database.
type DB struct {
	db *sql.DB
}

// NewDB opens (or creates) a SQLite database at path and runs schema migrations.
// Pass ":memory:" for an in-memory database (useful for tests).
func NewDB(path string) (*DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	d := &DB{db: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// migrate creates all required tables if they do not already exist.
func (d *DB) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS media (
    token TEXT PRIMARY KEY,
    file_id TEXT NOT NULL,
    media_type TEXT NOT NULL,
    content_protection INTEGER DEFAULT 1,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
    user_id INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT
);`
	_, err := d.db.Exec(schema)
	return err
}

// --- Media CRUD ---

// InsertMedia inserts a new media record. The token must be unique; a
// constraint violation is returned to the caller so it can regenerate.
func (d *DB) InsertMedia(m *MediaRecord) error {
	protection := 0
	if m.ProtectContent {
		protection = 1
	}
	_, err := d.db.Exec(
		`INSERT INTO media (token, file_id, media_type, content_protection, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.Token, m.FileID, string(m.Kind), protection, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

// GetMedia retrieves a media record by token. Returns ErrNotFound if the
// token was never issued or has been deleted.
func (d *DB) GetMedia(token string) (*MediaRecord, error) {
	m := &MediaRecord{}
	var kind string
	var protection int
	err := d.db.QueryRow(
		`SELECT token, file_id, media_type, content_protection, created_at
		 FROM media WHERE token = ?`, token,
	).Scan(&m.Token, &m.FileID, &kind, &protection, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("media %s: %w", token, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get media: %w", err)
	}
	m.Kind = MediaKind(kind)
	m.ProtectContent = protection != 0
	return m, nil
}

// ListMedia returns all media records, newest first.
func (d *DB) ListMedia() ([]MediaRecord, error) {
	rows, err := d.db.Query(
		`SELECT token, file_id, media_type, content_protection, created_at
		 FROM media ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	var out []MediaRecord
	for rows.Next() {
		var m MediaRecord
		var kind string
		var protection int
		if err := rows.Scan(&m.Token, &m.FileID, &kind, &protection, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		m.Kind = MediaKind(kind)
		m.ProtectContent = protection != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMedia removes a media record by token. Returns ErrNotFound if no row
// matched.
func (d *DB) DeleteMedia(token string) error {
	res, err := d.db.Exec(`DELETE FROM media WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("media %s: %w", token, ErrNotFound)
	}
	return nil
}

// --- Users ---

// AddUser records a chat ID for later broadcasts. Re-adding an existing
// user is a no-op.
func (d *DB) AddUser(userID int64) error {
	_, err := d.db.Exec(`INSERT OR IGNORE INTO users (user_id) VALUES (?)`, userID)
	if err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	return nil
}

// ListUsers returns every recorded chat ID.
func (d *DB) ListUsers() ([]int64, error) {
	rows, err := d.db.Query(`SELECT user_id FROM users`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- Config ---

// SetConfig stores a configuration value under key, replacing any previous
// value.
func (d *DB) SetConfig(key, value string) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)`, key, value,
	)
	if err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

// GetConfig retrieves a configuration value. Returns ErrNotFound for unset
// keys.
func (d *DB) GetConfig(key string) (string, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("config %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get config %s: %w", key, err)
	}
	return value, nil
}

// AllConfig returns every stored configuration key/value pair.
func (d *DB) AllConfig() (map[string]string, error) {
	rows, err := d.db.Query(`SELECT key, value FROM config`)
	if err != nil {
		return nil, fmt.Errorf("all config: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
