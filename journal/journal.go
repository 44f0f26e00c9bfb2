// Package journal keeps a SQLite record of published posts and the digest
// notifier's watermark.
package journal

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one published post.
type Entry struct {
	ID          int
	Summary     string
	Sender      string
	PublishedAt time.Time
}

// Journal wraps the SQLite database.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path, ensures the data
// directory exists, and runs schema migrations.
func Open(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the server record publishes while the notifier reads; the
	// busy timeout makes writers wait instead of returning SQLITE_BUSY, and
	// synchronous=NORMAL is safe under WAL without an fsync per transaction.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	j := &Journal{db: db}
	if err := j.ensureSchema(); err != nil {
		return nil, err
	}
	return j, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) ensureSchema() error {
	_, err := j.db.Exec(`
CREATE TABLE IF NOT EXISTS publishes (
    id INTEGER PRIMARY KEY,
    summary TEXT NOT NULL,
    sender TEXT NOT NULL,
    published_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS digest_state (
    k INTEGER PRIMARY KEY CHECK (k = 1),
    last_id INTEGER NOT NULL
);
`)
	return err
}

// Record stores one published post. Re-recording an identifier overwrites the
// earlier row.
func (j *Journal) Record(e Entry) error {
	_, err := j.db.Exec(
		`INSERT OR REPLACE INTO publishes (id, summary, sender, published_at) VALUES (?, ?, ?, ?)`,
		e.ID, e.Summary, e.Sender, e.PublishedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// Since returns the entries with identifiers greater than id, ascending.
func (j *Journal) Since(id int) ([]Entry, error) {
	rows, err := j.db.Query(
		`SELECT id, summary, sender, published_at FROM publishes WHERE id > ? ORDER BY id`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var published string
		if err := rows.Scan(&e.ID, &e.Summary, &e.Sender, &published); err != nil {
			return nil, err
		}
		e.PublishedAt, _ = time.Parse(time.RFC3339, published)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LastNotified returns the identifier of the newest post covered by a digest,
// or -1 when no digest has run yet.
func (j *Journal) LastNotified() (int, error) {
	var last int
	err := j.db.QueryRow(`SELECT last_id FROM digest_state WHERE k = 1`).Scan(&last)
	if err == sql.ErrNoRows {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return last, nil
}

// SetLastNotified advances the digest watermark.
func (j *Journal) SetLastNotified(id int) error {
	_, err := j.db.Exec(
		`INSERT OR REPLACE INTO digest_state (k, last_id) VALUES (1, ?)`, id,
	)
	return err
}
