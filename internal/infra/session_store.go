package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/nullpane/reflexd/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const journalDBName = "sessions.db"

// SQLiteSessionJournal implements domain.SessionJournal on a SQLCipher
// encrypted SQLite database. Session history stays local and opaque.
type SQLiteSessionJournal struct {
	db     *sql.DB
	dbPath string
}

// NewSessionJournal opens (or creates) the encrypted journal in
// stateDir. The key is applied as the SQLCipher passphrase.
func NewSessionJournal(stateDir string, key []byte) (*SQLiteSessionJournal, error) {
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	dbPath := filepath.Join(stateDir, journalDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted journal: %w", err)
	}

	j := &SQLiteSessionJournal{db: db, dbPath: dbPath}
	if err := j.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return j, nil
}

func (j *SQLiteSessionJournal) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		frames INTEGER NOT NULL,
		hits INTEGER NOT NULL,
		avg_fps REAL NOT NULL,
		fingerprint_id TEXT NOT NULL,
		tier TEXT NOT NULL
	);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record inserts or updates one session summary.
func (j *SQLiteSessionJournal) Record(s domain.SessionSummary) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO sessions (id, started_at, ended_at, frames, hits, avg_fps, fingerprint_id, tier)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.StartedAt.UnixMilli(), s.EndedAt.UnixMilli(), s.Frames, s.Hits, s.AvgFPS, s.FingerprintID, string(s.Tier),
	)
	return err
}

// Recent returns up to limit sessions, newest first.
func (j *SQLiteSessionJournal) Recent(limit int) ([]domain.SessionSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := j.db.Query(`
		SELECT id, started_at, ended_at, frames, hits, avg_fps, fingerprint_id, tier
		FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SessionSummary
	for rows.Next() {
		var s domain.SessionSummary
		var started, ended int64
		var tier string
		if err := rows.Scan(&s.ID, &started, &ended, &s.Frames, &s.Hits, &s.AvgFPS, &s.FingerprintID, &tier); err != nil {
			return nil, err
		}
		s.StartedAt = time.UnixMilli(started)
		s.EndedAt = time.UnixMilli(ended)
		s.Tier = domain.Tier(tier)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Path returns the database file path.
func (j *SQLiteSessionJournal) Path() string {
	return j.dbPath
}

// Close releases the database connection.
func (j *SQLiteSessionJournal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Ensure SQLiteSessionJournal implements domain.SessionJournal.
var _ domain.SessionJournal = (*SQLiteSessionJournal)(nil)
