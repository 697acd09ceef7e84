// Package history keeps a local SQLite log of translations.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Entry is one logged translation.
type Entry struct {
	ID          string         `json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	Query       string         `json:"query"`
	Params      map[string]any `json:"params,omitempty"`
	SQL         string         `json:"sql,omitempty"`
	Strategies  []string       `json:"strategies,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Duration    time.Duration  `json:"duration"`
	CacheHit    bool           `json:"cache_hit"`
	Error       string         `json:"error,omitempty"`
}

// Log wraps the SQLite database.
type Log struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the log at dbPath, creating parent directories.
func Open(dbPath string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir history: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return initLog(db, dbPath)
}

// OpenMemory opens an in-memory log (for testing).
func OpenMemory() (*Log, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open memory history: %w", err)
	}
	// Each connection to :memory: is its own database.
	db.SetMaxOpenConns(1)
	return initLog(db, ":memory:")
}

func initLog(db *sql.DB, dbPath string) (*Log, error) {
	l := &Log{db: db, dbPath: dbPath}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return l, nil
}

func (l *Log) initSchema() error {
	_, err := l.db.Exec(`
	CREATE TABLE IF NOT EXISTS translations (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		query TEXT NOT NULL,
		params TEXT DEFAULT '{}',
		sql TEXT DEFAULT '',
		strategies TEXT DEFAULT '',
		fingerprint TEXT DEFAULT '',
		duration_us INTEGER DEFAULT 0,
		cache_hit INTEGER DEFAULT 0,
		error TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_translations_created ON translations(created_at);
	CREATE INDEX IF NOT EXISTS idx_translations_fingerprint ON translations(fingerprint);
	`)
	return err
}

// Path returns the database file path.
func (l *Log) Path() string {
	return l.dbPath
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record stores e, filling ID and CreatedAt when unset, and returns the id.
func (l *Log) Record(ctx context.Context, e *Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	params := "{}"
	if len(e.Params) > 0 {
		b, err := json.Marshal(e.Params)
		if err != nil {
			return "", fmt.Errorf("encode params: %w", err)
		}
		params = string(b)
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO translations (id, created_at, query, params, sql, strategies, fingerprint, duration_us, cache_hit, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CreatedAt.UTC().Format(timeLayout), e.Query, params, e.SQL,
		strings.Join(e.Strategies, ","), e.Fingerprint, e.Duration.Microseconds(), e.CacheHit, e.Error)
	if err != nil {
		return "", fmt.Errorf("record translation: %w", err)
	}
	return e.ID, nil
}

// timeLayout sorts lexicographically in time order.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

const entryColumns = `id, created_at, query, params, sql, strategies, fingerprint, duration_us, cache_hit, error`

// Recent returns up to limit entries, newest first. failedOnly keeps only
// translations that returned an error.
func (l *Log) Recent(ctx context.Context, limit int, failedOnly bool) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + entryColumns + ` FROM translations`
	if failedOnly {
		q += ` WHERE error != ''`
	}
	q += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	rows, err := l.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("recent translations: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns the entry with id, or nil if there is none.
func (l *Log) Get(ctx context.Context, id string) (*Entry, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM translations WHERE id=?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// Prune deletes all but the newest keep entries and returns how many went.
func (l *Log) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := l.db.ExecContext(ctx, `
		DELETE FROM translations WHERE id NOT IN (
			SELECT id FROM translations ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e          Entry
		created    string
		params     string
		strategies string
		durationUS int64
	)
	err := row.Scan(&e.ID, &created, &e.Query, &params, &e.SQL, &strategies, &e.Fingerprint, &durationUS, &e.CacheHit, &e.Error)
	if err != nil {
		return nil, err
	}
	e.CreatedAt, _ = time.Parse(timeLayout, created)
	e.Duration = time.Duration(durationUS) * time.Microsecond
	if params != "" && params != "{}" {
		_ = json.Unmarshal([]byte(params), &e.Params)
	}
	if strategies != "" {
		e.Strategies = strings.Split(strategies, ",")
	}
	return &e, nil
}
