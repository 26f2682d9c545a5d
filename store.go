package blogsync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store persists blog entries in SQLite or Postgres (for example a Supabase
// database) through database/sql.
type Store struct {
	db      *sql.DB
	dialect dialect
}

type dialect struct {
	driver    string
	timestamp string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
}

var dialects = map[string]dialect{
	DriverSQLite:   {driver: "sqlite", timestamp: "TEXT"},
	DriverPostgres: {driver: "pgx", timestamp: "TIMESTAMPTZ", numbered: true},
}

// NewStore opens the database and runs schema migrations. For SQLite dsn is a
// file path whose directory is created if needed; for Postgres it is a
// connection URL.
func NewStore(ctx context.Context, driver, dsn string) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
	if driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	switch driver {
	case DriverSQLite:
		if _, err := db.ExecContext(ctx, `
			PRAGMA journal_mode=WAL;
			PRAGMA busy_timeout=5000;
			PRAGMA synchronous=NORMAL;
		`); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragmas: %w", err)
		}
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	case DriverPostgres:
		db.SetConnMaxIdleTime(5 * time.Minute)
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxIdleConns(5)
		db.SetMaxOpenConns(10)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	s := &Store{db: db, dialect: d}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	ts := s.dialect.timestamp
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS blogs (
    slug TEXT PRIMARY KEY,
    content_url TEXT NOT NULL,
    title TEXT,
    description TEXT,
    date TEXT,
    tags TEXT NOT NULL DEFAULT '[]',
    image TEXT,
    author TEXT,
    updated_at ` + ts + ` NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS blogs_content_url_idx ON blogs (content_url)`,
		`CREATE TABLE IF NOT EXISTS sync_runs (
    id TEXT PRIMARY KEY,
    started_at ` + ts + ` NOT NULL,
    finished_at ` + ts + `,
    synced INTEGER NOT NULL DEFAULT 0,
    deleted INTEGER NOT NULL DEFAULT 0,
    stage TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT ''
)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *Store) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ContentURLs returns the content_url of every stored entry.
func (s *Store) ContentURLs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT content_url FROM blogs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// DeleteByContentURL removes every entry whose content_url is in urls, in a
// single statement, and returns the number of rows removed.
func (s *Store) DeleteByContentURL(ctx context.Context, urls []string) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(urls)), ",")
	args := make([]any, len(urls))
	for i, u := range urls {
		args[i] = u
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM blogs WHERE content_url IN (`+placeholders+`)`), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}

// UpsertEntry inserts e or, when its slug already exists, updates the synced
// columns in place.
func (s *Store) UpsertEntry(ctx context.Context, e BlogEntry) error {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	tagJSON, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
INSERT INTO blogs (slug, content_url, title, description, date, tags, image, author, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (slug) DO UPDATE SET
    content_url = excluded.content_url,
    updated_at = excluded.updated_at,
    title = excluded.title,
    description = excluded.description,
    date = excluded.date,
    tags = excluded.tags,
    image = excluded.image,
    author = excluded.author`),
		e.Slug, e.ContentURL, nullString(e.Title), nullString(e.Description), nullString(e.Date),
		string(tagJSON), nullString(e.Image), nullString(e.Author), formatTime(e.UpdatedAt))
	return err
}

const entryColumns = `slug, content_url, title, description, date, tags, image, author, updated_at`

// ListEntries returns every entry, newest date first.
func (s *Store) ListEntries(ctx context.Context) ([]BlogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM blogs ORDER BY date IS NULL, date DESC, slug ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []BlogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetEntry returns the entry with the given slug or sql.ErrNoRows.
func (s *Store) GetEntry(ctx context.Context, slug string) (BlogEntry, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+entryColumns+` FROM blogs WHERE slug = ?`), slug)
	return scanEntry(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (BlogEntry, error) {
	var (
		e                                     BlogEntry
		title, description, date, image, auth sql.NullString
		tags, updated                         string
	)
	if err := sc.Scan(&e.Slug, &e.ContentURL, &title, &description, &date, &tags, &image, &auth, &updated); err != nil {
		return BlogEntry{}, err
	}
	e.Title = nullable(title)
	e.Description = nullable(description)
	e.Date = nullable(date)
	e.Image = nullable(image)
	e.Author = nullable(auth)
	e.Tags = []string{}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return BlogEntry{}, fmt.Errorf("decode tags of %q: %w", e.Slug, err)
		}
	}
	t, err := parseTime(updated)
	if err != nil {
		return BlogEntry{}, fmt.Errorf("decode updated_at of %q: %w", e.Slug, err)
	}
	e.UpdatedAt = t
	return e, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Timestamps are written as fixed-width UTC RFC 3339 text so SQLite orders
// them correctly as strings. Postgres casts them into TIMESTAMPTZ and
// database/sql formats them back as RFC 3339 on scan.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
