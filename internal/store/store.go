// Package store provides the local SQLite cache of journal entries.
//
// The backend is the source of truth. The cache only exists so the
// dashboard and the offline CLI commands have something to derive from
// when the entries fetch fails.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/abelbrown/moodlog/internal/journal"
)

// Store handles SQLite persistence. Concrete type, safe for concurrent use.
type Store struct {
	db *sqlx.DB
	mu sync.RWMutex
}

// Open creates a Store at dbPath, creating tables if needed.
// ":memory:" opens a shared in-memory database.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		connStr = "file::memory:?cache=shared"
	}

	db, err := sqlx.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every pooled connection to a shared in-memory DB must see the same data.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT NOT NULL,
		pos INTEGER NOT NULL,
		text TEXT NOT NULL,
		ts_ms INTEGER,
		sentiment TEXT NOT NULL,
		score REAL,
		confidence REAL,
		mood_rating INTEGER,
		tags TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_entries_ts ON entries(ts_ms DESC);

	CREATE TABLE IF NOT EXISTS sync_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

type entryRow struct {
	ID         string          `db:"id"`
	Pos        int             `db:"pos"`
	Text       string          `db:"text"`
	TsMs       sql.NullInt64   `db:"ts_ms"`
	Sentiment  string          `db:"sentiment"`
	Score      sql.NullFloat64 `db:"score"`
	Confidence sql.NullFloat64 `db:"confidence"`
	MoodRating sql.NullInt64   `db:"mood_rating"`
	Tags       string          `db:"tags"`
}

func toRow(pos int, e journal.Entry) (entryRow, error) {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	tagJSON, err := json.Marshal(tags)
	if err != nil {
		return entryRow{}, err
	}

	r := entryRow{
		ID:        e.ID,
		Pos:       pos,
		Text:      e.Text,
		Sentiment: string(e.Sentiment),
		Tags:      string(tagJSON),
	}
	if !e.Timestamp.IsZero() {
		r.TsMs = sql.NullInt64{Int64: e.Timestamp.UnixMilli(), Valid: true}
	}
	if e.Score != nil {
		r.Score = sql.NullFloat64{Float64: *e.Score, Valid: true}
	}
	if e.Confidence != nil {
		r.Confidence = sql.NullFloat64{Float64: *e.Confidence, Valid: true}
	}
	if e.MoodRating != nil {
		r.MoodRating = sql.NullInt64{Int64: int64(*e.MoodRating), Valid: true}
	}
	return r, nil
}

func (r entryRow) entry() journal.Entry {
	e := journal.Entry{
		ID:        r.ID,
		Text:      r.Text,
		Sentiment: journal.ParseSentiment(r.Sentiment),
	}
	if r.TsMs.Valid {
		e.Timestamp = time.UnixMilli(r.TsMs.Int64)
	}
	if r.Score.Valid {
		v := r.Score.Float64
		e.Score = &v
	}
	if r.Confidence.Valid {
		v := r.Confidence.Float64
		e.Confidence = &v
	}
	if r.MoodRating.Valid {
		v := int(r.MoodRating.Int64)
		e.MoodRating = &v
	}
	// A corrupt tag column leaves the entry untagged.
	_ = json.Unmarshal([]byte(r.Tags), &e.Tags)
	if len(e.Tags) == 0 {
		e.Tags = nil
	}
	return e
}

// ReplaceEntries overwrites the cache with entries and records the sync time.
// A full refetch is authoritative, so nothing from the old cache survives.
func (s *Store) ReplaceEntries(ctx context.Context, entries []journal.Entry, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}

	for i, e := range entries {
		row, err := toRow(i, e)
		if err != nil {
			return fmt.Errorf("encode entry %s: %w", e.ID, err)
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO entries (id, pos, text, ts_ms, sentiment, score, confidence, mood_rating, tags)
			VALUES (:id, :pos, :text, :ts_ms, :sentiment, :score, :confidence, :mood_rating, :tags)`, row)
		if err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_state (key, value) VALUES ('last_sync', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		syncedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record sync: %w", err)
	}

	return tx.Commit()
}

// Entries returns cached entries, newest first. Entries without a
// timestamp sort last in their original order. limit <= 0 means all.
func (s *Store) Entries(ctx context.Context, limit int) ([]journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}

	var rows []entryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, pos, text, ts_ms, sentiment, score, confidence, mood_rating, tags
		FROM entries
		ORDER BY ts_ms IS NULL, ts_ms DESC, pos
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}

	out := make([]journal.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry())
	}
	return out, nil
}

// Count returns the number of cached entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM entries`); err != nil {
		return 0, err
	}
	return n, nil
}

// LastSync returns when ReplaceEntries last succeeded, or the zero time.
func (s *Store) LastSync(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v string
	err := s.db.GetContext(ctx, &v, `SELECT value FROM sync_state WHERE key = 'last_sync'`)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last sync %q: %w", v, err)
	}
	return t, nil
}
