// Package session persists conversation turns in SQLite so a dialogue
// survives process restarts. Conversation memory stays the in-process
// authority; this store is the durable record behind it.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"docrouter/internal/model"
)

// tsFormat is fixed width (UTC, zero-padded nanoseconds) so the textual
// ORDER BY ts matches chronological order even within one second.
const tsFormat = "2006-01-02T15:04:05.000000000Z"

// Store is a SQLite-backed session log.
type Store struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewStore opens or creates a SQLite database at the given path.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interactions (
		id            TEXT PRIMARY KEY,
		session_id    TEXT NOT NULL REFERENCES sessions(id),
		ts            TEXT NOT NULL,
		query         TEXT NOT NULL,
		response      TEXT NOT NULL,
		sources       TEXT,
		semantic_hash TEXT,
		chars         INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_session ON interactions(session_id, ts);
	CREATE INDEX IF NOT EXISTS idx_interactions_ts ON interactions(ts DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append records a completed turn, creating the session row on first use.
func (s *Store) Append(ctx context.Context, sessionID string, it model.Interaction) error {
	if sessionID == "" {
		return fmt.Errorf("empty session id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, name, created_at) VALUES (?, '', ?)`,
		sessionID, now)
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}

	id := it.ID
	if id == "" {
		id = s.newID()
	}
	ts := it.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var sourcesJSON *string
	if len(it.Sources) > 0 {
		b, _ := json.Marshal(it.Sources)
		v := string(b)
		sourcesJSON = &v
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO interactions (id, session_id, ts, query, response, sources, semantic_hash, chars)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, sessionID, ts.UTC().Format(tsFormat),
		it.Query, it.Response, sourcesJSON, it.SemanticHash, it.Length)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}

	return tx.Commit()
}

// History returns a session's turns, oldest first. A non-positive limit
// defaults to 20.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]model.Interaction, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, query, response, sources, semantic_hash, chars
		 FROM (
			SELECT * FROM interactions WHERE session_id = ? ORDER BY ts DESC LIMIT ?
		 ) ORDER BY ts ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// SessionInfo is a session row with its turn count.
type SessionInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Interactions int       `json:"interactions"`
}

// Sessions lists all sessions, newest first.
func (s *Store) Sessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.created_at, COUNT(i.id)
		FROM sessions s
		LEFT JOIN interactions i ON i.session_id = s.id
		GROUP BY s.id
		ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var createdAt string
		if err := rows.Scan(&info.ID, &info.Name, &createdAt, &info.Interactions); err != nil {
			return nil, err
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Rename sets a display name on a session.
func (s *Store) Rename(ctx context.Context, sessionID, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET name = ? WHERE id = ?`, name, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	return nil
}

// SearchHit is an interaction that matched a search, with its session.
type SearchHit struct {
	SessionID string `json:"session_id"`
	model.Interaction
}

// Search finds turns whose query or response contains the given substring,
// newest first.
func (s *Store) Search(ctx context.Context, q string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + q + "%"

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, id, ts, query, response, sources, semantic_hash, chars
		 FROM interactions
		 WHERE query LIKE ? OR response LIKE ?
		 ORDER BY ts DESC LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var hit SearchHit
		var ts string
		var sources, hash sql.NullString
		err := rows.Scan(&hit.SessionID, &hit.Interaction.ID, &ts,
			&hit.Interaction.Query, &hit.Interaction.Response, &sources, &hash, &hit.Interaction.Length)
		if err != nil {
			return nil, err
		}
		hit.Interaction.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		if hash.Valid {
			hit.Interaction.SemanticHash = hash.String
		}
		if sources.Valid {
			json.Unmarshal([]byte(sources.String), &hit.Interaction.Sources)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// ExportAll returns every turn, optionally restricted to one session,
// ordered by session then time.
func (s *Store) ExportAll(ctx context.Context, sessionID string) ([]model.Interaction, error) {
	query := `SELECT id, ts, query, response, sources, semantic_hash, chars
	          FROM interactions ORDER BY session_id, ts`
	args := []interface{}{}
	if sessionID != "" {
		query = `SELECT id, ts, query, response, sources, semantic_hash, chars
		         FROM interactions WHERE session_id = ? ORDER BY ts`
		args = append(args, sessionID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// Clear removes a session and its turns.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM interactions WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// Stats holds database statistics.
type Stats struct {
	DBPath       string `json:"db_path"`
	DBSizeBytes  int64  `json:"db_size_bytes"`
	Sessions     int    `json:"sessions"`
	Interactions int    `json:"interactions"`
}

// Stats returns database statistics.
func (s *Store) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&st.Sessions)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interactions`).Scan(&st.Interactions)

	return st, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func scanInteractions(rows *sql.Rows) ([]model.Interaction, error) {
	var out []model.Interaction
	for rows.Next() {
		var it model.Interaction
		var ts string
		var sources, hash sql.NullString
		err := rows.Scan(&it.ID, &ts, &it.Query, &it.Response, &sources, &hash, &it.Length)
		if err != nil {
			return nil, err
		}
		it.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		if hash.Valid {
			it.SemanticHash = hash.String
		}
		if sources.Valid {
			json.Unmarshal([]byte(sources.String), &it.Sources)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
