package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the State Repository backed by modernc.org/sqlite, a
// pure-Go sqlite driver so the gateway keeps a hermetic, cgo-free build.
type SQLiteStore struct {
	db     *sql.DB
	log    *slog.Logger
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (creating if absent) the sqlite database at path.
// Use ":memory:" for an ephemeral store, as tests do.
func NewSQLiteStore(path string, log *slog.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: serialize writers per process
	return &SQLiteStore{db: db, log: log}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS store (
	key       TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	value     TEXT NOT NULL
);
`

func (s *SQLiteStore) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: initialize schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false
	}

	var value, ts string
	row := s.db.QueryRowContext(ctx, `SELECT value, timestamp FROM store WHERE key = ?`, id)
	if err := row.Scan(&value, &ts); err != nil {
		if err != sql.ErrNoRows {
			s.log.Warn("store: load failed", "id", id, "error", err)
		}
		return nil, false
	}

	return annotateTimestamp(json.RawMessage(value), ts), true
}

// annotateTimestamp merges a "_timestamp" field into value if it is a JSON
// object; non-object values are returned unchanged.
func annotateTimestamp(value json.RawMessage, ts string) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(value, &obj); err != nil {
		return value
	}
	tsJSON, _ := json.Marshal(ts)
	obj["_timestamp"] = tsJSON
	out, err := json.Marshal(obj)
	if err != nil {
		return value
	}
	return out
}

func (s *SQLiteStore) Save(ctx context.Context, id string, value json.RawMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.log.Warn("store: save after close rejected", "id", id)
		return false
	}
	return s.save(ctx, id, value)
}

func (s *SQLiteStore) save(ctx context.Context, id string, value json.RawMessage) bool {
	ts := time.Now().Format(TimestampLayout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO store (key, timestamp, value) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET timestamp = excluded.timestamp, value = excluded.value
	`, id, ts, string(value))
	if err != nil {
		s.log.Error("store: save failed", "id", id, "error", err)
		return false
	}
	return true
}

func (s *SQLiteStore) BulkSave(ctx context.Context, values map[string]json.RawMessage) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make(map[string]bool, len(values))
	if s.closed {
		for id := range values {
			results[id] = false
		}
		return results
	}
	for id, value := range values {
		results[id] = s.save(ctx, id, value)
	}
	return results
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM store WHERE key = ?`, id)
	if err != nil {
		s.log.Error("store: delete failed", "id", id, "error", err)
		return false
	}
	return true
}

func (s *SQLiteStore) ListEntities(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key FROM store`)
	if err != nil {
		return nil, fmt.Errorf("store: list entities: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("store: list entities scan: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
