// Package store persists conversations and long-term memories in a local
// sqlite database under the .tinker directory.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tinker/internal/embedding"
	"tinker/internal/logging"
)

// Store wraps the sqlite database.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// Turn is one recorded conversation exchange.
type Turn struct {
	TurnNumber int
	UserInput  string
	Intent     string
	Response   string
	StepsJSON  string
	CreatedAt  time.Time
}

// Memory is one long-term memory row.
type Memory struct {
	ID          int64
	Content     string
	Kind        string
	Embedding   []float32
	CreatedAt   time.Time
	AccessCount int
}

// ScoredMemory is a memory with its similarity to a query.
type ScoredMemory struct {
	Memory
	Score float64
}

// Stats summarizes database contents.
type Stats struct {
	Sessions int
	Turns    int
	Memories int
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection avoids SQLITE_BUSY between goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to enable WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set synchronous mode: %v", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("Opened database: %s", path)
	return s, nil
}

func (s *Store) initSchema() error {
	// UNIQUE(session_id, turn_number) makes turn recording idempotent.
	schema := `
	CREATE TABLE IF NOT EXISTS session_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		user_input TEXT,
		intent TEXT,
		response TEXT,
		steps_json TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(session_id, turn_number)
	);
	CREATE INDEX IF NOT EXISTS idx_session ON session_history(session_id);

	CREATE TABLE IF NOT EXISTS memories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'fact',
		embedding TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		access_count INTEGER NOT NULL DEFAULT 0
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// AppendTurn records a conversation turn.
// Uses INSERT OR IGNORE so replays of the same turn are silently skipped.
func (s *Store) AppendTurn(sessionID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Storing turn: session=%s turn=%d input_len=%d response_len=%d",
		sessionID, turn.TurnNumber, len(turn.UserInput), len(turn.Response))

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO session_history (session_id, turn_number, user_input, intent, response, steps_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, turn.TurnNumber, turn.UserInput, turn.Intent, turn.Response, turn.StepsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to store turn: %w", err)
	}
	return nil
}

// SessionHistory returns up to limit most recent turns of a session, in
// chronological order.
func (s *Store) SessionHistory(sessionID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT turn_number, user_input, intent, response, steps_json, created_at
		 FROM session_history
		 WHERE session_id = ?
		 ORDER BY turn_number DESC
		 LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query session history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.TurnNumber, &t.UserInput, &t.Intent, &t.Response, &t.StepsJSON, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	logging.StoreDebug("Retrieved %d turns for session=%s", len(turns), sessionID)
	return turns, nil
}

// NextTurnNumber returns the turn number the next exchange should use.
func (s *Store) NextTurnNumber(sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max sql.NullInt64
	err := s.db.QueryRow(
		`SELECT MAX(turn_number) FROM session_history WHERE session_id = ?`, sessionID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to query turn number: %w", err)
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

// InsertMemory stores a memory with its embedding. Returns the new row id.
func (s *Store) InsertMemory(content, kind string, vector []float32) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if content == "" {
		return 0, fmt.Errorf("memory content cannot be empty")
	}
	if kind == "" {
		kind = "fact"
	}

	embJSON, err := json.Marshal(vector)
	if err != nil {
		return 0, fmt.Errorf("failed to encode embedding: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO memories (content, kind, embedding) VALUES (?, ?, ?)`,
		content, kind, string(embJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert memory: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	logging.Store("Stored memory %d (kind=%s, %d chars)", id, kind, len(content))
	return id, nil
}

// ListMemories returns memories, newest first.
func (s *Store) ListMemories(limit int) ([]Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(
		`SELECT id, content, kind, embedding, created_at, access_count
		 FROM memories ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	return scanMemories(rows)
}

// DeleteMemory removes a memory by id. Returns false if it did not exist.
func (s *Store) DeleteMemory(id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SearchMemories scans all memories and returns the top matches by cosine
// similarity, highest first. Matches below minScore are dropped.
func (s *Store) SearchMemories(query []float32, limit int, minScore float64) ([]ScoredMemory, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SearchMemories")
	defer timer.Stop()

	s.mu.RLock()

	rows, err := s.db.Query(`SELECT id, content, kind, embedding, created_at, access_count FROM memories`)
	if err != nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}

	memories, err := scanMemories(rows)
	rows.Close()
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 5
	}

	var scored []ScoredMemory
	for _, m := range memories {
		sim, err := embedding.CosineSimilarity(query, m.Embedding)
		if err != nil {
			// Dimension mismatch happens when the embedding engine
			// changed since the row was written. Skip the row.
			logging.StoreDebug("Skipping memory %d: %v", m.ID, err)
			continue
		}
		if sim < minScore {
			continue
		}
		scored = append(scored, ScoredMemory{Memory: m, Score: sim})
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	s.touchMemories(scored)

	logging.StoreDebug("Memory search: %d candidates, %d above threshold", len(memories), len(scored))
	return scored, nil
}

func (s *Store) touchMemories(hits []ScoredMemory) {
	if len(hits) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, hit := range hits {
		if _, err := s.db.Exec(
			`UPDATE memories SET access_count = access_count + 1 WHERE id = ?`, hit.ID,
		); err != nil {
			logging.StoreDebug("Failed to bump access count for memory %d: %v", hit.ID, err)
		}
	}
}

// GetStats returns row counts.
func (s *Store) GetStats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	if err := s.db.QueryRow(`SELECT COUNT(DISTINCT session_id) FROM session_history`).Scan(&stats.Sessions); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM session_history`).Scan(&stats.Turns); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM memories`).Scan(&stats.Memories); err != nil {
		return stats, err
	}
	return stats, nil
}

func scanMemories(rows *sql.Rows) ([]Memory, error) {
	var memories []Memory
	for rows.Next() {
		var m Memory
		var embJSON string
		if err := rows.Scan(&m.ID, &m.Content, &m.Kind, &embJSON, &m.CreatedAt, &m.AccessCount); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		if err := json.Unmarshal([]byte(embJSON), &m.Embedding); err != nil {
			return nil, fmt.Errorf("failed to decode embedding for memory %d: %w", m.ID, err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}
