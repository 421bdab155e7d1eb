package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/concierged/concierge/pkg/convo"
)

// SQLiteStore is the canonical persistent storage for conversation
// contexts and agent tasks.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates/opens the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single-process dispatcher. Use one shared connection to avoid
	// writer lock contention with SQLite under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA temp_store=MEMORY;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS contexts (
			user_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			active_agent TEXT NOT NULL DEFAULT '',
			active_agent_turns_left INTEGER NOT NULL DEFAULT 0,
			pending_json TEXT NOT NULL DEFAULT '[]',
			topic TEXT NOT NULL DEFAULT '',
			last_intent TEXT NOT NULL DEFAULT '',
			keywords_json TEXT NOT NULL DEFAULT '[]',
			history_json TEXT NOT NULL DEFAULT '[]',
			started_at_ms INTEGER NOT NULL,
			last_activity_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			due_time TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT '',
			recipients TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			recurrence TEXT NOT NULL DEFAULT '',
			done INTEGER NOT NULL DEFAULT 0,
			created_at_ms INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS tasks_user_kind_idx ON tasks(user_id, kind, done, created_at_ms);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init sqlite schema failed on %q: %w", trimSQL(stmt), err)
		}
	}
	return nil
}

func trimSQL(sql string) string {
	line := strings.TrimSpace(sql)
	if len(line) > 96 {
		return line[:96] + "..."
	}
	return line
}

func nowMS() int64 { return time.Now().UnixMilli() }

func encodeJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// LoadContext returns the persisted snapshot for a user, or ErrNotFound.
func (s *SQLiteStore) LoadContext(ctx context.Context, userID string) (convo.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT state, active_agent, active_agent_turns_left,
		pending_json, topic, last_intent, keywords_json, history_json,
		started_at_ms, last_activity_ms
		FROM contexts WHERE user_id = ?`, userID)

	var snap convo.Snapshot
	var pendingJSON, keywordsJSON, historyJSON string
	var startedMS, activityMS int64
	err := row.Scan(&snap.State, &snap.ActiveAgent, &snap.ActiveAgentTurnsLeft,
		&pendingJSON, &snap.Topic, &snap.LastIntent, &keywordsJSON, &historyJSON,
		&startedMS, &activityMS)
	if err == sql.ErrNoRows {
		return convo.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return convo.Snapshot{}, fmt.Errorf("load context %s: %w", userID, err)
	}

	snap.UserID = userID
	if err := json.Unmarshal([]byte(pendingJSON), &snap.PendingRequests); err != nil {
		return convo.Snapshot{}, fmt.Errorf("decode pending requests for %s: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(keywordsJSON), &snap.Keywords); err != nil {
		return convo.Snapshot{}, fmt.Errorf("decode keywords for %s: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(historyJSON), &snap.History); err != nil {
		return convo.Snapshot{}, fmt.Errorf("decode history for %s: %w", userID, err)
	}
	snap.StartedAt = time.UnixMilli(startedMS).UTC()
	snap.LastActivity = time.UnixMilli(activityMS).UTC()
	return snap, nil
}

// SaveContext upserts the full snapshot for a user.
func (s *SQLiteStore) SaveContext(ctx context.Context, userID string, snap convo.Snapshot) error {
	pendingJSON, err := encodeJSON(orEmptySlice(snap.PendingRequests))
	if err != nil {
		return fmt.Errorf("encode pending requests for %s: %w", userID, err)
	}
	keywordsJSON, err := encodeJSON(orEmptyStrings(snap.Keywords))
	if err != nil {
		return fmt.Errorf("encode keywords for %s: %w", userID, err)
	}
	historyJSON, err := encodeJSON(orEmptyHistory(snap.History))
	if err != nil {
		return fmt.Errorf("encode history for %s: %w", userID, err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO contexts
		(user_id, state, active_agent, active_agent_turns_left, pending_json,
		 topic, last_intent, keywords_json, history_json, started_at_ms, last_activity_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		 state=excluded.state,
		 active_agent=excluded.active_agent,
		 active_agent_turns_left=excluded.active_agent_turns_left,
		 pending_json=excluded.pending_json,
		 topic=excluded.topic,
		 last_intent=excluded.last_intent,
		 keywords_json=excluded.keywords_json,
		 history_json=excluded.history_json,
		 last_activity_ms=excluded.last_activity_ms`,
		userID, snap.State, snap.ActiveAgent, snap.ActiveAgentTurnsLeft, pendingJSON,
		snap.Topic, snap.LastIntent, keywordsJSON, historyJSON,
		snap.StartedAt.UnixMilli(), snap.LastActivity.UnixMilli())
	if err != nil {
		return fmt.Errorf("save context %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteContext(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM contexts WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete context %s: %w", userID, err)
	}
	return nil
}

func orEmptySlice(in []convo.PendingRequest) []convo.PendingRequest {
	if in == nil {
		return []convo.PendingRequest{}
	}
	return in
}

func orEmptyStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func orEmptyHistory(in []convo.Interaction) []convo.Interaction {
	if in == nil {
		return []convo.Interaction{}
	}
	return in
}

// AddTask inserts a task record.
func (s *SQLiteStore) AddTask(ctx context.Context, task Task) error {
	now := nowMS()
	if task.CreatedAtMS == 0 {
		task.CreatedAtMS = now
	}
	task.UpdatedAtMS = now

	_, err := s.db.ExecContext(ctx, `INSERT INTO tasks
		(id, user_id, kind, title, due_time, priority, recipients, body, recurrence, done, created_at_ms, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.UserID, task.Kind, task.Title, task.Time, task.Priority,
		task.Recipients, task.Body, task.Recurrence, boolToInt(task.Done),
		task.CreatedAtMS, task.UpdatedAtMS)
	if err != nil {
		return fmt.Errorf("add task %s: %w", task.ID, err)
	}
	return nil
}

// ListTasks returns a user's open tasks of one kind, oldest first.
func (s *SQLiteStore) ListTasks(ctx context.Context, userID, kind string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, kind, title, due_time,
		priority, recipients, body, recurrence, done, created_at_ms, updated_at_ms
		FROM tasks WHERE user_id = ? AND kind = ? AND done = 0
		ORDER BY created_at_ms ASC, rowid ASC`, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("list tasks for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		var done int
		if err := rows.Scan(&t.ID, &t.UserID, &t.Kind, &t.Title, &t.Time, &t.Priority,
			&t.Recipients, &t.Body, &t.Recurrence, &done, &t.CreatedAtMS, &t.UpdatedAtMS); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Done = done != 0
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

// CompleteTask marks a task done.
func (s *SQLiteStore) CompleteTask(ctx context.Context, userID, taskID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET done = 1, updated_at_ms = ?
		WHERE user_id = ? AND id = ?`, nowMS(), userID, taskID)
	if err != nil {
		return fmt.Errorf("complete task %s: %w", taskID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete task %s: %w", taskID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
