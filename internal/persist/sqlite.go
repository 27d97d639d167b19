package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS user_states (
	user_id     TEXT PRIMARY KEY,
	state_json  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_models (
	user_id     TEXT PRIMARY KEY,
	model_json  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_traces (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     TEXT NOT NULL,
	event_id    TEXT,
	trace_json  TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_traces_user ON decision_traces(user_id, created_at);
`

// #endregion

// #region store

// Store is the SQLite implementation of every persistence contract.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion

// #region state-repository

// LoadState implements StateRepository.
func (s *Store) LoadState(ctx context.Context, userID string) (strategy.UserState, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM user_states WHERE user_id = ?`, userID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return strategy.UserState{}, false, nil
	}
	if err != nil {
		return strategy.UserState{}, false, fmt.Errorf("load state %s: %w", userID, err)
	}

	var state strategy.UserState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return strategy.UserState{}, false, fmt.Errorf("unmarshal state %s: %w", userID, err)
	}
	state.Clamp()
	return state, true, nil
}

// SaveState implements StateRepository.
func (s *Store) SaveState(ctx context.Context, userID string, state strategy.UserState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state %s: %w", userID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_states (user_id, state_json, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at`,
		userID, string(raw), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save state %s: %w", userID, err)
	}
	return nil
}

// #endregion

// #region model-repository

// LoadModel implements ModelRepository.
func (s *Store) LoadModel(ctx context.Context, userID string) (ModelRecord, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT model_json FROM user_models WHERE user_id = ?`, userID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ModelRecord{}, false, nil
	}
	if err != nil {
		return ModelRecord{}, false, fmt.Errorf("load model %s: %w", userID, err)
	}

	var rec ModelRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return ModelRecord{}, false, fmt.Errorf("unmarshal model %s: %w", userID, err)
	}
	return rec, true, nil
}

// SaveModel implements ModelRepository.
func (s *Store) SaveModel(ctx context.Context, userID string, rec ModelRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal model %s: %w", userID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_models (user_id, model_json, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET model_json = excluded.model_json, updated_at = excluded.updated_at`,
		userID, string(raw), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save model %s: %w", userID, err)
	}
	return nil
}

// #endregion

// #region trace-store

// RecordDecisionTrace implements TraceStore.
func (s *Store) RecordDecisionTrace(ctx context.Context, trace DecisionTrace) error {
	raw, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	createdAt := trace.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decision_traces (user_id, event_id, trace_json, created_at) VALUES (?, ?, ?, ?)`,
		trace.UserID, trace.EventID, string(raw), createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record trace: %w", err)
	}
	return nil
}

// ListTraces returns the most recent traces for one user.
func (s *Store) ListTraces(ctx context.Context, userID string, limit int) ([]DecisionTrace, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT trace_json FROM decision_traces WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list traces %s: %w", userID, err)
	}
	defer rows.Close()

	var traces []DecisionTrace
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		var trace DecisionTrace
		if err := json.Unmarshal([]byte(raw), &trace); err != nil {
			return nil, fmt.Errorf("unmarshal trace: %w", err)
		}
		traces = append(traces, trace)
	}
	return traces, rows.Err()
}

// #endregion
