package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/interviewer/internal/model"

	_ "modernc.org/sqlite"
)

// Store persists users, auth tokens and interview sessions in SQLite.
type Store struct {
	db *sql.DB
}

var openDB = sql.Open

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	db, err := openDB("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'candidate',
		resume TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		gender TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS interviews (
		id TEXT PRIMARY KEY,
		owner_id INTEGER NOT NULL,
		round_type TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		candidate_response TEXT NOT NULL DEFAULT '',
		score TEXT NOT NULL DEFAULT '{}',
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_interviews_owner ON interviews(owner_id, round_type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// scoreDoc is the persisted form of the session's score union.
type scoreDoc struct {
	GD        *model.GDScore         `json:"gd,omitempty"`
	Questions []model.QuestionEntry  `json:"questions,omitempty"`
	Final     *model.FinalEvaluation `json:"final,omitempty"`
}

func encodeScore(sess *model.InterviewSession) (string, error) {
	b, err := json.Marshal(scoreDoc{GD: sess.GD, Questions: sess.Questions, Final: sess.Final})
	if err != nil {
		return "", fmt.Errorf("encode score: %w", err)
	}
	return string(b), nil
}

func decodeScore(raw string, sess *model.InterviewSession) error {
	var doc scoreDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("decode score for interview %s: %w", sess.ID, err)
	}
	sess.GD = doc.GD
	sess.Questions = doc.Questions
	sess.Final = doc.Final
	return nil
}

// CreateInterview inserts a new session, assigning its ID, version and
// timestamps.
func (s *Store) CreateInterview(ctx context.Context, sess *model.InterviewSession) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	score, err := encodeScore(sess)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO interviews (id, owner_id, round_type, topic, candidate_response, score, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		id, sess.OwnerID, sess.Round, sess.Topic, sess.CandidateResponse, score, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert interview: %w", err)
	}
	sess.ID = id
	sess.Version = 1
	sess.CreatedAt = now
	sess.UpdatedAt = now
	return nil
}

const interviewColumns = `id, owner_id, round_type, topic, candidate_response, score, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInterview(row rowScanner) (*model.InterviewSession, error) {
	var sess model.InterviewSession
	var score string
	if err := row.Scan(&sess.ID, &sess.OwnerID, &sess.Round, &sess.Topic, &sess.CandidateResponse,
		&score, &sess.Version, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeScore(score, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetInterview returns a session by ID, or model.ErrNotFound.
func (s *Store) GetInterview(ctx context.Context, id string) (*model.InterviewSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE id = ?`, id)
	sess, err := scanInterview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("interview %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get interview %s: %w", id, err)
	}
	return sess, nil
}

// UpdateInterview writes the full session if its version still matches the
// stored one. A concurrent writer that got there first yields
// model.ErrConflict and nothing is written. On success sess.Version is bumped.
func (s *Store) UpdateInterview(ctx context.Context, sess *model.InterviewSession) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	score, err := encodeScore(sess)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE interviews SET topic = ?, candidate_response = ?, score = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		sess.Topic, sess.CandidateResponse, score, now, sess.ID, sess.Version,
	)
	if err != nil {
		return fmt.Errorf("update interview %s: %w", sess.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interviews WHERE id = ?`, sess.ID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("interview %s: %w", sess.ID, model.ErrNotFound)
		}
		return fmt.Errorf("interview %s was modified concurrently: %w", sess.ID, model.ErrConflict)
	}
	sess.Version++
	sess.UpdatedAt = now
	return nil
}

// DeleteInterview removes a session.
func (s *Store) DeleteInterview(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM interviews WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete interview %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("interview %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// InterviewFilter narrows ListInterviews. Zero values mean no filtering.
type InterviewFilter struct {
	OwnerID int64
	Round   model.RoundType
}

// ListInterviews returns sessions matching the filter, oldest first.
func (s *Store) ListInterviews(ctx context.Context, f InterviewFilter) ([]model.InterviewSession, error) {
	query := `SELECT ` + interviewColumns + ` FROM interviews WHERE 1=1`
	var args []any
	if f.OwnerID != 0 {
		query += ` AND owner_id = ?`
		args = append(args, f.OwnerID)
	}
	if f.Round != "" {
		query += ` AND round_type = ?`
		args = append(args, f.Round)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	interviews := []model.InterviewSession{}
	for rows.Next() {
		sess, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		interviews = append(interviews, *sess)
	}
	return interviews, rows.Err()
}
