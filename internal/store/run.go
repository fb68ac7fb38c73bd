package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/doubleup/internal/model"
)

type RunStore struct {
	db *sql.DB
}

func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

const runColumns = `id, extract, status, persons, households, doubling_up, ambiguous, error_message, started_at, completed_at`

func scanRun(scanner interface{ Scan(...any) error }) (*model.Run, error) {
	var r model.Run
	var errMsg sql.NullString
	var completedAt sql.NullTime
	err := scanner.Scan(&r.ID, &r.Extract, &r.Status, &r.Persons, &r.Households, &r.DoublingUp, &r.Ambiguous, &errMsg, &r.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	r.ErrorMessage = errMsg.String
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return &r, nil
}

// Create records a new running run for the extract.
func (s *RunStore) Create(extract string) (*model.Run, error) {
	now := time.Now().UTC()
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, extract, status, started_at) VALUES (?, ?, ?, ?)`,
		id, extract, model.RunStatusRunning, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return &model.Run{ID: id, Extract: extract, Status: model.RunStatusRunning, StartedAt: now}, nil
}

func (s *RunStore) GetByID(id string) (*model.Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// Latest returns the most recently completed run, or nil.
func (s *RunStore) Latest() (*model.Run, error) {
	r, err := scanRun(s.db.QueryRow(
		`SELECT `+runColumns+` FROM runs WHERE status = ? ORDER BY completed_at DESC LIMIT 1`,
		model.RunStatusCompleted,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return r, nil
}

func (s *RunStore) List(limit int) ([]model.Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// Finish marks the run completed with its counts and encoded summary.
func (s *RunStore) Finish(r *model.Run, summary []byte) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, persons = ?, households = ?, doubling_up = ?, ambiguous = ?, summary = ?, completed_at = ?
		 WHERE id = ?`,
		model.RunStatusCompleted, r.Persons, r.Households, r.DoublingUp, r.Ambiguous, string(summary), now, r.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.ID, err)
	}
	r.Status = model.RunStatusCompleted
	r.CompletedAt = &now
	return nil
}

func (s *RunStore) Fail(id string, errorMsg string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		model.RunStatusFailed, errorMsg, now, id,
	)
	if err != nil {
		return fmt.Errorf("fail run %s: %w", id, err)
	}
	return nil
}

// Summary returns the encoded summary stored by Finish, or nil if the run
// has none.
func (s *RunStore) Summary(id string) ([]byte, error) {
	var summary sql.NullString
	err := s.db.QueryRow(`SELECT summary FROM runs WHERE id = ?`, id).Scan(&summary)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run summary %s: %w", id, err)
	}
	if !summary.Valid {
		return nil, nil
	}
	return []byte(summary.String), nil
}
