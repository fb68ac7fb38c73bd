package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/doubleup/internal/model"
)

type ArchiveStore struct {
	db *sql.DB
}

func NewArchiveStore(db *sql.DB) *ArchiveStore {
	return &ArchiveStore{db: db}
}

const archiveColumns = `id, run_id, filename, s3_key, size_bytes, status, error_message, started_at, completed_at, created_at`

func scanArchive(scanner interface{ Scan(...any) error }) (*model.Archive, error) {
	var a model.Archive
	var runID, errMsg sql.NullString
	var startedAt, completedAt sql.NullTime
	err := scanner.Scan(&a.ID, &runID, &a.Filename, &a.S3Key, &a.SizeBytes, &a.Status, &errMsg, &startedAt, &completedAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.RunID = runID.String
	a.ErrorMessage = errMsg.String
	if startedAt.Valid {
		a.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return &a, nil
}

// Create records a pending archive. An empty runID means the archive is not
// tied to a single run.
func (s *ArchiveStore) Create(runID, filename, s3Key string) (*model.Archive, error) {
	now := time.Now().UTC()
	var run *string
	if runID != "" {
		run = &runID
	}
	result, err := s.db.Exec(
		`INSERT INTO archives (run_id, filename, s3_key, status, started_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run, filename, s3Key, model.ArchiveStatusPending, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	id, _ := result.LastInsertId()
	return &model.Archive{
		ID:        id,
		RunID:     runID,
		Filename:  filename,
		S3Key:     s3Key,
		Status:    model.ArchiveStatusPending,
		StartedAt: &now,
		CreatedAt: now,
	}, nil
}

func (s *ArchiveStore) GetByID(id int64) (*model.Archive, error) {
	a, err := scanArchive(s.db.QueryRow(`SELECT `+archiveColumns+` FROM archives WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get archive %d: %w", id, err)
	}
	return a, nil
}

// GetByKey finds an archive by its object key.
func (s *ArchiveStore) GetByKey(key string) (*model.Archive, error) {
	a, err := scanArchive(s.db.QueryRow(`SELECT `+archiveColumns+` FROM archives WHERE s3_key = ?`, key))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get archive %s: %w", key, err)
	}
	return a, nil
}

func (s *ArchiveStore) List(limit int) ([]model.Archive, error) {
	rows, err := s.db.Query(
		`SELECT `+archiveColumns+` FROM archives ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	var archives []model.Archive
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		archives = append(archives, *a)
	}
	return archives, rows.Err()
}

func (s *ArchiveStore) UpdateStatus(id int64, status model.ArchiveStatus, errorMsg string) error {
	var errPtr *string
	if errorMsg != "" {
		errPtr = &errorMsg
	}
	_, err := s.db.Exec(
		`UPDATE archives SET status = ?, error_message = ? WHERE id = ?`,
		status, errPtr, id,
	)
	if err != nil {
		return fmt.Errorf("update archive status: %w", err)
	}
	return nil
}

func (s *ArchiveStore) UpdateCompleted(id, sizeBytes int64) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE archives SET status = ?, size_bytes = ?, completed_at = ? WHERE id = ?`,
		model.ArchiveStatusCompleted, sizeBytes, now, id,
	)
	if err != nil {
		return fmt.Errorf("update archive completed: %w", err)
	}
	return nil
}

// DeleteOlderThan deletes archives older than the given time and returns the S3 keys of deleted archives.
func (s *ArchiveStore) DeleteOlderThan(before time.Time) ([]string, error) {
	rows, err := s.db.Query(`SELECT s3_key FROM archives WHERE created_at < ?`, before)
	if err != nil {
		return nil, fmt.Errorf("select old archives: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan s3 key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(`DELETE FROM archives WHERE created_at < ?`, before); err != nil {
		return nil, fmt.Errorf("delete old archives: %w", err)
	}
	return keys, nil
}

func (s *ArchiveStore) LatestCompleted() (*model.Archive, error) {
	a, err := scanArchive(s.db.QueryRow(
		`SELECT `+archiveColumns+` FROM archives WHERE status = ? ORDER BY completed_at DESC LIMIT 1`,
		model.ArchiveStatusCompleted,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest completed archive: %w", err)
	}
	return a, nil
}
