package store

import (
	"database/sql"
	"time"
)

// Recognition is a word accepted into a session's phrase.
type Recognition struct {
	ID        int64
	SessionID string
	Language  string
	Word      string
	Source    string
	CreatedAt time.Time
}

// RecognitionRepository records and queries recognition history.
type RecognitionRepository struct {
	db *sql.DB
}

// Recognitions returns the recognition repository for this store.
func (s *Store) Recognitions() *RecognitionRepository {
	return &RecognitionRepository{db: s.db}
}

// Create inserts a recognition and fills in its ID.
func (r *RecognitionRepository) Create(rec *Recognition) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	result, err := r.db.Exec(
		`INSERT INTO recognitions (session_id, language, word, source, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Language, rec.Word, rec.Source, rec.CreatedAt,
	)
	if err != nil {
		return err
	}
	rec.ID, err = result.LastInsertId()
	return err
}

// List returns recognitions newest first. An empty sessionID lists all
// sessions; limit <= 0 means 100.
func (r *RecognitionRepository) List(sessionID string, limit int) ([]*Recognition, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, session_id, language, word, source, created_at FROM recognitions`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Recognition
	for rows.Next() {
		rec := &Recognition{}
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Language, &rec.Word, &rec.Source, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSession removes the history of one session and reports how many rows went.
func (r *RecognitionRepository) DeleteSession(sessionID string) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM recognitions WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
