package store

import (
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"
)

// Sign is a known word in a sign language.
type Sign struct {
	Language    string
	Word        string
	Description string
	Builtin     bool
	CreatedAt   time.Time
}

// SignRepository provides CRUD operations for the sign vocabulary.
type SignRepository struct {
	db *sql.DB
}

// Signs returns the sign repository for this store.
func (s *Store) Signs() *SignRepository {
	return &SignRepository{db: s.db}
}

// NormalizeWord lowercases and trims a word for lookup.
func NormalizeWord(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// Seed inserts the built-in vocabulary, leaving existing rows untouched.
func (r *SignRepository) Seed() error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO signs (language, word, description, builtin) VALUES (?, ?, ?, 1)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	languages := make([]string, 0, len(builtinSigns))
	for lang := range builtinSigns {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	for _, lang := range languages {
		for _, sign := range builtinSigns[lang] {
			if _, err := stmt.Exec(lang, sign.Word, sign.Description); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// Upsert inserts a sign or updates its description.
func (r *SignRepository) Upsert(sg *Sign) error {
	sg.Word = NormalizeWord(sg.Word)
	if sg.Word == "" || sg.Language == "" {
		return errors.New("language and word are required")
	}
	if sg.CreatedAt.IsZero() {
		sg.CreatedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO signs (language, word, description, builtin, created_at)
		 VALUES (?, ?, ?, 0, ?)
		 ON CONFLICT(language, word) DO UPDATE SET description = excluded.description`,
		sg.Language, sg.Word, sg.Description, sg.CreatedAt,
	)
	return err
}

// Get retrieves a sign by language and word. The word is normalised first.
func (r *SignRepository) Get(language, word string) (*Sign, error) {
	sg := &Sign{}
	var builtin int

	err := r.db.QueryRow(
		`SELECT language, word, description, builtin, created_at
		 FROM signs WHERE language = ? AND word = ?`,
		language, NormalizeWord(word),
	).Scan(&sg.Language, &sg.Word, &sg.Description, &builtin, &sg.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	sg.Builtin = builtin != 0
	return sg, nil
}

// Describe returns the description of a word, or "" if it is unknown.
func (r *SignRepository) Describe(language, word string) (string, error) {
	sg, err := r.Get(language, word)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return sg.Description, nil
}

// List retrieves the signs of a language ordered by word. An empty language lists all.
func (r *SignRepository) List(language string) ([]*Sign, error) {
	query := `SELECT language, word, description, builtin, created_at FROM signs`
	var args []any
	if language != "" {
		query += ` WHERE language = ?`
		args = append(args, language)
	}
	query += ` ORDER BY language, word`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signs []*Sign
	for rows.Next() {
		sg := &Sign{}
		var builtin int
		if err := rows.Scan(&sg.Language, &sg.Word, &sg.Description, &builtin, &sg.CreatedAt); err != nil {
			return nil, err
		}
		sg.Builtin = builtin != 0
		signs = append(signs, sg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return signs, nil
}

// Words returns the known words of a language.
func (r *SignRepository) Words(language string) ([]string, error) {
	signs, err := r.List(language)
	if err != nil {
		return nil, err
	}
	words := make([]string, len(signs))
	for i, sg := range signs {
		words[i] = sg.Word
	}
	return words, nil
}

// Delete removes a sign.
func (r *SignRepository) Delete(language, word string) error {
	result, err := r.db.Exec(`DELETE FROM signs WHERE language = ? AND word = ?`, language, NormalizeWord(word))
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
