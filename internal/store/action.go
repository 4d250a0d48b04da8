package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnyWord binds an action to every recognised word.
const AnyWord = "*"

// Action binds a recognised word to a plugin action.
type Action struct {
	ID         string
	Word       string
	Language   string // empty matches any language
	PluginName string
	ActionName string
	Config     json.RawMessage
	Enabled    bool
	CreatedAt  time.Time
}

// ActionFilter narrows List. Zero values match everything.
type ActionFilter struct {
	Language string // also matches bindings for any language
	Word     string
	Plugin   string
}

const actionColumns = `id, word, language, plugin_name, action_name, config, enabled, created_at`

// ActionRepository stores word-to-plugin bindings.
type ActionRepository struct {
	db *sql.DB
}

// Actions returns the action repository for this store.
func (s *Store) Actions() *ActionRepository {
	return &ActionRepository{db: s.db}
}

func normalizeBinding(word string) string {
	if word == AnyWord {
		return word
	}
	return NormalizeWord(word)
}

func configOrEmpty(config json.RawMessage) string {
	if len(config) == 0 {
		return "{}"
	}
	return string(config)
}

// Create inserts a binding. An empty ID gets a fresh UUID.
func (r *ActionRepository) Create(a *Action) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Word = normalizeBinding(a.Word)
	if a.Word == "" {
		return errors.New("word is required")
	}
	a.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO actions (`+actionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Word, a.Language, a.PluginName, a.ActionName, configOrEmpty(a.Config), a.Enabled, a.CreatedAt,
	)
	return err
}

// GetByID returns the binding with id, or ErrNotFound.
func (r *ActionRepository) GetByID(id string) (*Action, error) {
	a, err := scanAction(r.db.QueryRow(`SELECT `+actionColumns+` FROM actions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// Match returns the enabled bindings for word in language, wildcard
// bindings included, oldest first.
func (r *ActionRepository) Match(language, word string) ([]*Action, error) {
	return r.query(
		`SELECT `+actionColumns+` FROM actions
		 WHERE enabled = 1 AND (word = ? OR word = ?) AND (language = '' OR language = ?)
		 ORDER BY created_at, id`,
		NormalizeWord(word), AnyWord, language,
	)
}

// List returns the bindings matching f, newest first.
func (r *ActionRepository) List(f ActionFilter) ([]*Action, error) {
	var (
		where []string
		args  []any
	)
	if f.Language != "" {
		where = append(where, `(language = '' OR language = ?)`)
		args = append(args, f.Language)
	}
	if f.Word != "" {
		where = append(where, `word = ?`)
		args = append(args, normalizeBinding(f.Word))
	}
	if f.Plugin != "" {
		where = append(where, `plugin_name = ?`)
		args = append(args, f.Plugin)
	}

	q := `SELECT ` + actionColumns + ` FROM actions`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	return r.query(q+` ORDER BY created_at DESC, id`, args...)
}

func (r *ActionRepository) query(query string, args ...any) ([]*Action, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []*Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (*Action, error) {
	a := &Action{}
	var config string
	if err := row.Scan(&a.ID, &a.Word, &a.Language, &a.PluginName, &a.ActionName, &config, &a.Enabled, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Config = json.RawMessage(config)
	return a, nil
}

// Update rewrites a binding. It returns ErrNotFound for an unknown ID.
func (r *ActionRepository) Update(a *Action) error {
	a.Word = normalizeBinding(a.Word)
	return expectRow(r.db.Exec(
		`UPDATE actions SET word = ?, language = ?, plugin_name = ?, action_name = ?, config = ?, enabled = ?
		 WHERE id = ?`,
		a.Word, a.Language, a.PluginName, a.ActionName, configOrEmpty(a.Config), a.Enabled, a.ID,
	))
}

// SetEnabled switches a binding on or off.
func (r *ActionRepository) SetEnabled(id string, enabled bool) error {
	return expectRow(r.db.Exec(`UPDATE actions SET enabled = ? WHERE id = ?`, enabled, id))
}

// Delete removes a binding. It returns ErrNotFound for an unknown ID.
func (r *ActionRepository) Delete(id string) error {
	return expectRow(r.db.Exec(`DELETE FROM actions WHERE id = ?`, id))
}

// DeletePlugin removes every binding to plugin and reports how many went.
func (r *ActionRepository) DeletePlugin(plugin string) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM actions WHERE plugin_name = ?`, plugin)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// expectRow turns a statement that touched no rows into ErrNotFound.
func expectRow(result sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
