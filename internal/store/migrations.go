package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Signs table - known words per sign language with a short description
		`CREATE TABLE IF NOT EXISTS signs (
			language TEXT NOT NULL,
			word TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			builtin INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (language, word)
		)`,

		// Recognitions table - words accepted into a phrase
		`CREATE TABLE IF NOT EXISTS recognitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			language TEXT NOT NULL,
			word TEXT NOT NULL,
			source TEXT NOT NULL CHECK(source IN ('stream', 'image', 'vision', 'video')),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Actions table - plugin actions to run when a word is recognised.
		// word '*' matches any word; language '' matches any language.
		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			word TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT '',
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_recognitions_session_id ON recognitions(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recognitions_created_at ON recognitions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_word ON actions(word)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
