package app

import (
	"errors"

	"github.com/signamoz/signa/internal/gesture"
)

// SettingLanguage is the settings key holding the preferred language.
const SettingLanguage = "language"

var errNoStore = errors.New("no store configured")

// DefaultLanguage returns the preferred language, Libras unless changed.
func (a *App) DefaultLanguage() gesture.Language {
	st := a.config.Store
	if st == nil {
		return gesture.Libras
	}
	lang := gesture.Language(st.Settings().GetDefault(SettingLanguage, string(gesture.Libras)))
	if !lang.Valid() {
		return gesture.Libras
	}
	return lang
}

// SetDefaultLanguage persists the preferred language.
func (a *App) SetDefaultLanguage(lang gesture.Language) error {
	if !lang.Valid() {
		_, err := gesture.ParseLanguage(string(lang))
		return err
	}
	st := a.config.Store
	if st == nil {
		return errNoStore
	}
	return st.Settings().Set(SettingLanguage, string(lang))
}

// ParseLanguage validates s, falling back to the preferred language when
// s is empty.
func (a *App) ParseLanguage(s string) (gesture.Language, error) {
	if s == "" {
		return a.DefaultLanguage(), nil
	}
	return gesture.ParseLanguage(s)
}
