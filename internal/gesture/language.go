package gesture

import "fmt"

// Language identifies a supported sign language.
type Language string

const (
	// Libras is Brazilian Sign Language.
	Libras Language = "libras"
	// LSM is Mozambican Sign Language.
	LSM Language = "lsm"
)

var languageLabels = map[Language]string{
	Libras: "Libras (Brasil)",
	LSM:    "Língua Gestual Moçambicana",
}

// Languages lists supported languages in display order.
func Languages() []Language {
	return []Language{Libras, LSM}
}

// Label returns the human readable name.
func (l Language) Label() string {
	if label, ok := languageLabels[l]; ok {
		return label
	}
	return string(l)
}

// Valid reports whether l is supported.
func (l Language) Valid() bool {
	_, ok := languageLabels[l]
	return ok
}

// ParseLanguage validates a language code. Empty means Libras.
func ParseLanguage(s string) (Language, error) {
	if s == "" {
		return Libras, nil
	}
	l := Language(s)
	if !l.Valid() {
		return "", fmt.Errorf("unsupported language %q", s)
	}
	return l, nil
}
