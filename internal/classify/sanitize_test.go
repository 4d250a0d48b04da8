package classify

import (
	"errors"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{"plain", "olá", "olá", nil},
		{"case and spaces", "  Obrigado \n", "obrigado", nil},
		{"punctuation", `"Comer!"`, "comer", nil},
		{"backtick", "`casa`", "casa", nil},
		{"hyphen", "bem-vindo", "bemvindo", nil},
		{"leading article", "A casa", "casa", nil},
		{"leading preposition", "para ajuda.", "ajuda", nil},
		{"only first article stripped", "o o pai", "o pai", nil},
		{"two words", "por favor", "favor", nil},
		{"accented", "Mãe", "mãe", nil},
		{"cedilla", "Açúcar", "açúcar", nil},
		{"article alone kept", "a", "a", nil},
		{"empty", "", "", ErrEmptyResponse},
		{"whitespace", "   ", "", ErrEmptyResponse},
		{"only punctuation", "?!", "", ErrEmptyResponse},
		{"digits", "olá 2", "", ErrInvalidResponse},
		{"sentence with symbols", "a palavra é: olá (talvez)", "", ErrInvalidResponse},
		{"english letters outside set", "naïve", "", ErrInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Sanitize(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Sanitize(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSanitizeVision(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"olá", "olá"},
		{"Obrigado.", "obrigado"},
		{"(por favor)", "por favor"},
		{"[três]", "três"},
		{" OK ", "ok"},
		{"tchau", Unknown},
		{"", Unknown},
		{"desconhecido", Unknown},
		{"o pai", Unknown},
	}
	for _, tt := range tests {
		if got := SanitizeVision(tt.raw); got != tt.want {
			t.Errorf("SanitizeVision(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
