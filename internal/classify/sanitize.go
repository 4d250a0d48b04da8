package classify

import (
	"regexp"
	"strings"
)

// Unknown is the word reported when an image shows no recognisable sign.
const Unknown = "desconhecido"

var (
	punctuation       = regexp.MustCompile("[.!?,;:\\-\"'`]")
	visionPunctuation = regexp.MustCompile("[.!?,;:\\-\"'`()\\[\\]{}]")
	leadingArticle    = regexp.MustCompile(`^(o|a|os|as|um|uma|uns|umas|de|do|da|dos|das|para|por)\s+`)
	validWord         = regexp.MustCompile(`^[a-záéíóúàâãêôõç\s]+$`)
)

// VisionWords are the only answers accepted from the vision model.
var VisionWords = []string{
	"olá", "obrigado", "comer", "beber", "amor", "por favor", "eu", "você",
	"pai", "mãe", "casa", "ajuda", "bom", "dois", "cinco", "três", "ok", "um",
}

var visionAllowed = func() map[string]struct{} {
	m := make(map[string]struct{}, len(VisionWords))
	for _, w := range VisionWords {
		m[w] = struct{}{}
	}
	return m
}()

// Sanitize normalises a model reply into a single lowercase Portuguese word
// or short expression. It fails on empty replies and replies containing
// digits or symbols.
func Sanitize(raw string) (string, error) {
	word := strings.TrimSpace(strings.ToLower(raw))
	if word == "" {
		return "", ErrEmptyResponse
	}
	word = strings.TrimSpace(punctuation.ReplaceAllString(word, ""))
	word = strings.TrimSpace(leadingArticle.ReplaceAllString(word, ""))
	if word == "" {
		return "", ErrEmptyResponse
	}
	if !validWord.MatchString(word) {
		return "", &InvalidResponseError{Reply: raw}
	}
	return word, nil
}

// SanitizeVision maps a vision model reply onto VisionWords, returning
// Unknown for anything else.
func SanitizeVision(raw string) string {
	word := strings.ToLower(strings.TrimSpace(raw))
	word = strings.TrimSpace(visionPunctuation.ReplaceAllString(word, ""))
	if _, ok := visionAllowed[word]; ok {
		return word
	}
	return Unknown
}
