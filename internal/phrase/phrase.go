// Package phrase accumulates recognised words into a phrase.
package phrase

import (
	"strings"
	"sync"
)

// Phrase is an ordered list of words where no two adjacent entries are equal.
// It is safe for concurrent use.
type Phrase struct {
	mu    sync.RWMutex
	words []string
}

// New returns an empty phrase.
func New() *Phrase {
	return &Phrase{}
}

// Append adds word unless it is blank or identical to the last word.
// The comparison is exact and case-sensitive. It reports whether the word was added.
func (p *Phrase) Append(word string) bool {
	if strings.TrimSpace(word) == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.words); n > 0 && p.words[n-1] == word {
		return false
	}
	p.words = append(p.words, word)
	return true
}

// Words returns a copy of the words in order.
func (p *Phrase) Words() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.words))
	copy(out, p.words)
	return out
}

// Last returns the most recent word, or "" when empty.
func (p *Phrase) Last() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.words) == 0 {
		return ""
	}
	return p.words[len(p.words)-1]
}

// Len returns the number of words.
func (p *Phrase) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.words)
}

// Clear removes all words.
func (p *Phrase) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.words = nil
}

// String joins the words with spaces.
func (p *Phrase) String() string {
	return strings.Join(p.Words(), " ")
}
