// Package tray provides a system tray menu for controlling Signa capture.
package tray

import (
	"strings"
	"sync"

	"github.com/getlantern/systray"
)

const maxPhraseTitle = 40

// Tray represents the system tray application.
type Tray struct {
	onToggle func(capturing bool) error
	onClear  func()
	onOpen   func()
	onQuit   func()
	capture  bool
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuLastWord *systray.MenuItem
	menuPhrase   *systray.MenuItem
}

// New creates a new Tray with capture stopped.
func New() *Tray {
	return &Tray{}
}

// OnToggle sets the callback run when capture is switched on or off. If it
// returns an error the menu keeps its previous state.
func (t *Tray) OnToggle(fn func(capturing bool) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnClear sets the callback for the clear-phrase item.
func (t *Tray) OnClear(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClear = fn
}

// OnOpen sets the callback for the open-in-browser item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Signa")
	systray.SetTooltip("Signa - reconhecimento de sinais")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(false), "Iniciar ou parar a captura")
	systray.AddSeparator()
	t.menuLastWord = systray.AddMenuItem("Palavra: -", "Última palavra reconhecida")
	t.menuLastWord.Disable()
	t.menuPhrase = systray.AddMenuItem("Frase: -", "Frase atual")
	t.menuPhrase.Disable()
	t.mu.Unlock()

	menuClear := systray.AddMenuItem("Limpar frase", "Limpar a frase atual")
	systray.AddSeparator()
	menuOpen := systray.AddMenuItem("Abrir no navegador", "Abrir a interface web")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Sair", "Encerrar o Signa")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuClear.ClickedCh:
				t.call(func() func() { return t.onClear })
			case <-menuOpen.ClickedCh:
				t.call(func() func() { return t.onOpen })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func toggleTitle(capturing bool) string {
	if capturing {
		return "● Capturando"
	}
	return "○ Captura parada"
}

// handleToggle flips capture. The callback runs outside the lock.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	want := !t.capture
	callback := t.onToggle
	t.mu.RUnlock()

	if callback != nil {
		if err := callback(want); err != nil {
			return
		}
	}
	t.SetCapturing(want)
}

func (t *Tray) call(get func() func()) {
	t.mu.RLock()
	fn := get()
	t.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// SetCapturing updates the toggle without running the callback, for capture
// that stops on its own.
func (t *Tray) SetCapturing(capturing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.capture = capturing
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(capturing))
	}
}

// SetWord shows the last recognised word and the phrase so far.
func (t *Tray) SetWord(word string, phrase []string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastWord != nil {
		if word == "" {
			word = "-"
		}
		t.menuLastWord.SetTitle("Palavra: " + word)
	}
	if t.menuPhrase != nil {
		t.menuPhrase.SetTitle("Frase: " + PhraseTitle(phrase))
	}
}

// PhraseTitle renders a phrase for the menu, keeping its tail when long.
func PhraseTitle(phrase []string) string {
	text := strings.Join(phrase, " ")
	if text == "" {
		return "-"
	}
	r := []rune(text)
	if len(r) > maxPhraseTitle {
		return "…" + string(r[len(r)-maxPhraseTitle+1:])
	}
	return text
}

// Capturing returns the current toggle state.
func (t *Tray) Capturing() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.capture
}
