package store

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestActionRepository_CRUD(t *testing.T) {
	s := newTestStore(t)
	actions := s.Actions()

	a := &Action{
		ID:         "act-1",
		Word:       " Obrigado ",
		Language:   "libras",
		PluginName: "speak",
		ActionName: "say",
		Config:     json.RawMessage(`{"voice":"pt-BR"}`),
		Enabled:    true,
	}
	if err := actions.Create(a); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := actions.GetByID("act-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Word != "obrigado" {
		t.Errorf("word = %q, want obrigado", got.Word)
	}
	if string(got.Config) != `{"voice":"pt-BR"}` {
		t.Errorf("config = %s", got.Config)
	}
	if !got.Enabled {
		t.Error("expected enabled")
	}

	got.Enabled = false
	got.Config = nil
	if err := actions.Update(got); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = actions.GetByID("act-1")
	if got.Enabled || string(got.Config) != "{}" {
		t.Errorf("update not applied: %+v", got)
	}

	if err := actions.Update(&Action{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: expected ErrNotFound, got %v", err)
	}
	if err := actions.Delete("act-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := actions.GetByID("act-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := actions.Delete("act-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestActionRepository_Match(t *testing.T) {
	s := newTestStore(t)
	actions := s.Actions()

	seed := []*Action{
		{ID: "exact", Word: "olá", Language: "libras", PluginName: "speak", ActionName: "say", Enabled: true},
		{ID: "any-lang", Word: "olá", PluginName: "type-word", ActionName: "type", Enabled: true},
		{ID: "wildcard", Word: AnyWord, Language: "libras", PluginName: "type-word", ActionName: "type", Enabled: true},
		{ID: "disabled", Word: "olá", Language: "libras", PluginName: "speak", ActionName: "say", Enabled: false},
		{ID: "other-lang", Word: "olá", Language: "lsm", PluginName: "speak", ActionName: "say", Enabled: true},
	}
	for _, a := range seed {
		if err := actions.Create(a); err != nil {
			t.Fatalf("create %s: %v", a.ID, err)
		}
	}

	tests := []struct {
		name     string
		language string
		word     string
		want     []string
	}{
		{"exact and wildcards", "libras", "OLÁ", []string{"exact", "any-lang", "wildcard"}},
		{"only wildcard", "libras", "casa", []string{"wildcard"}},
		{"other language", "lsm", "olá", []string{"any-lang", "other-lang"}},
		{"nothing bound", "lsm", "casa", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := actions.Match(tt.language, tt.word)
			if err != nil {
				t.Fatalf("match: %v", err)
			}
			ids := make(map[string]bool, len(got))
			for _, a := range got {
				ids[a.ID] = true
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %d actions", tt.want, len(got))
			}
			for _, id := range tt.want {
				if !ids[id] {
					t.Errorf("missing action %q", id)
				}
			}
		})
	}
}

func TestActionRepository_List(t *testing.T) {
	s := newTestStore(t)
	actions := s.Actions()

	list, err := actions.List(ActionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	seed := []*Action{
		{ID: "a", Word: "casa", Language: "libras", PluginName: "speak", ActionName: "say", Enabled: true},
		{ID: "b", Word: "casa", Language: "lsm", PluginName: "type-word", ActionName: "type", Enabled: true},
		{ID: "c", Word: AnyWord, PluginName: "speak", ActionName: "say", Enabled: true},
	}
	for _, a := range seed {
		if err := actions.Create(a); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter ActionFilter
		want   int
	}{
		{"all", ActionFilter{}, 3},
		{"language includes any-language bindings", ActionFilter{Language: "libras"}, 2},
		{"word", ActionFilter{Word: "CASA"}, 2},
		{"wildcard word", ActionFilter{Word: AnyWord}, 1},
		{"plugin", ActionFilter{Plugin: "type-word"}, 1},
		{"combined", ActionFilter{Language: "lsm", Plugin: "speak"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := actions.List(tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("List(%+v) = %d actions, want %d", tt.filter, len(got), tt.want)
			}
		})
	}
}

func TestActionRepository_CreateAssignsID(t *testing.T) {
	s := newTestStore(t)
	actions := s.Actions()

	a := &Action{Word: "água", PluginName: "speak", ActionName: "say", Enabled: true}
	if err := actions.Create(a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ID == "" {
		t.Fatal("expected a generated ID")
	}
	if _, err := actions.GetByID(a.ID); err != nil {
		t.Errorf("get generated ID: %v", err)
	}

	if err := actions.Create(&Action{Word: "  ", PluginName: "speak", ActionName: "say"}); err == nil {
		t.Error("expected error for a blank word")
	}
}

func TestActionRepository_SetEnabledAndDeletePlugin(t *testing.T) {
	s := newTestStore(t)
	actions := s.Actions()

	for _, id := range []string{"x", "y"} {
		if err := actions.Create(&Action{ID: id, Word: "olá", PluginName: "speak", ActionName: "say", Enabled: true}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if err := actions.SetEnabled("x", false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	matched, _ := actions.Match("libras", "olá")
	if len(matched) != 1 || matched[0].ID != "y" {
		t.Errorf("Match after disabling x = %v", matched)
	}
	if err := actions.SetEnabled("missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetEnabled missing: expected ErrNotFound, got %v", err)
	}

	n, err := actions.DeletePlugin("speak")
	if err != nil {
		t.Fatalf("DeletePlugin: %v", err)
	}
	if n != 2 {
		t.Errorf("DeletePlugin removed %d, want 2", n)
	}
}
