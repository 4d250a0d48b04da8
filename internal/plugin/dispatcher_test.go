package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/signamoz/signa/internal/logging"
	"github.com/signamoz/signa/internal/store"
)

type stubMatcher struct {
	actions []*store.Action
	err     error
	calls   [][2]string
}

func (m *stubMatcher) Match(language, word string) ([]*store.Action, error) {
	m.calls = append(m.calls, [2]string{language, word})
	return m.actions, m.err
}

func newEchoManager(t *testing.T) *Manager {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	root := t.TempDir()
	dir := writeManifest(t, root, "echo", Manifest{
		Name:       "echo",
		Executable: "echo.sh",
		Actions:    []string{"say"},
	})
	script := "#!/bin/sh\nINPUT=$(cat)\necho \"{\\\"success\\\":true,\\\"data\\\":$INPUT}\"\n"
	if err := os.WriteFile(filepath.Join(dir, "echo.sh"), []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	m := NewManager(root)
	m.SetLogger(logging.NewTestLogger())
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	return m
}

func TestDispatcher_Dispatch(t *testing.T) {
	matcher := &stubMatcher{actions: []*store.Action{
		{ID: "a1", Word: "olá", PluginName: "echo", ActionName: "say", Config: json.RawMessage(`{"voice":"pt"}`), Enabled: true},
		{ID: "a2", Word: "olá", PluginName: "missing", ActionName: "say", Enabled: true},
		{ID: "a3", Word: "olá", PluginName: "echo", ActionName: "shout", Enabled: true},
	}}
	d := NewDispatcher(newEchoManager(t), NewExecutor(5000), matcher, logging.NewTestLogger())

	results, err := d.Dispatch(context.Background(), "s-1", "libras", "olá")
	if err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}
	if len(matcher.calls) != 1 || matcher.calls[0] != [2]string{"libras", "olá"} {
		t.Errorf("unexpected match calls: %v", matcher.calls)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	ok := results[0]
	if ok.Error != "" || ok.Response == nil || !ok.Response.Success {
		t.Fatalf("first action should succeed: %+v", ok)
	}
	var req Request
	if err := json.Unmarshal(ok.Response.Data, &req); err != nil {
		t.Fatalf("decode echoed request: %v", err)
	}
	if req.Word != "olá" || req.Session != "s-1" || req.Action != "say" || string(req.Config) != `{"voice":"pt"}` {
		t.Errorf("unexpected request: %+v", req)
	}

	if results[1].Error == "" {
		t.Error("missing plugin should be reported")
	}
	if results[2].Error == "" {
		t.Error("undeclared action should be reported")
	}
}

func TestDispatcher_MatchError(t *testing.T) {
	want := errors.New("db closed")
	d := NewDispatcher(NewManager(t.TempDir()), NewExecutor(100), &stubMatcher{err: want}, logging.NewTestLogger())

	if _, err := d.Dispatch(context.Background(), "s", "libras", "casa"); !errors.Is(err, want) {
		t.Errorf("expected wrapped match error, got %v", err)
	}
}

func TestDispatcher_WithStore(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer s.Close()

	if err := s.Actions().Create(&store.Action{ID: "x", Word: store.AnyWord, PluginName: "echo", ActionName: "say", Enabled: true}); err != nil {
		t.Fatalf("create action: %v", err)
	}

	d := NewDispatcher(newEchoManager(t), NewExecutor(5000), s.Actions(), logging.NewTestLogger())
	results, err := d.Dispatch(context.Background(), "s", "lsm", "hola")
	if err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}
	if len(results) != 1 || results[0].Error != "" {
		t.Errorf("wildcard binding should run once: %+v", results)
	}
}
