package plugin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/signamoz/signa/internal/store"
)

// Binding is a stored word-to-plugin action.
type Binding = store.Action

// Matcher finds the bindings for a recognised word.
type Matcher interface {
	Match(language, word string) ([]*store.Action, error)
}

// Result records one plugin run triggered by a word.
type Result struct {
	ActionID string    `json:"action_id"`
	Plugin   string    `json:"plugin"`
	Action   string    `json:"action"`
	Response *Response `json:"response,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Dispatcher runs the plugins bound to recognised words.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	matcher  Matcher
	log      logrus.FieldLogger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(manager *Manager, executor *Executor, matcher Matcher, log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{manager: manager, executor: executor, matcher: matcher, log: log}
}

// Dispatch runs every enabled binding for word in order. A failing plugin
// does not stop the others; its error is reported in the result.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID, language, word string) ([]Result, error) {
	bindings, err := d.matcher.Match(language, word)
	if err != nil {
		return nil, fmt.Errorf("match actions: %w", err)
	}

	results := make([]Result, 0, len(bindings))
	for _, b := range bindings {
		res := d.run(ctx, b, sessionID, language, word)
		log := d.log.WithFields(logrus.Fields{
			"word":   word,
			"plugin": b.PluginName,
			"action": b.ActionName,
		})
		if res.Error != "" {
			log.WithField("error", res.Error).Warn("plugin action failed")
		} else {
			log.Debug("plugin action ran")
		}
		results = append(results, res)
	}
	return results, nil
}

func (d *Dispatcher) run(ctx context.Context, b *Binding, sessionID, language, word string) Result {
	res := Result{ActionID: b.ID, Plugin: b.PluginName, Action: b.ActionName}

	p, err := d.manager.Get(b.PluginName)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if !p.Supports(b.ActionName) {
		res.Error = fmt.Sprintf("plugin %s has no action %q", b.PluginName, b.ActionName)
		return res
	}

	params, _ := json.Marshal(map[string]string{"action_name": b.ActionName})
	resp, err := d.executor.Execute(ctx, p, &Request{
		Action:   b.ActionName,
		Word:     word,
		Language: language,
		Session:  sessionID,
		Config:   b.Config,
		Params:   params,
	})
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Response = resp
	if !resp.Success {
		res.Error = resp.Error
	}
	return res
}
