// Package main provides a plugin that types recognised words into the
// focused application. It uses AppleScript on macOS and xdotool elsewhere.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action   string          `json:"action"`
	Word     string          `json:"word"`
	Language string          `json:"language"`
	Config   json.RawMessage `json:"config"`
	Params   json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the per-binding configuration.
type Config struct {
	Suffix *string `json:"suffix"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	switch req.Action {
	case "type", "type-phrase":
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	text, err := buildText(req)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}
	if err := typeText(text); err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	data, _ := json.Marshal(map[string]string{"typed": text})
	writeSuccessResponse(data)
}

// buildText appends the configured suffix, a space by default.
func buildText(req Request) (string, error) {
	word := strings.TrimSpace(req.Word)
	if word == "" {
		return "", fmt.Errorf("word is required")
	}

	suffix := " "
	if len(req.Config) > 0 {
		var cfg Config
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return "", fmt.Errorf("failed to parse config: %w", err)
		}
		if cfg.Suffix != nil {
			suffix = *cfg.Suffix
		}
	}
	return word + suffix, nil
}

func typeText(text string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" {
		escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(text)
		cmd = exec.Command("osascript", "-e", fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, escaped))
	} else {
		cmd = exec.Command("xdotool", "type", "--clearmodifiers", "--", text)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse(data json.RawMessage) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}
