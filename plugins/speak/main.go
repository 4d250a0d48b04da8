// Package main provides a plugin that speaks recognised words with the
// platform text-to-speech: say on macOS, espeak-ng elsewhere.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
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

// Config is the per-binding configuration. It overrides the manifest args.
type Config struct {
	Voice string `json:"voice"`
	Rate  int    `json:"rate"`
}

func main() {
	voice := flag.String("voice", "", "voice name")
	rate := flag.Int("rate", 0, "words per minute")
	flag.Parse()

	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}
	if req.Action != "say" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	word := strings.TrimSpace(req.Word)
	if word == "" {
		writeErrorResponse("word is required")
		return
	}

	cfg := Config{Voice: *voice, Rate: *rate}
	if len(req.Config) > 0 {
		var override Config
		if err := json.Unmarshal(req.Config, &override); err != nil {
			writeErrorResponse(fmt.Sprintf("failed to parse config: %v", err))
			return
		}
		if override.Voice != "" {
			cfg.Voice = override.Voice
		}
		if override.Rate > 0 {
			cfg.Rate = override.Rate
		}
	}

	if err := speak(word, req.Language, cfg); err != nil {
		writeErrorResponse(fmt.Sprintf("action say failed: %v", err))
		return
	}
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}

func speak(word, language string, cfg Config) error {
	var args []string
	name := "espeak-ng"
	if runtime.GOOS == "darwin" {
		name = "say"
		if cfg.Voice != "" {
			args = append(args, "-v", cfg.Voice)
		}
		if cfg.Rate > 0 {
			args = append(args, "-r", strconv.Itoa(cfg.Rate))
		}
	} else {
		// espeak voices are language codes; both sign languages are voiced in Portuguese.
		v := "pt"
		if language == "libras" {
			v = "pt-br"
		}
		args = append(args, "-v", v)
		if cfg.Rate > 0 {
			args = append(args, "-s", strconv.Itoa(cfg.Rate))
		}
	}
	args = append(args, word)

	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}
