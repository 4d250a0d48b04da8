package main

import (
	"fmt"
	"os"

	"github.com/lpernett/godotenv"
	"github.com/spf13/cobra"

	"github.com/signamoz/signa/internal/cli"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; keys may come from the environment or config.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "signa",
		Short: "Signa - Libras and LSM sign recognition",
		Long: `Signa turns signing captured by a camera into words and phrases.

Landmarks come from the browser or from the bundled MediaPipe helper and are
classified by an OpenAI-compatible model (OpenRouter by default).

Env overrides: OPENROUTER_API_KEY, SIGNA_API_KEYS, SIGNA_MODEL, SIGNA_ADDR,
               SIGNA_LOG_LEVEL/FORMAT, SIGNA_REDIS_ADDR, SIGNA_MIN_INTERVAL_MS`,
		Example: `  signa serve --addr 127.0.0.1:8080
  signa serve --tray --capture
  signa recognize --language lsm hand.jpg
  signa recognize clip.mp4 --json
  signa signs list -l libras`,
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate("Signa v{{.Version}}\n")
	root.CompletionOptions.DisableDefaultCmd = true

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML). Defaults to ~/.config/signa/config.toml")

	root.AddCommand(cli.NewServeCmd(cfgPath))
	root.AddCommand(cli.NewRecognizeCmd(cfgPath))
	root.AddCommand(cli.NewSignsCmd(cfgPath))

	return root.Execute()
}
