package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/signamoz/signa/internal/gesture"
	"github.com/signamoz/signa/internal/session"
)

var videoExts = map[string]bool{".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true}

// NewRecognizeCmd classifies an image or video file and prints the result.
func NewRecognizeCmd(cfgPath *string) *cobra.Command {
	var (
		language string
		vision   bool
		jsonOut  bool
	)
	cmd := &cobra.Command{
		Use:   "recognize <image|video>",
		Short: "Recognise signs in an image or video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := gesture.ParseLanguage(language); err != nil {
				return err
			}
			cfg, log, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			svc, err := build(cmd.Context(), cfg, log, buildOptions{})
			if err != nil {
				return err
			}
			defer svc.Close()

			lang, err := svc.app.ParseLanguage(language)
			if err != nil {
				return err
			}

			s := svc.app.Sessions().Create(lang)
			path := args[0]

			var out any
			if videoExts[strings.ToLower(filepath.Ext(path))] {
				res, err := svc.app.RecognizeVideo(cmd.Context(), s.ID(), path)
				if err != nil {
					return err
				}
				out = res
				if !jsonOut {
					fmt.Fprintf(cmd.OutOrStdout(), "frames: %d  classified: %d\n", res.Frames, res.Dispatched)
					fmt.Fprintln(cmd.OutOrStdout(), strings.Join(res.Phrase, " "))
				}
			} else {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				state, outcome, err := svc.app.RecognizeImage(cmd.Context(), s.ID(), data, http.DetectContentType(data), vision)
				if err != nil {
					return err
				}
				out = struct {
					Outcome session.Outcome `json:"outcome"`
					session.State
				}{outcome, state}
				if !jsonOut {
					fmt.Fprintln(cmd.OutOrStdout(), state.CurrentWord)
					if state.Description != "" {
						fmt.Fprintln(cmd.OutOrStdout(), state.Description)
					}
				}
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "sign language (libras, lsm); defaults to the stored preference")
	cmd.Flags().BoolVar(&vision, "vision", false, "send the image to the vision model instead of detecting landmarks")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}
