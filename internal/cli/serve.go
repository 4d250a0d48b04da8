package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/signamoz/signa/internal/server"
	"github.com/signamoz/signa/internal/session"
	"github.com/signamoz/signa/internal/tray"
)

// NewServeCmd runs the HTTP/WebSocket server.
func NewServeCmd(cfgPath *string) *cobra.Command {
	var (
		addr      string
		withTray  bool
		capture   bool
		staticDir string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the recognition server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if staticDir != "" {
				cfg.Server.StaticDir = staticDir
			}
			if _, err := os.Stat(cfg.Server.StaticDir); err != nil {
				cfg.Server.StaticDir = ""
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := build(ctx, cfg, log, buildOptions{camera: true, plugins: true, publish: true})
			if err != nil {
				return err
			}
			defer svc.Close()

			srv := server.New(server.Config{
				App:       svc.app,
				Store:     svc.store,
				Plugins:   svc.plugins,
				StaticDir: cfg.Server.StaticDir,
				Log:       log,
			})

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe(cfg.Server.Addr) }()

			if capture {
				if _, err := svc.app.StartCapture(svc.app.DefaultLanguage()); err != nil {
					log.WithError(err).Warn("capture not started")
				}
			}

			if withTray {
				t := tray.New()
				go func() {
					select {
					case <-ctx.Done():
					case err := <-errCh:
						if err != nil {
							log.WithError(err).Error("server stopped")
						}
					}
					t.Quit()
				}()
				runTray(t, svc, "http://"+cfg.Server.Addr, stop)
			} else {
				select {
				case <-ctx.Done():
				case err := <-errCh:
					if err != nil {
						return fmt.Errorf("server: %w", err)
					}
				}
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Warn("server shutdown")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&staticDir, "static", "", "directory with the web UI (overrides server.static_dir)")
	cmd.Flags().BoolVar(&withTray, "tray", false, "show a system tray menu")
	cmd.Flags().BoolVar(&capture, "capture", false, "start server-side camera capture immediately")
	return cmd
}

// runTray blocks on the tray event loop, which must own the main thread.
func runTray(t *tray.Tray, svc *services, url string, quit func()) {
	t.SetCapturing(svc.app.Capturing())
	t.OnToggle(func(capturing bool) error {
		if !capturing {
			svc.app.StopCapture()
			return nil
		}
		_, err := svc.app.StartCapture(svc.app.DefaultLanguage())
		if err != nil {
			svc.log.WithError(err).Warn("capture not started")
		}
		return err
	})
	t.OnClear(func() {
		if s, ok := svc.app.CaptureSession(); ok {
			s.ClearPhrase()
			t.SetWord("", nil)
		}
	})
	t.OnOpen(func() {
		if err := openBrowser(url); err != nil {
			svc.log.WithError(err).Warn("open browser")
		}
	})
	t.OnQuit(quit)

	svc.app.Sessions().OnWord(func(e session.WordEvent) {
		if s, ok := svc.app.CaptureSession(); ok && s.ID() == e.SessionID {
			t.SetWord(e.Word, e.Phrase)
		}
	})

	t.Run()
}

func openBrowser(url string) error {
	if strings.HasPrefix(url, "http://:") {
		url = "http://localhost" + strings.TrimPrefix(url, "http://")
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
