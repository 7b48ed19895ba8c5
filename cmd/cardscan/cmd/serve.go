package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cardscan/internal/config"
	"github.com/MeKo-Tech/cardscan/internal/framesource"
	"github.com/MeKo-Tech/cardscan/internal/overlay"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
	"github.com/MeKo-Tech/cardscan/internal/server"
	"github.com/MeKo-Tech/cardscan/internal/utils"
	"github.com/MeKo-Tech/cardscan/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scanner behind an HTTP and websocket server",
	Long: `Start a live pipeline and expose it over HTTP.

Frames come from a directory replayed at a fixed frame rate (--frames) and
from clients posting images to /api/frames. Only the newest frame is kept;
frames arriving while the pipeline is busy are dropped.

The server provides the following endpoints:
  GET  /ws               - Overlay frames as they are presented
  GET  /api/latest       - Most recent pipeline result
  GET  /api/overlay.png  - Most recent overlay rendered as PNG
  POST /api/frames       - Push a camera frame (multipart field "frame")
  GET  /health           - Health check endpoint
  GET  /models           - Expected model files
  GET  /metrics          - Prometheus metrics

Examples:
  cardscan serve
  cardscan serve --frames frames/ --fps 15 --loop
  cardscan serve --host 0.0.0.0 --port 3000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		if cmd.Flags().Changed("host") {
			cfg.Server.Host, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("cors-origin") {
			cfg.Server.CORSOrigin, _ = cmd.Flags().GetString("cors-origin")
		}
		if cmd.Flags().Changed("shutdown-timeout") {
			cfg.Server.ShutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}
		if cmd.Flags().Changed("upload-rate") {
			cfg.Server.UploadRate, _ = cmd.Flags().GetFloat64("upload-rate")
		}
		if cmd.Flags().Changed("frames") {
			cfg.Source.Dir, _ = cmd.Flags().GetString("frames")
		}
		if cmd.Flags().Changed("fps") {
			cfg.Source.FPS, _ = cmd.Flags().GetFloat64("fps")
		}
		if cmd.Flags().Changed("loop") {
			cfg.Source.Loop, _ = cmd.Flags().GetBool("loop")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		dets, err := loadDetectors(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := dets.Close(); err != nil {
				slog.Warn("Failed to release detectors", "error", err)
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case sig := <-sigChan:
				slog.Info("Received shutdown signal", "signal", sig.String())
				cancel()
			case <-ctx.Done():
			}
		}()

		return runServe(ctx, cfg, dets)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Float64("upload-rate", 30, "frame uploads per second per client (0 disables the limit)")
	serveCmd.Flags().String("frames", "", "directory of images replayed as camera frames")
	serveCmd.Flags().Float64("fps", 30, "replay frame rate")
	serveCmd.Flags().Bool("loop", false, "replay the frame directory forever")
}

// runServe wires frame sources, pipeline and HTTP server together and
// blocks until ctx ends or the HTTP server fails.
func runServe(ctx context.Context, cfg *config.Config, dets *detectors) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	format, err := pixbuf.ParseFormat(cfg.Source.Format)
	if err != nil {
		return err
	}
	pCfg := cfg.ToPipelineConfig()
	ver, _, _ := version.Info()

	mailbox := framesource.NewMailbox()
	srv := server.NewServer(server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxUploadMB: int64(cfg.Server.MaxUploadMB),
		ModelsDir:   cfg.ModelsDir,
		Version:     ver,
		OverlaySize: pCfg.OverlaySize,
		FrameFormat: format,
		Frames:      mailbox,
		UploadRate:  cfg.Server.UploadRate,
		UploadBurst: cfg.Server.UploadBurst,
	})

	presenter := overlay.NewAsyncPresenter(srv)
	p, err := pipeline.NewBuilder().
		WithConfig(pCfg).
		WithLocator(dets.locator).
		WithRecognizer(dets.recognizer).
		WithPresenter(presenter).
		Build()
	if err != nil {
		presenter.Close()
		return err
	}

	pipelineDone := make(chan error, 1)
	go func() {
		pipelineDone <- p.Run(ctx, mailbox, srv.Record)
	}()

	if cfg.Source.Dir != "" {
		paths, err := utils.DiscoverImages([]string{cfg.Source.Dir})
		if err != nil {
			cancel()
			<-pipelineDone
			presenter.Close()
			return err
		}
		player := framesource.Player{Paths: paths, FPS: cfg.Source.FPS, Loop: cfg.Source.Loop, Format: format}
		go func() {
			slog.Info("Replaying frames", "dir", cfg.Source.Dir, "frames", len(paths), "fps", cfg.Source.FPS, "loop", cfg.Source.Loop)
			if err := player.Play(ctx, mailbox); err != nil {
				slog.Error("Frame replay failed", "error", err)
			}
		}()
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting cardscan server", "addr", addr, "version", version.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	case err, ok := <-serveErr:
		if ok {
			slog.Error("Server error", "error", err)
			runErr = err
		}
	}

	timeout := cfg.ShutdownTimeout()
	slog.Info("Starting graceful shutdown", "timeout", timeout.String())
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	_ = srv.Close()

	cancel()
	mailbox.Close()
	if err := <-pipelineDone; err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Pipeline stopped with error", "error", err)
	}
	presenter.Close()

	slog.Info("Graceful shutdown completed",
		"frames_published", mailbox.Published(),
		"frames_dropped", mailbox.Dropped(),
		"overlays_dropped", presenter.Dropped())
	return runErr
}
