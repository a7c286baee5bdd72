package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	telegram "vein-detect/internal/api"
)

func newBotCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Long: `Runs the Telegram bot as the operator surface. Photos and documents
sent to the bot become the current image, /detect submits it.

Requires VEIN_TELEGRAM_TOKEN (or TELEGRAM_TOKEN). When VEIN_METRICS_ADDR
is set, Prometheus metrics are served on /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cfg.TelegramToken == "" {
				return errors.New("TELEGRAM_TOKEN is required")
			}

			c, err := opts.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			if cfg.MetricsAddr != "" {
				stop := serveMetrics(cfg.MetricsAddr, c.Metrics.Handler())
				defer stop()
			}

			bot, err := telegram.NewBot(cfg.TelegramToken, c.Workspace, cfg.OperatorChatID)
			if err != nil {
				return fmt.Errorf("create bot: %w", err)
			}

			slog.Info("Bot is running...", "endpoints", c.Detection.Endpoints())
			return bot.Run(ctx)
		},
	}
}

func serveMetrics(addr string, handler http.Handler) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("Metrics available", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "err", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server shutdown failed", "err", err)
		}
	}
}
