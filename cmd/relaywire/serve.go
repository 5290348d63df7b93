package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/relaywire-dev/relaywire/pkg/chat"
	"github.com/relaywire-dev/relaywire/pkg/gateway"
)

// serveEnv is the environment-variable configuration surface. Flags of the
// same meaning take precedence when set explicitly.
type serveEnv struct {
	Address        string   `env:"RELAYWIRE_ADDR" envDefault:":3000"`
	AllowedOrigins []string `env:"RELAYWIRE_ALLOWED_ORIGINS" envSeparator:","`
	AllowAnyOrigin bool     `env:"RELAYWIRE_ALLOW_ANY_ORIGIN"`
	StaticDir      string   `env:"RELAYWIRE_STATIC_DIR" envDefault:"public"`
	Debug          bool     `env:"RELAYWIRE_DEBUG"`
}

func serveCmd() *cobra.Command {
	var (
		addr           string
		origins        []string
		allowAnyOrigin bool
		staticDir      string
		maxSessions    int
		debug          bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the event gateway",
		Long: `Run the gateway: WebSocket endpoint on /socket, Prometheus metrics
on /metrics, and the static asset tree on everything else.

Configuration comes from RELAYWIRE_* environment variables; flags set
explicitly on the command line override them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg serveEnv
			if err := env.Parse(&cfg); err != nil {
				return fmt.Errorf("parse env: %w", err)
			}

			if cmd.Flags().Changed("addr") {
				cfg.Address = addr
			}
			if cmd.Flags().Changed("origin") {
				cfg.AllowedOrigins = origins
			}
			if cmd.Flags().Changed("allow-any-origin") {
				cfg.AllowAnyOrigin = allowAnyOrigin
			}
			if cmd.Flags().Changed("static") {
				cfg.StaticDir = staticDir
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debug
			}

			level := slog.LevelInfo
			if cfg.Debug {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			gwConfig := gateway.DefaultConfig().
				WithAddress(cfg.Address).
				WithOrigins(cfg.AllowedOrigins...).
				WithMaxSessions(maxSessions)
			gwConfig.AllowAnyOrigin = cfg.AllowAnyOrigin
			gwConfig.MetricsRegistry = prometheus.DefaultRegisterer

			srv := gateway.New(gwConfig)
			chat.Register(srv.Registry())

			r := chi.NewRouter()
			r.Use(chimw.Recoverer)
			r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			r.Method(http.MethodGet, "/metrics", promhttp.Handler())
			r.Handle("/*", gateway.NewStaticHandler(cfg.StaticDir, logger))
			srv.SetHandler(r)

			return srv.Run()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":3000", "Listen address")
	cmd.Flags().StringSliceVar(&origins, "origin", nil, "Allowed origin (repeatable)")
	cmd.Flags().BoolVar(&allowAnyOrigin, "allow-any-origin", false, "Disable origin checking (insecure)")
	cmd.Flags().StringVar(&staticDir, "static", "public", "Static asset directory")
	cmd.Flags().IntVar(&maxSessions, "max-sessions", 0, "Maximum concurrent sessions (0 = unlimited)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return cmd
}
