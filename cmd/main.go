package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	"github.com/Vovarama1992/wa-ai-bridge/internal/ai"
	"github.com/Vovarama1992/wa-ai-bridge/internal/bridge"
	"github.com/Vovarama1992/wa-ai-bridge/internal/config"
	"github.com/Vovarama1992/wa-ai-bridge/internal/logutil"
	"github.com/Vovarama1992/wa-ai-bridge/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfg    config.Config
		logger *slog.Logger
	)

	root := &cobra.Command{
		Use:          "wa-ai-bridge",
		Short:        "WhatsApp (Green-API) to AI reply bridge",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return err
			}
			logger, err = logutil.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			return err
		},
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfg, logger)
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.ValidateStorage(); err != nil {
				return err
			}
			db, err := storage.Open(cmd.Context(), cfg.DBDriver, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := storage.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			logger.Info("schema is up to date", "driver", cfg.DBDriver)
			return nil
		},
	}

	root.AddCommand(serve, migrate)
	root.RunE = serve.RunE
	return root
}

func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.WebhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET is not set: every webhook delivery will be rejected")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	db, err := storage.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.Migrate(ctx, db); err != nil {
		return err
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Webhook-Secret"},
	}))

	// --- bridge module wiring ---
	repo := bridge.NewRepo(db)
	generator := ai.NewOpenAIClient(ai.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.HTTPWriteTimeout / 2,
	}, logger)
	outbound := bridge.NewGreenAPIOutbound(bridge.GreenAPIConfig{
		BaseURL:    cfg.GreenAPIBaseURL,
		IDInstance: cfg.GreenAPIIDInstance,
		Token:      cfg.GreenAPIToken,
	}, logger)

	svc := bridge.NewService(repo, repo, repo, generator, outbound, bridge.Options{
		HistoryWindow: cfg.HistoryWindow,
		PacingMin:     cfg.PacingMin,
		PacingMax:     cfg.PacingMax,
		Pacer:         bridge.RandomPacer{},
	}, logger)
	bridge.RegisterRoutes(r, bridge.NewHandler(svc, cfg.WebhookSecret, logger))

	if cfg.AdminToken != "" {
		bridge.RegisterAdminRoutes(r, bridge.NewAdminHandler(repo, repo, logger), cfg.AdminToken)
	} else {
		logger.Info("ADMIN_TOKEN is not set: admin API disabled")
	}

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPWriteTimeout+5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With("component", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
