package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/CrowderSoup/task-tracker/config"
	"github.com/CrowderSoup/task-tracker/database"
	"github.com/CrowderSoup/task-tracker/filters"
	"github.com/CrowderSoup/task-tracker/handlers"
	"github.com/CrowderSoup/task-tracker/logging"
	"github.com/CrowderSoup/task-tracker/services"
	"github.com/CrowderSoup/task-tracker/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run() error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	}, os.Stderr)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	var mailer database.Mailer = database.LogMailer{}
	smtpConfig := database.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
	if smtpConfig.Configured() {
		mailer = database.NewSMTPMailer(smtpConfig)
	}

	store := database.New(db, database.Options{
		JWTSecret:                cfg.Secret(),
		SessionTTL:               cfg.SessionTTL,
		RequireEmailConfirmation: cfg.RequireEmailConfirmation,
		PublicURL:                cfg.PublicURL,
		Mailer:                   mailer,
	})

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := services.NewHub()
	go hub.Run(hubCtx)

	sessions := session.NewStore(store)
	defer sessions.Close()

	clock := services.Clock(time.Now)
	taskService := services.NewTaskService(store, sessions, clock)
	goalService := services.NewGoalService(store, sessions)
	exportService := services.NewExportService(taskService, goalService, clock)
	view := filters.NewTasksView(taskService)

	defer handlers.WatchSession(sessions, view, hub)()

	if err := sessions.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("could not restore session")
	}

	origins := cfg.AllowedOrigins()
	router := handlers.NewRouter(handlers.Handlers{
		Sessions:  sessions,
		Auth:      handlers.NewAuthHandler(sessions),
		Tasks:     handlers.NewTaskHandler(taskService, view, hub),
		Goals:     handlers.NewGoalHandler(goalService, hub),
		Data:      handlers.NewDataHandler(taskService, goalService, exportService, hub, originChecker(origins)),
		Limiter:   handlers.NewRateLimiter(cfg.AuthRateLimit),
		StaticDir: cfg.StaticDir,
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", handlers.ClientIDHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      c.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("environment", cfg.Environment).Msg("server starting")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// originChecker accepts websocket upgrades from the configured CORS origins.
func originChecker(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(origins, "*") {
			return true
		}
		return slices.Contains(origins, origin)
	}
}
