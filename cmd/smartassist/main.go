package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/smartassist/internal/config"
	"github.com/dukerupert/smartassist/internal/database"
	fsstore "github.com/dukerupert/smartassist/internal/firestore"
	"github.com/dukerupert/smartassist/internal/housekeeping"
	"github.com/dukerupert/smartassist/internal/logging"
	"github.com/dukerupert/smartassist/internal/middleware"
	"github.com/dukerupert/smartassist/internal/notify"
	"github.com/dukerupert/smartassist/internal/push"
	"github.com/dukerupert/smartassist/internal/reminder"
	"github.com/dukerupert/smartassist/internal/server"
	"github.com/dukerupert/smartassist/internal/store"
	"github.com/dukerupert/smartassist/internal/voice"
	ws "github.com/dukerupert/smartassist/internal/websocket"

	"cloud.google.com/go/firestore"
)

// reminderStore is a reminder backend that can also enumerate its users for
// the reconciliation sweep.
type reminderStore interface {
	reminder.Store
	ListUserIDs(ctx context.Context) ([]string, error)
}

func main() {
	cfg, err := config.Load(os.Getenv("SMARTASSIST_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	loc, _ := cfg.Location()

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Reminder storage backend
	var reminders reminderStore = store.NewReminderStore(db)
	if cfg.Store.Backend == config.BackendFirestore {
		client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			slog.Error("failed to create firestore client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		reminders = fsstore.NewReminderStore(client)
	}
	slog.Info("reminder store", "backend", cfg.Store.Backend)

	hub := ws.NewHub(logger.With("component", "websocket"))

	// Push delivery
	var deliverer notify.Deliverer
	if cfg.Push.Enabled() {
		svc := push.NewService(push.Config{
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
			Subscriber:      cfg.Push.Subscriber,
		})
		deliverer = notify.NewPushDeliverer(svc, store.NewPushStore(db), logger.With("component", "push"))
	} else {
		slog.Warn("push delivery disabled: VAPID keys not configured")
	}

	gateway := notify.New(store.NewNotificationStore(db), deliverer, notify.Options{
		PollInterval: cfg.Notify.PollInterval,
		Location:     loc,
	}, logger.With("component", "gateway"))

	// Speech synthesis is optional; without it devices get the text to speak.
	var synth voice.Synthesizer
	if cfg.Voice.GeminiAPIKey != "" {
		g, err := voice.NewGeminiSynthesizer(ctx, cfg.Voice.GeminiAPIKey, cfg.Voice.Model, cfg.Voice.VoiceName)
		if err != nil {
			slog.Error("failed to create speech synthesizer", "error", err)
			os.Exit(1)
		}
		synth = g
	}
	voices := voice.NewVoices(synth, hub, logger.With("component", "voice"))

	manager := reminder.NewManager(reminders, gateway, voices, store.NewSettingsStore(db), reminder.Options{
		Location:            loc,
		RestoreOnUncomplete: cfg.Reminder.RestoreOnUncomplete,
	}, logger.With("component", "reminder"))

	server.ConnectGateway(gateway, manager, hub, logger.With("component", "events"))

	limiter := middleware.NewRateLimiter(cfg.RateLimit.PerMinute)
	srv := server.New(server.Deps{
		DB:             db,
		Hub:            hub,
		Manager:        manager,
		Gateway:        gateway,
		RateLimiter:    limiter,
		VAPIDPublicKey: cfg.Push.VAPIDPublicKey,
	}, logger)

	if err := gateway.Init(ctx); err != nil {
		slog.Error("failed to start notification gateway", "error", err)
		os.Exit(1)
	}
	defer gateway.Shutdown()

	hk := housekeeping.New(housekeeping.Config{
		SentRetention:     cfg.Housekeeping.SentRetention,
		ReconcileInterval: cfg.Housekeeping.ReconcileInterval,
		Location:          loc,
	}, store.NewNotificationStore(db), reminders, manager, limiter, logger.With("component", "housekeeping"))
	if err := hk.Start(); err != nil {
		slog.Error("failed to start housekeeping", "error", err)
		os.Exit(1)
	}
	defer hk.Stop()

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("smartassist starting", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
