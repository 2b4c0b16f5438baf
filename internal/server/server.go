package server

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/dukerupert/smartassist/internal/handler"
	"github.com/dukerupert/smartassist/internal/middleware"
	"github.com/dukerupert/smartassist/internal/notify"
	"github.com/dukerupert/smartassist/internal/reminder"
	"github.com/dukerupert/smartassist/internal/store"
	ws "github.com/dukerupert/smartassist/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	reminderH     *handler.ReminderHandler
	notificationH *handler.NotificationHandler
	pushH         *handler.PushHandler
	preferencesH  *handler.PreferencesHandler
	userH         *handler.UserHandler
	userStore     *store.UserStore
	rateLimiter   *middleware.RateLimiter
	logger        *slog.Logger
}

type Deps struct {
	DB          *sql.DB
	Hub         *ws.Hub
	Manager     *reminder.Manager
	Gateway     *notify.Gateway
	RateLimiter *middleware.RateLimiter
	// VAPIDPublicKey is empty when push delivery is disabled.
	VAPIDPublicKey string
}

func New(d Deps, logger *slog.Logger) *Server {
	settingsStore := store.NewSettingsStore(d.DB)
	pushStore := store.NewPushStore(d.DB)
	userStore := store.NewUserStore(d.DB)

	return &Server{
		db:            d.DB,
		hub:           d.Hub,
		reminderH:     handler.NewReminderHandler(d.Manager, d.Hub, logger.With("component", "reminder")),
		notificationH: handler.NewNotificationHandler(d.Gateway, logger.With("component", "notification")),
		pushH:         handler.NewPushHandler(pushStore, d.VAPIDPublicKey, logger.With("component", "push_handler")),
		preferencesH:  handler.NewPreferencesHandler(settingsStore, d.Hub, logger.With("component", "preferences")),
		userH:         handler.NewUserHandler(userStore, logger.With("component", "user")),
		userStore:     userStore,
		rateLimiter:   d.RateLimiter,
		logger:        logger,
	}
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", handler.Health(s.db))
	outerMux.Handle("POST /api/users", s.limited(http.HandlerFunc(s.userH.Create)))

	// Protected routes, wrapped with RequireToken
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireToken(s.userStore, s.logger.With("component", "auth"))
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

// limited applies the per-user rate limit, falling back to client IP for
// unauthenticated routes.
func (s *Server) limited(h http.Handler) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.UserOrIP)(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	limit := func(h http.HandlerFunc) http.Handler { return s.limited(h) }

	// Reminder API routes
	mux.HandleFunc("GET /api/reminders", s.reminderH.List)
	mux.Handle("POST /api/reminders", limit(s.reminderH.Create))
	mux.HandleFunc("GET /api/reminders/active", s.reminderH.Active)
	mux.Handle("POST /api/reminders/reconcile", limit(s.reminderH.Reconcile))
	mux.HandleFunc("GET /api/reminders/{id}", s.reminderH.Get)
	mux.Handle("PATCH /api/reminders/{id}", limit(s.reminderH.Update))
	mux.Handle("DELETE /api/reminders/{id}", limit(s.reminderH.Delete))
	mux.Handle("PUT /api/reminders/{id}/completion", limit(s.reminderH.SetCompletion))
	mux.Handle("POST /api/reminders/{id}/dismiss", limit(s.reminderH.Dismiss))

	// Notification API routes
	mux.HandleFunc("GET /api/notifications/scheduled", s.notificationH.Scheduled)
	mux.Handle("POST /api/notifications/{id}/response", limit(s.notificationH.Respond))

	// Push notification API routes
	mux.Handle("POST /api/push/subscribe", limit(s.pushH.Subscribe))
	mux.Handle("DELETE /api/push/subscriptions/{id}", limit(s.pushH.Unsubscribe))
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)

	// Preferences
	mux.HandleFunc("GET /api/preferences", s.preferencesH.Get)
	mux.Handle("PUT /api/preferences", limit(s.preferencesH.Update))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
