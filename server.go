package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matrimonyai/backend/assistant"
	"github.com/matrimonyai/backend/matching"
)

// server carries the dependencies shared by the HTTP handlers.
type server struct {
	cfg          Config
	store        Store
	matches      *matching.Service
	assistant    *assistant.Assistant
	notifier     Notifier
	otpLimiter   *RateLimiter
	loginLimiter *RateLimiter
	hub          *Hub
	now          func() time.Time
}

// serverDeps holds the optional integrations. Zero values fall back to
// in-process implementations.
type serverDeps struct {
	limiterStorage limiterStorage
	generator      assistant.Generator
	publisher      matching.Publisher
	notifier       Notifier
	now            func() time.Time
}

func newServer(cfg Config, store Store, deps serverDeps) *server {
	now := deps.now
	if now == nil {
		now = time.Now
	}
	storage := deps.limiterStorage
	if storage == nil {
		storage = newMemoryLimiterStorage()
	}
	notifier := deps.notifier
	if notifier == nil {
		notifier = logNotifier{logger: logger.Named("otp")}
	}

	matchOpts := []matching.Option{
		matching.WithClock(now),
		matching.WithOverFetch(cfg.Matching.OverFetch),
		matching.WithMaxLimit(cfg.Matching.MaxLimit),
		matching.WithStoreTimeout(cfg.StoreTimeout),
		matching.WithLogger(logger.Named("matching")),
	}
	if deps.publisher != nil {
		matchOpts = append(matchOpts, matching.WithPublisher(deps.publisher))
	}

	var gen assistant.Generator = assistant.ScriptedGenerator{}
	assistantOpts := []assistant.Option{
		assistant.WithClock(now),
		assistant.WithLogger(logger.Named("assistant")),
		assistant.WithHistoryWindow(cfg.Assistant.HistoryWindow),
		assistant.WithStoreTimeout(cfg.StoreTimeout),
	}
	if deps.generator != nil {
		gen = deps.generator
		assistantOpts = append(assistantOpts, assistant.WithFallback(assistant.ScriptedGenerator{}))
	}

	return &server{
		cfg:          cfg,
		store:        store,
		matches:      matching.NewService(store, store, store, matchOpts...),
		assistant:    assistant.New(store, store, store, gen, assistantOpts...),
		notifier:     notifier,
		otpLimiter:   NewRateLimiter(storage, cfg.OTP.SendLimit, cfg.OTP.Window, now),
		loginLimiter: NewRateLimiter(storage, cfg.Login.Limit, cfg.Login.Window, now),
		hub:          newHub(),
		now:          now,
	}
}

func newRouter(s *server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(corsMiddleware(s.cfg.CORSOrigins))

	// Health check endpoint for Docker
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// OTP, registration and login
	r.Post("/otp/send", sendOTPHandler(s))
	r.Post("/otp/verify", verifyOTPHandler(s))
	r.Post("/register", registerHandler(s))
	r.Post("/login", loginHandler(s))

	r.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Use(touchPresence(s))
		r.Use(DataLoaderMiddleware(s.store, s.cfg.StoreTimeout))

		r.Post("/me/ping", mePingHandler(s))
		r.Get("/me/profile", getProfileHandler(s))
		r.Put("/me/profile", updateProfileHandler(s))
		r.Get("/me/preferences", getPreferencesHandler(s))
		r.Put("/me/preferences", updatePreferencesHandler(s))
		r.Post("/me/photo", uploadPhotoHandler(s))
		r.Delete("/me/photo", deletePhotoHandler(s))

		r.Get("/users/{userId}", userProfileHandler(s))
		r.Get("/photos/{userId}", getPhotoHandler(s))

		r.Post("/matches/find", findMatchesHandler(s))
		r.Get("/matches", listMatchesHandler(s))
		r.Post("/matches/{userId}/dismiss", dismissMatchHandler(s))

		r.Post("/assistant/chat", assistantChatHandler(s))
		r.Get("/assistant/history", assistantHistoryHandler(s))
		r.Get("/ws/assistant", wsAssistantHandler(s))

		r.Post("/activity", activityHandler(s))
	})
	return r
}
