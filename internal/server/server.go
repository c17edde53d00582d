package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"

	"github.com/dukerupert/chorepoints/internal/clock"
	"github.com/dukerupert/chorepoints/internal/database"
	"github.com/dukerupert/chorepoints/internal/handler"
	"github.com/dukerupert/chorepoints/internal/metrics"
	"github.com/dukerupert/chorepoints/internal/middleware"
	"github.com/dukerupert/chorepoints/internal/store"
	ws "github.com/dukerupert/chorepoints/internal/websocket"
	"github.com/dukerupert/chorepoints/internal/workflow"
)

const (
	loginLimit  = 10
	loginWindow = time.Minute
)

type Options struct {
	// Location is the time zone for families that have none set.
	Location      *time.Location
	SessionTTL    time.Duration
	SecureCookies bool
	Metrics       bool
	Clock         clock.Clock
}

type Server struct {
	db           *database.DB
	hub          *ws.Hub
	coord        *workflow.Coordinator
	assignmentH  *handler.AssignmentHandler
	childH       *handler.ChildHandler
	familyH      *handler.FamilyHandler
	authH        *handler.AuthHandler
	sessionStore *store.SessionStore
	accountStore *store.AccountStore
	rateLimiter  *middleware.RateLimiter
	clock        clock.Clock
	metrics      bool
	logger       *slog.Logger
}

func New(db *database.DB, opts Options, logger *slog.Logger) *Server {
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * 24 * time.Hour
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	coord := workflow.New(db, opts.Clock, opts.Location, hub, logger)

	accountStore := store.NewAccountStore(db)
	sessionStore := store.NewSessionStore(db)
	familyStore := store.NewFamilyStore(db)
	assignmentStore := store.NewAssignmentStore(db, opts.Location)

	return &Server{
		db:           db,
		hub:          hub,
		coord:        coord,
		assignmentH:  handler.NewAssignmentHandler(coord, assignmentStore, accountStore, familyStore, opts.Clock, opts.Location, logger.With("component", "assignment")),
		childH:       handler.NewChildHandler(accountStore, coord.Ledger(), logger.With("component", "child")),
		familyH:      handler.NewFamilyHandler(familyStore, hub, logger.With("component", "family")),
		authH:        handler.NewAuthHandler(accountStore, sessionStore, opts.Clock, opts.SessionTTL, opts.SecureCookies, logger.With("component", "auth")),
		sessionStore: sessionStore,
		accountStore: accountStore,
		rateLimiter:  middleware.NewRateLimiter(opts.Clock),
		clock:        opts.Clock,
		metrics:      opts.Metrics,
		logger:       logger,
	}
}

// Hub returns the websocket hub events are broadcast on.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Coordinator returns the workflow coordinator behind the assignment routes.
func (s *Server) Coordinator() *workflow.Coordinator {
	return s.coord
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)
	if s.metrics {
		outerMux.Handle("GET /metrics", metrics.Handler())
	}

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.accountStore, s.clock)
	outerMux.Handle("/", authMiddleware(protectedMux))

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	logged := middleware.RequestLogger(s.logger.With("component", "http"))(sentryHandler.Handle(outerMux))
	return middleware.RequestID(logged)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, loginLimit, loginWindow)
	return rl(h).ServeHTTP
}

func parentOnly(h http.HandlerFunc) http.Handler {
	return middleware.RequireParent(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/logout", s.authH.Logout)

	// Assignments
	mux.HandleFunc("POST /api/assignments", s.assignmentH.Create)
	mux.HandleFunc("GET /api/assignments/{id}", s.assignmentH.Get)
	mux.HandleFunc("POST /api/assignments/{id}/complete", s.assignmentH.Complete)
	mux.Handle("PUT /api/assignments/{id}/review", parentOnly(s.assignmentH.Review))
	mux.Handle("PUT /api/assignments/{id}/approve-creation", parentOnly(s.assignmentH.ApproveCreation))

	// Children
	mux.HandleFunc("GET /api/children/{id}/assignments", s.assignmentH.ListForDay)
	mux.HandleFunc("GET /api/children/{id}/balance", s.childH.Balance)
	mux.HandleFunc("GET /api/children/{id}/history", s.childH.History)
	mux.Handle("GET /api/children/{id}/audit", parentOnly(s.childH.Audit))

	// Family settings
	mux.HandleFunc("GET /api/family/bonus", s.familyH.GetBonus)
	mux.Handle("PUT /api/family/bonus", parentOnly(s.familyH.UpdateBonus))

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}

// RunCleanup deletes expired sessions and stale rate limit windows every
// interval until ctx is done.
func (s *Server) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.sessionStore.DeleteExpired(ctx, s.clock.Now())
			if err != nil {
				s.logger.Error("session cleanup", "error", err)
			} else if n > 0 {
				s.logger.Info("session cleanup", "deleted", n)
			}
			s.rateLimiter.Cleanup()
		}
	}
}
