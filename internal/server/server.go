package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dukerupert/chorely/internal/chore"
	"github.com/dukerupert/chorely/internal/handler"
	"github.com/dukerupert/chorely/internal/media"
	"github.com/dukerupert/chorely/internal/middleware"
	"github.com/dukerupert/chorely/internal/notify"
	"github.com/dukerupert/chorely/internal/push"
	"github.com/dukerupert/chorely/internal/store"
	ws "github.com/dukerupert/chorely/internal/websocket"
)

// Options selects the optional integrations. Zero values disable them.
type Options struct {
	Runner chore.RunnerConfig

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PushSubscriber  string

	Media media.Config

	// Events receives every lifecycle event in addition to the websocket hub
	// and push notifier, e.g. an AMQP publisher.
	Events notify.Emitter
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	service     *chore.Service
	runner      *chore.Runner
	notifier    *push.Notifier
	rateLimiter *middleware.RateLimiter
	members     *store.MemberStore
	memberH     *handler.MemberHandler
	templateH   *handler.TemplateHandler
	assignmentH *handler.AssignmentHandler
	recurrenceH *handler.RecurrenceHandler
	rewardH     *handler.RewardHandler
	pushH       *handler.PushHandler
	mediaH      *handler.MediaHandler
	logger      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	stores := store.New(db)

	var notifier *push.Notifier
	if opts.VAPIDPublicKey != "" && opts.VAPIDPrivateKey != "" {
		svc := push.NewService(opts.VAPIDPublicKey, opts.VAPIDPrivateKey, opts.PushSubscriber)
		notifier = push.NewNotifier(svc, stores.Members, stores.Push, logger)
	}

	var mediaStore *media.Store
	if opts.Media.Enabled() {
		mediaStore = media.NewStore(opts.Media)
	}

	events := notify.Multi(hub, emitterOrNil(notifier), opts.Events)
	service := chore.NewService(db, events, logger)
	runner := chore.NewRunner(db, events, logger, opts.Runner)

	return &Server{
		db:          db,
		hub:         hub,
		service:     service,
		runner:      runner,
		notifier:    notifier,
		rateLimiter: middleware.NewRateLimiter(),
		members:     stores.Members,
		memberH:     handler.NewMemberHandler(service, logger.With("component", "member")),
		templateH:   handler.NewTemplateHandler(service, logger.With("component", "template")),
		assignmentH: handler.NewAssignmentHandler(service, logger.With("component", "assignment")),
		recurrenceH: handler.NewRecurrenceHandler(service, runner, logger.With("component", "recurrence")),
		rewardH:     handler.NewRewardHandler(service, logger.With("component", "reward")),
		pushH:       handler.NewPushHandler(stores.Push, opts.VAPIDPublicKey, logger.With("component", "push_handler")),
		mediaH:      handler.NewMediaHandler(mediaStore, logger.With("component", "media")),
		logger:      logger,
	}
}

// emitterOrNil keeps a nil *push.Notifier from becoming a non-nil interface.
func emitterOrNil(n *push.Notifier) notify.Emitter {
	if n == nil {
		return nil
	}
	return n
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Runner() *chore.Runner {
	return s.runner
}

// Start launches the background workers: recurrence runner, push delivery
// and rate limiter cleanup.
func (s *Server) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.runner.Start(ctx)
	if s.notifier != nil {
		s.notifier.Start(ctx)
	}
	go func() {
		defer close(s.done)
		s.rateLimiter.RunCleanup(ctx, 5*time.Minute)
	}()
}

// Stop halts the background workers and waits for them.
func (s *Server) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	s.runner.Stop()
	if s.notifier != nil {
		s.notifier.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("POST /api/tenants", s.rateLimited(10, time.Minute, s.memberH.Bootstrap))

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	requireIdentity := middleware.RequireIdentity(s.members)
	outerMux.Handle("/", requireIdentity(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, state := http.StatusOK, "ok"
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, state = http.StatusServiceUnavailable, "database unavailable"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": status == http.StatusOK,
		"data":    map[string]string{"status": state},
	})
}

func (s *Server) rateLimited(limit int, per time.Duration, h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, nil, limit, per)(h)
}

func manager(h http.HandlerFunc) http.Handler {
	return middleware.RequireManager(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Members and PINs
	mux.HandleFunc("GET /api/members", s.memberH.List)
	mux.Handle("POST /api/members", manager(s.memberH.Create))
	mux.HandleFunc("GET /api/members/{id}", s.memberH.Get)
	mux.Handle("PUT /api/members/{id}", manager(s.memberH.Update))
	mux.HandleFunc("POST /api/members/{id}/pin", s.memberH.SetPIN)
	mux.HandleFunc("DELETE /api/members/{id}/pin", s.memberH.ClearPIN)
	mux.Handle("POST /api/members/{id}/pin/verify", s.rateLimited(5, time.Minute, s.memberH.VerifyPIN))

	// Points
	mux.HandleFunc("GET /api/members/{id}/points", s.rewardH.Balance)
	mux.HandleFunc("GET /api/members/{id}/points/history", s.rewardH.History)
	mux.HandleFunc("GET /api/members/{id}/redemptions", s.rewardH.Redemptions)
	mux.HandleFunc("GET /api/leaderboard", s.rewardH.Leaderboard)

	// Templates
	mux.HandleFunc("GET /api/templates", s.templateH.List)
	mux.Handle("POST /api/templates", manager(s.templateH.Create))
	mux.HandleFunc("GET /api/templates/{id}", s.templateH.Get)
	mux.Handle("PUT /api/templates/{id}", manager(s.templateH.Update))
	mux.Handle("DELETE /api/templates/{id}", manager(s.templateH.Deactivate))

	// Assignments and submissions
	mux.HandleFunc("GET /api/assignments", s.assignmentH.List)
	mux.Handle("POST /api/assignments", manager(s.assignmentH.Create))
	mux.HandleFunc("GET /api/assignments/{id}", s.assignmentH.Get)
	mux.Handle("PUT /api/assignments/{id}/chore", manager(s.assignmentH.EditChore))
	mux.HandleFunc("POST /api/assignments/{id}/submit", s.assignmentH.Submit)
	mux.HandleFunc("GET /api/assignments/{id}/submissions", s.assignmentH.Submissions)
	mux.HandleFunc("GET /api/submissions/{id}", s.assignmentH.GetSubmission)
	mux.HandleFunc("POST /api/submissions/{id}/review", s.assignmentH.Review)

	// Recurrence series
	mux.HandleFunc("GET /api/recurrences", s.recurrenceH.List)
	mux.Handle("POST /api/recurrences", manager(s.recurrenceH.Create))
	mux.HandleFunc("GET /api/recurrences/preview", s.recurrenceH.Preview)
	mux.Handle("POST /api/recurrences/run", manager(s.recurrenceH.Run))
	mux.HandleFunc("GET /api/recurrences/{id}", s.recurrenceH.Get)
	mux.Handle("DELETE /api/recurrences/{id}", manager(s.recurrenceH.Deactivate))

	// Rewards
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.Handle("POST /api/rewards", manager(s.rewardH.Create))
	mux.Handle("PUT /api/rewards/{id}", manager(s.rewardH.Update))
	mux.HandleFunc("POST /api/rewards/{id}/redeem", s.rewardH.Redeem)

	// Push notifications
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscribe", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)

	// Media
	mux.HandleFunc("POST /api/media", s.mediaH.Upload)
	mux.HandleFunc("GET /api/media/{key...}", s.mediaH.Download)

	// Live updates
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
