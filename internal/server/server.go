package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/matchup/apiserver/config"
	"github.com/matchup/apiserver/internal/db"
	"github.com/matchup/apiserver/internal/handlers"
	"github.com/matchup/apiserver/internal/logging"
	"github.com/matchup/apiserver/internal/mq"
	"github.com/matchup/apiserver/internal/services"
	"github.com/matchup/apiserver/internal/store"
	"github.com/matchup/apiserver/types"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	log        *zap.Logger
}

// Deps are the collaborators the router is built from.
type Deps struct {
	Users       services.UserRepository
	Profiles    services.ProfileRepository
	Groups      services.GroupRepository
	Permissions services.PermissionRepository
	Publisher   services.EventPublisher
	Channels    services.EventChannels
	JWT         config.JWTConfig
	GateLevel   handlers.AccessLevel
	Log         *zap.Logger
}

// New connects to Postgres and the configured message queue and builds the
// HTTP server.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	level, err := handlers.ParseAccessLevel(cfg.Gate.Level)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	var publisher services.EventPublisher
	if queue != nil {
		publisher = queue
	} else {
		log.Info("account events disabled", zap.String("mq_backend", cfg.MQ.Backend))
	}

	router := NewRouter(Deps{
		Users:       store.NewUserRepository(dbConn),
		Profiles:    store.NewProfileRepository(dbConn),
		Groups:      store.NewGroupRepository(dbConn),
		Permissions: store.NewPermissionRepository(dbConn),
		Publisher:   publisher,
		Channels: services.EventChannels{
			Verification: cfg.MQ.VerificationChannel,
			Assignment:   cfg.MQ.AssignmentChannel,
		},
		JWT:       cfg.JWT,
		GateLevel: level,
		Log:       log,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		log:        log,
	}, nil
}

// NewRouter wires services and handlers onto a chi router.
func NewRouter(deps Deps) *chi.Mux {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	events := services.NewEvents(deps.Publisher, deps.Channels, log.Named("events"))
	names := services.NewNameResolver(deps.Profiles)
	accounts := services.NewAccountService(deps.Users, deps.Profiles, events, log.Named("accounts"))
	members := services.NewMemberService(deps.Users, events, log.Named("members"))
	catalog := handlers.NewCatalogHandler(services.NewCatalogService(deps.Groups, deps.Permissions, log.Named("catalog")))
	gate := handlers.NewGate(deps.Users, deps.JWT.Secret, deps.GateLevel, log.Named("gate"))

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		logging.RequestLogger(log.Named("http")),
		middleware.StripSlashes,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, handlers.NewAuthHandler(accounts, names, deps.JWT.Secret, deps.JWT.TokenTTL))
	})
	router.Group(func(r chi.Router) {
		r.Use(gate.Require)
		r.Route("/admins", func(r chi.Router) {
			handlers.MemberRouter(r, handlers.NewMemberHandler(types.RoleAdmin, members, names))
		})
		r.Route("/matchmakers", func(r chi.Router) {
			handlers.MemberRouter(r, handlers.NewMemberHandler(types.RoleMatchmaker, members, names))
		})
		r.Route("/groups", func(r chi.Router) {
			handlers.GroupRouter(r, catalog)
		})
		r.Route("/permissions", func(r chi.Router) {
			handlers.PermissionRouter(r, catalog)
		})
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.log.Info("server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the queue and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		if cerr := s.queue.Close(); cerr != nil {
			s.log.Warn("close mq", zap.Error(cerr))
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
