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
	"github.com/inkpost/apiserver/config"
	"github.com/inkpost/apiserver/internal/auth"
	"github.com/inkpost/apiserver/internal/db"
	"github.com/inkpost/apiserver/internal/handlers"
	"github.com/inkpost/apiserver/internal/logging"
	"github.com/inkpost/apiserver/internal/mq"
	"github.com/inkpost/apiserver/internal/schema"
	"github.com/inkpost/apiserver/internal/services"
	"github.com/inkpost/apiserver/internal/storage"
	"github.com/inkpost/apiserver/internal/store"
	"github.com/rs/zerolog"
)

const (
	// requestTimeout bounds handler work; the server write deadline leaves
	// room to send the timeout response.
	requestTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	logger     zerolog.Logger
}

// Deps are the collaborators the router is built from.
type Deps struct {
	Users     services.UserRepository
	Posts     services.PostRepository
	Tokens    *auth.TokenService
	Validator *schema.Validator
	Events    services.EventPublisher
	Archive   services.Archiver
	Logger    zerolog.Logger
}

// New opens the database and optional broker and bucket, then builds the router.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, errors.New("JWT_SECRET is required")
	}

	validator, err := schema.New()
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	deps := Deps{
		Users:     store.NewUserRepository(dbConn),
		Posts:     store.NewPostRepository(dbConn),
		Tokens:    tokens,
		Validator: validator,
		Logger:    logger,
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open mq: %w", err)
	}
	if queue != nil {
		events, err := mq.NewPostEvents(queue, cfg.MQ.PostEventsChannel)
		if err != nil {
			closeAll(queue, dbConn)
			return nil, err
		}
		deps.Events = events
		logger.Info().Str("backend", cfg.MQ.Backend).Str("channel", cfg.MQ.PostEventsChannel).Msg("publishing post events")
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		closeAll(queue, dbConn)
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if objects != nil {
		archive, err := storage.NewPostArchive(objects)
		if err != nil {
			closeAll(queue, dbConn)
			return nil, err
		}
		deps.Archive = archive
		logger.Info().Str("backend", cfg.Storage.Backend).Str("bucket", objects.Bucket()).Msg("archiving deleted posts")
	}

	router := NewRouter(deps)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	return &Server{
		httpServer: newHTTPServer(port, router),
		router:     router,
		db:         dbConn,
		queue:      queue,
		logger:     logger,
	}, nil
}

func newHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewRouter wires middleware, services and handlers onto a chi router.
func NewRouter(deps Deps) *chi.Mux {
	userService := services.NewUserService(deps.Users)

	postOpts := []services.PostServiceOption{services.WithLogger(deps.Logger)}
	if deps.Events != nil {
		postOpts = append(postOpts, services.WithEventPublisher(deps.Events))
	}
	if deps.Archive != nil {
		postOpts = append(postOpts, services.WithArchiver(deps.Archive))
	}
	postService := services.NewPostService(deps.Posts, postOpts...)

	authMiddleware := handlers.RequireAuth(deps.Tokens)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.Middleware(deps.Logger),
		handlers.Recoverer,
		middleware.Timeout(requestTimeout),
		middleware.RequestSize(maxBodyBytes),
	)
	router.Get("/healthz", handlers.Healthz)
	handlers.AuthRouter(router, userService, deps.Validator, deps.Tokens)
	router.Route("/posts", func(r chi.Router) {
		handlers.PostRouter(r, postService, deps.Validator, authMiddleware)
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the broker and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	closeAll(s.queue, s.db)
	return err
}

func closeAll(queue *mq.MQ, dbConn *sql.DB) {
	if queue != nil {
		_ = queue.Close()
	}
	if dbConn != nil {
		_ = dbConn.Close()
	}
}
