package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/thereayou/rylac/internal/cache"
	"github.com/thereayou/rylac/internal/config"
	"github.com/thereayou/rylac/internal/database"
	"github.com/thereayou/rylac/internal/events"
	"github.com/thereayou/rylac/internal/handlers"
	"github.com/thereayou/rylac/internal/middleware"
	"github.com/thereayou/rylac/internal/services"
	"github.com/thereayou/rylac/internal/websocket"
	"github.com/thereayou/rylac/pkg/auth"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	Router     *gin.Engine
	DB         *database.Database
	Cache      *cache.Cache
	Hub        *websocket.Hub
	Publisher  events.Publisher
	JWTManager *auth.JWTManager

	cfg *config.Config
	log *zap.SugaredLogger
}

// NewServer поднимает Postgres, Redis и (если задан) Kafka, затем собирает приложение
func NewServer(cfg *config.Config, log *zap.SugaredLogger) (*Server, error) {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "postgres connect failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "redis connect failed")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		log.Infow("publishing message events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	return newServer(cfg, db, rdb, publisher, log), nil
}

func newServer(cfg *config.Config, db *database.Database, rdb *cache.Cache, publisher events.Publisher, log *zap.SugaredLogger) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	hub := websocket.NewHub(db, log.Named("hub"))

	authSvc := services.NewAuthService(db, db, jwtMgr, rdb, log.Named("auth"))
	userSvc := services.NewUserService(db)
	messageSvc := services.NewMessageService(db, hub, publisher, services.MessageLimits{
		MaxMediaSize:  cfg.MaxMediaSize,
		MaxTextLength: cfg.MaxTextLength,
	}, log.Named("messages"))
	adminSvc := services.NewAdminService(db, hub, log.Named("admin"))

	cookies := middleware.CookieConfig{Secure: cfg.CookieSecure}
	deps := endpoints{
		auth:    handlers.NewAuthHandler(authSvc, cookies),
		users:   handlers.NewUserHandler(userSvc),
		message: handlers.NewHTTPMessageHandler(messageSvc),
		admin:   handlers.NewAdminHandler(adminSvc),
		ws: handlers.NewWebSocketHandler(hub, handlers.NewMessageHandler(messageSvc), handlers.ConnectionLimits{
			EventsPerSecond: cfg.EventsPerSecond,
			EventBurst:      cfg.EventBurst,
		}, cfg.AllowedOrigins, log.Named("ws")),

		authenticator: authSvc,
		cookies:       cookies,
		limiter:       rdb,
		db:            db,
		log:           log,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	APIEndpoints(router, deps, cfg)

	return &Server{
		Router:     router,
		DB:         db,
		Cache:      rdb,
		Hub:        hub,
		Publisher:  publisher,
		JWTManager: jwtMgr,
		cfg:        cfg,
		log:        log,
	}
}

// Run обслуживает HTTP до SIGINT/SIGTERM, затем гасит hub и закрывает ресурсы
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go s.Hub.Run()

	httpSrv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("server starting", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.log.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		s.log.Warnw("http shutdown", "error", err)
	}

	s.Close()
	return runErr
}

// Close останавливает hub (все клиенты получают close) и освобождает ресурсы
func (s *Server) Close() {
	s.Hub.Stop()
	if err := s.Publisher.Close(); err != nil {
		s.log.Warnw("publisher close", "error", err)
	}
	if err := s.Cache.Close(); err != nil {
		s.log.Warnw("redis close", "error", err)
	}
	if err := s.DB.Close(); err != nil {
		s.log.Warnw("postgres close", "error", err)
	}
}
