// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/handlers"
	nuts "github.com/vaudience/go-nuts"

	"github.com/smartallotment/hub/api"
	"github.com/smartallotment/hub/internal/cache"
	"github.com/smartallotment/hub/internal/config"
	"github.com/smartallotment/hub/internal/database"
	"github.com/smartallotment/hub/internal/hubservice"
	"github.com/smartallotment/hub/internal/ingest"
	"github.com/smartallotment/hub/internal/monitoring"
	"github.com/smartallotment/hub/internal/registry"
	"github.com/smartallotment/hub/internal/repository/postgres"
)

// Server owns the HTTP listener plus the background machinery: the MQTT
// subscriber feeding the ingest pipeline, and the expiry sweeper.
type Server struct {
	config     *config.Config
	srv        *http.Server
	db         database.DB
	hubservice *hubservice.HubService
	monitoring *monitoring.Service
	pipeline   *ingest.Pipeline
	subscriber *ingest.Subscriber
	lastValues *cache.LastValueCache
	cancelBg   context.CancelFunc
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	return &Server{
		config: cfg,
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
}

// Start wires everything together, launches the background services and
// listens for requests until an interrupt arrives.
func (s *Server) Start() error {
	db, err := database.NewPostgresDB(s.config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s.db = db

	if err := postgres.InitializeSchema(db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	sites := postgres.NewSiteRepository(db)
	devices := postgres.NewDeviceRepository(db)
	sensors := postgres.NewSensorRepository(db)
	readings := postgres.NewReadingRepository(db)
	users := postgres.NewUserRepository(db)
	sessions := postgres.NewSessionRepository(db)
	tokens := postgres.NewTokenRepository(db)

	s.lastValues = cache.New(s.config.Redis)
	s.monitoring = monitoring.NewService()

	s.hubservice = hubservice.New(
		sites, devices, sensors, readings, users, sessions, tokens,
		s.config.Auth, s.config.Cleanup, s.lastValues,
	)
	if err := s.hubservice.Validate(); err != nil {
		return err
	}

	resolver := registry.New(devices, sensors)
	s.pipeline = ingest.New(resolver, readings, s.lastValues, s.monitoring, s.config.Ingest)
	s.subscriber = ingest.NewSubscriber(s.config.MQTT, s.pipeline)

	bgCtx, cancel := context.WithCancel(context.Background())
	s.cancelBg = cancel

	s.pipeline.Start(bgCtx)
	if err := s.subscriber.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start mqtt subscriber: %w", err)
	}

	s.setupCleanupHandlers()
	go s.hubservice.Cleanup.Run(bgCtx)

	router := api.NewRouter(s.hubservice, s.monitoring)
	s.srv.Handler = handlers.CombinedLoggingHandler(os.Stdout, handlers.RecoveryHandler()(router))

	go func() {
		nuts.L.Infof("[Server] Listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	return s.waitForShutdown()
}

// waitForShutdown blocks until an interrupt, then drains in order:
// HTTP first, then the broker feed, then the pipeline queue.
func (s *Server) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	s.subscriber.Stop()
	s.cancelBg()
	s.pipeline.Wait()

	if err := s.lastValues.Close(); err != nil {
		nuts.L.Warnf("[Server] Error closing redis: %v", err)
	}
	if err := s.db.Close(); err != nil {
		nuts.L.Warnf("[Server] Error closing database: %v", err)
	}

	nuts.L.Infof("[Server] Shut down complete")
	return nil
}

func (s *Server) setupCleanupHandlers() {
	s.hubservice.Cleanup.OnCleanup("sessions.swept", func(count int64) {
		if count > 0 {
			nuts.L.Infof("[Cleanup] Removed %d expired sessions", count)
		}
		s.monitoring.RecordEvent("session_sweep", map[string]string{
			"count": fmt.Sprintf("%d", count),
		})
	})

	s.hubservice.Cleanup.OnCleanup("tokens.swept", func(count int64) {
		if count > 0 {
			nuts.L.Infof("[Cleanup] Removed %d expired api tokens", count)
		}
		s.monitoring.RecordEvent("token_sweep", map[string]string{
			"count": fmt.Sprintf("%d", count),
		})
	})
}
