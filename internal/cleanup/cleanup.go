package cleanup

import (
	"context"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/smartallotment/hub/internal/config"
	"github.com/smartallotment/hub/internal/repository"
)

// CleanupService runs the two background sweeps that delete expired
// credentials: sessions and api tokens. The sweeps are independent,
// idempotent, and safe to run concurrently with all other operations:
// expiry is already enforced on every authentication check, the sweeps
// only reclaim storage.
type CleanupService struct {
	sessions repository.SessionRepository
	tokens   repository.TokenRepository
	cfg      config.CleanupConfig
	events   *nuts.EventEmitter
}

// New creates a new CleanupService
func New(sessions repository.SessionRepository, tokens repository.TokenRepository, cfg config.CleanupConfig) *CleanupService {
	return &CleanupService{
		sessions: sessions,
		tokens:   tokens,
		cfg:      cfg,
		events:   nuts.NewEventEmitter(),
	}
}

// Run starts both sweep loops and blocks until ctx is cancelled.
func (s *CleanupService) Run(ctx context.Context) {
	sessionTicker := time.NewTicker(s.cfg.SessionSweepInterval)
	tokenTicker := time.NewTicker(s.cfg.TokenSweepInterval)
	defer sessionTicker.Stop()
	defer tokenTicker.Stop()

	nuts.L.Infof("[Cleanup] Sweeps started (sessions every %v, tokens every %v)",
		s.cfg.SessionSweepInterval, s.cfg.TokenSweepInterval)

	for {
		select {
		case <-ctx.Done():
			nuts.L.Infof("[Cleanup] Sweeps stopped")
			return
		case <-sessionTicker.C:
			if _, err := s.SweepSessions(ctx); err != nil {
				nuts.L.Errorf("[Cleanup] Session sweep failed: %v", err)
			}
		case <-tokenTicker.C:
			if _, err := s.SweepTokens(ctx); err != nil {
				nuts.L.Errorf("[Cleanup] Token sweep failed: %v", err)
			}
		}
	}
}

// SweepSessions deletes all sessions past their absolute expiry.
func (s *CleanupService) SweepSessions(ctx context.Context) (int64, error) {
	count, err := s.sessions.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		if err := s.events.Emit("sessions.swept", count); err != nil {
			nuts.L.Errorf("[Cleanup] Failed to emit sessions.swept: %v", err)
		}
	}
	return count, nil
}

// SweepTokens deletes all api tokens past their expiry. Tokens without an
// expiry are never swept; deactivation is the revocation path for those.
func (s *CleanupService) SweepTokens(ctx context.Context) (int64, error) {
	count, err := s.tokens.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		if err := s.events.Emit("tokens.swept", count); err != nil {
			nuts.L.Errorf("[Cleanup] Failed to emit tokens.swept: %v", err)
		}
	}
	return count, nil
}

// OnCleanup registers a callback for sweep events. The handler is
// registered as-is so the emitter can match its int64 argument.
func (s *CleanupService) OnCleanup(event string, handler func(count int64)) {
	if _, err := s.events.On(event, "cleanup_"+event, handler); err != nil {
		nuts.L.Errorf("[Cleanup] Failed to register handler for %s: %v", event, err)
	}
}
