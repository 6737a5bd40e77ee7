// FilePath: internal/cleanup/cleanup_test.go
package cleanup

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartallotment/hub/internal/config"
	"github.com/smartallotment/hub/internal/models"
	"github.com/smartallotment/hub/internal/repository/memory"
)

func TestSweepSessionsDeletesOnlyExpired(t *testing.T) {
	sessions := memory.NewSessionRepository()
	tokens := memory.NewTokenRepository()
	svc := New(sessions, tokens, config.CleanupConfig{
		SessionSweepInterval: time.Minute,
		TokenSweepInterval:   time.Minute,
	})

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, sessions.Create(ctx, &models.Session{Token: "live", UserID: "u1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, sessions.Create(ctx, &models.Session{Token: "dead", UserID: "u1", ExpiresAt: now.Add(-time.Hour)}))

	var swept int64
	svc.OnCleanup("sessions.swept", func(count int64) { swept = count })

	count, err := svc.SweepSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(1), swept)

	_, err = sessions.Get(ctx, "live")
	assert.NoError(t, err)
	_, err = sessions.Get(ctx, "dead")
	assert.Error(t, err)
}

func TestSweepTokensKeepsNonExpiring(t *testing.T) {
	sessions := memory.NewSessionRepository()
	tokens := memory.NewTokenRepository()
	svc := New(sessions, tokens, config.CleanupConfig{
		SessionSweepInterval: time.Minute,
		TokenSweepInterval:   time.Minute,
	})

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, tokens.Create(ctx, &models.APIToken{
		TokenHash: "hash-forever", Name: "forever", Active: true,
	}))
	require.NoError(t, tokens.Create(ctx, &models.APIToken{
		TokenHash: "hash-stale", Name: "stale", Active: true,
		ExpiresAt: sql.NullTime{Time: now.Add(-time.Minute), Valid: true},
	}))

	var swept int64
	svc.OnCleanup("tokens.swept", func(count int64) { swept = count })

	count, err := svc.SweepTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(1), swept)

	remaining, err := tokens.List(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "forever", remaining[0].Name)
}

func TestSweepIsIdempotent(t *testing.T) {
	sessions := memory.NewSessionRepository()
	tokens := memory.NewTokenRepository()
	svc := New(sessions, tokens, config.CleanupConfig{
		SessionSweepInterval: time.Minute,
		TokenSweepInterval:   time.Minute,
	})

	ctx := context.Background()
	require.NoError(t, sessions.Create(ctx, &models.Session{Token: "dead", UserID: "u1", ExpiresAt: time.Now().UTC().Add(-time.Hour)}))

	count, err := svc.SweepSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = svc.SweepSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
