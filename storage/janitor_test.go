package storage_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/notes-keeper/auth-service/models"
	"github.com/pribylovaa/notes-keeper/auth-service/storage"
)

// countingSessions считает вызовы DeleteExpiredSessions.
type countingSessions struct {
	deletes atomic.Int64
}

func (c *countingSessions) SaveSession(context.Context, *models.RefreshSession) error { return nil }

func (c *countingSessions) ActiveSessionsByAccount(context.Context, uuid.UUID) ([]models.RefreshSession, error) {
	return nil, nil
}

func (c *countingSessions) RevokeSessionIfActive(context.Context, uuid.UUID) (bool, error) {
	return false, storage.ErrNotFound
}

func (c *countingSessions) RevokeAllByAccount(context.Context, uuid.UUID) error { return nil }

func (c *countingSessions) DeleteExpiredSessions(context.Context, time.Time) error {
	c.deletes.Add(1)
	return nil
}

func TestStartJanitor_PeriodicallyDeletes(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := &countingSessions{}
	storage.StartJanitor(ctx, st, nil, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return st.deletes.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestStartJanitor_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	st := &countingSessions{}
	storage.StartJanitor(ctx, st, nil, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return st.deletes.Load() >= 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(30 * time.Millisecond)
	after := st.deletes.Load()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, after, st.deletes.Load())
}

func TestStartJanitor_NoopOnZeroPeriod(t *testing.T) {
	t.Parallel()

	st := &countingSessions{}
	storage.StartJanitor(context.Background(), st, nil, 0)

	time.Sleep(30 * time.Millisecond)
	require.Zero(t, st.deletes.Load())
}
