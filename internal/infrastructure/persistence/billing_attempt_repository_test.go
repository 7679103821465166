package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/subscription"
	"github.com/eo-nwanze/lavish-sub000/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAttempt(t *testing.T, subID uuid.UUID, key string, at time.Time) *subscription.BillingAttempt {
	t.Helper()
	attempt, err := subscription.NewBillingAttempt(subID, decimal.RequireFromString("29.00"), "USD", key, at)
	require.NoError(t, err)
	return attempt
}

func TestGormBillingAttemptRepository_SaveAndFind(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormBillingAttemptRepository(db)
	ctx := context.Background()
	subID := uuid.New()
	at := time.Date(2025, 1, 31, 6, 0, 0, 0, time.UTC)

	attempt := newTestAttempt(t, subID, subID.String()+":1:2025-01-31", at)
	require.NoError(t, repo.Save(ctx, attempt))

	attempt.SetRemoteID("gid://attempt/9")
	require.NoError(t, attempt.MarkSucceeded("gid://order/4", at.Add(time.Minute)))
	require.NoError(t, repo.Save(ctx, attempt))

	found, err := repo.FindByIdempotencyKey(ctx, subID.String()+":1:2025-01-31")
	require.NoError(t, err)
	assert.Equal(t, subscription.AttemptSuccess, found.Status)
	assert.True(t, decimal.RequireFromString("29").Equal(found.Amount))
	require.NotNil(t, found.RemoteOrderRef)
	assert.Equal(t, "gid://order/4", *found.RemoteOrderRef)

	byRemote, err := repo.FindByRemoteID(ctx, "gid://attempt/9")
	require.NoError(t, err)
	assert.Equal(t, attempt.ID, byRemote.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, subscription.ErrBillingAttemptNotFound)
}

func TestGormBillingAttemptRepository_DuplicateIdempotencyKey(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormBillingAttemptRepository(db)
	ctx := context.Background()
	subID := uuid.New()
	at := time.Now().UTC()

	require.NoError(t, repo.Save(ctx, newTestAttempt(t, subID, "dup-key", at)))
	err := repo.Save(ctx, newTestAttempt(t, subID, "dup-key", at))
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestGormBillingAttemptRepository_FailureWindow(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormBillingAttemptRepository(db)
	ctx := context.Background()
	now := time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC)
	since := now.Add(-7 * 24 * time.Hour)

	fail := func(subID uuid.UUID, n int, at time.Time) {
		attempt := newTestAttempt(t, subID, uuid.NewString(), at)
		require.NoError(t, attempt.MarkFailed(subscription.AttemptErrorDeclined, "card declined", at))
		require.NoError(t, repo.Save(ctx, attempt))
	}

	once := uuid.New()
	fail(once, 1, now.Add(-24*time.Hour))

	capped := uuid.New()
	for i := 0; i < 3; i++ {
		fail(capped, i, now.Add(-time.Duration(i+1)*time.Hour))
	}

	stale := uuid.New()
	fail(stale, 1, now.Add(-8*24*time.Hour))

	count, err := repo.CountFailedSince(ctx, capped, since)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = repo.CountFailedSince(ctx, stale, since)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	candidates, err := repo.FindRetryCandidates(ctx, since, 3)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{once}, candidates)
}

func TestGormBillingAttemptRepository_FindPendingAndHistory(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormBillingAttemptRepository(db)
	ctx := context.Background()
	subID := uuid.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	pending, err := repo.FindPending(ctx, subID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	older := newTestAttempt(t, subID, "k1", base)
	require.NoError(t, older.MarkFailed(subscription.AttemptErrorTransport, "timeout", base))
	require.NoError(t, repo.Save(ctx, older))
	newer := newTestAttempt(t, subID, "k2", base.Add(time.Hour))
	require.NoError(t, repo.Save(ctx, newer))
	require.NoError(t, repo.Save(ctx, newTestAttempt(t, uuid.New(), "other", base)))

	pending, err = repo.FindPending(ctx, subID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, newer.ID, pending[0].ID)
	assert.True(t, pending[0].AttemptedAt.Equal(base.Add(time.Hour)))

	history, err := repo.ListBySubscription(ctx, subID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, newer.ID, history[0].ID)
	assert.Equal(t, older.ID, history[1].ID)
}
