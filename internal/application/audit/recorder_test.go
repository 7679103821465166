package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/logger"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/persistence"
	"github.com/eo-nwanze/lavish-sub000/tests/testutil"
	"github.com/google/uuid"
)

func newRecorder(t *testing.T) (*Recorder, *persistence.GormSyncLogRepository) {
	t.Helper()
	repo := persistence.NewGormSyncLogRepository(testutil.NewSQLiteDB(t))
	rec := NewRecorder(repo, zap.NewNop())
	now := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
	rec.SetClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	})
	return rec, repo
}

func TestRecorder_BeginFinish(t *testing.T) {
	rec, repo := newRecorder(t)
	ctx := context.Background()

	ctx, log, err := rec.Begin(ctx, integration.OperationBillingRun, true)
	require.NoError(t, err)
	assert.Equal(t, log.ID.String(), logger.GetSyncLogID(ctx))

	stored, err := repo.FindByID(ctx, log.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncLogInProgress, stored.Status)
	assert.True(t, stored.DryRun)

	require.NoError(t, log.RecordSuccess())
	require.NoError(t, log.RecordSkip())
	require.NoError(t, log.RecordFailure(shared.SubscriptionRef(uuid.New()), "PAYMENT_DECLINED", "card declined"))
	require.NoError(t, rec.Finish(ctx, log))

	stored, err = repo.FindByID(ctx, log.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncLogCompleted, stored.Status)
	assert.Equal(t, 3, stored.Processed)
	assert.Equal(t, 1, stored.Succeeded)
	assert.Equal(t, 1, stored.Skipped)
	assert.Equal(t, 1, stored.Failed)
	require.Len(t, stored.Errors, 1)
	assert.Equal(t, "PAYMENT_DECLINED", stored.Errors[0].Code)
	require.NotNil(t, stored.FinishedAt)
	assert.Equal(t, time.Second, stored.Duration())
}

func TestRecorder_Fail(t *testing.T) {
	rec, repo := newRecorder(t)
	ctx, log, err := rec.Begin(context.Background(), integration.OperationPushBatch, false)
	require.NoError(t, err)

	require.NoError(t, rec.Fail(ctx, log, errors.New("candidate query failed")))

	stored, err := repo.FindByID(ctx, log.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncLogFailed, stored.Status)
	assert.Equal(t, "candidate query failed", stored.Detail)
}

func TestRecorder_FinalizedLogIsImmutable(t *testing.T) {
	rec, _ := newRecorder(t)
	ctx, log, err := rec.Begin(context.Background(), integration.OperationWebhook, false)
	require.NoError(t, err)
	require.NoError(t, rec.Finish(ctx, log))

	assert.ErrorIs(t, rec.Finish(ctx, log), integration.ErrSyncLogFinalized)
	assert.ErrorIs(t, rec.Fail(ctx, log, errors.New("late")), integration.ErrSyncLogFinalized)
}

func TestRecorder_RejectsUnknownOperation(t *testing.T) {
	rec, _ := newRecorder(t)
	_, _, err := rec.Begin(context.Background(), integration.SyncOperation("REINDEX"), false)
	assert.Error(t, err)
}
