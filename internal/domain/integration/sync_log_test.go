package integration

import (
	"fmt"
	"testing"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// SyncLog Tests
// ---------------------------------------------------------------------------

func TestNewSyncLog(t *testing.T) {
	log, err := NewSyncLog(OperationBillingRun, true, time.Now())
	require.NoError(t, err)
	assert.Equal(t, SyncLogInProgress, log.Status)
	assert.True(t, log.DryRun)
	assert.NotEqual(t, uuid.Nil, log.ID)

	_, err = NewSyncLog(SyncOperation("REINDEX"), false, time.Now())
	assert.Error(t, err)
}

func TestSyncLog_Counts(t *testing.T) {
	log, err := NewSyncLog(OperationPushBatch, false, time.Now())
	require.NoError(t, err)

	ref := shared.SubscriptionRef(uuid.New())
	require.NoError(t, log.RecordSuccess())
	require.NoError(t, log.RecordSkip())
	require.NoError(t, log.RecordFailure(ref, "TRANSPORT_ERROR", "timeout"))

	assert.Equal(t, 3, log.Processed)
	assert.Equal(t, 1, log.Succeeded)
	assert.Equal(t, 1, log.Skipped)
	assert.Equal(t, 1, log.Failed)
	require.Len(t, log.Errors, 1)
	assert.Equal(t, ref, log.Errors[0].Ref)
}

func TestSyncLog_FinalizedIsImmutable(t *testing.T) {
	log, err := NewSyncLog(OperationWebhook, false, time.Now())
	require.NoError(t, err)
	require.NoError(t, log.Complete(time.Now()))
	assert.NotNil(t, log.FinishedAt)

	assert.ErrorIs(t, log.RecordSuccess(), ErrSyncLogFinalized)
	assert.ErrorIs(t, log.RecordFailure(shared.EntityRef{}, "X", "y"), ErrSyncLogFinalized)
	assert.ErrorIs(t, log.Complete(time.Now()), ErrSyncLogFinalized)
	assert.ErrorIs(t, log.Fail("late", time.Now()), ErrSyncLogFinalized)
	assert.Equal(t, 0, log.Processed)
}

func TestSyncLog_Fail(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	log, err := NewSyncLog(OperationBillingRun, false, start)
	require.NoError(t, err)
	require.NoError(t, log.Fail("candidate query failed", start.Add(2*time.Second)))
	assert.Equal(t, SyncLogFailed, log.Status)
	assert.Equal(t, 2*time.Second, log.Duration())
}

// ---------------------------------------------------------------------------
// Error Taxonomy Tests
// ---------------------------------------------------------------------------

func TestRemoteErrors(t *testing.T) {
	t.Run("validation error matches sentinel", func(t *testing.T) {
		err := NewRemoteValidationError("subscriptionContractCreate", FieldError{
			Field:   []string{"input", "lines"},
			Message: "is invalid",
		})
		assert.True(t, IsValidation(err))
		assert.False(t, IsTransient(err))
		assert.Contains(t, err.Error(), "input.lines: is invalid")
		assert.Len(t, FieldErrorsOf(err), 1)
	})

	t.Run("wrapped unavailable is transient", func(t *testing.T) {
		err := fmt.Errorf("create subscription: %w", ErrRemoteUnavailable)
		assert.True(t, IsTransient(err))
		assert.False(t, IsValidation(err))
		assert.Nil(t, FieldErrorsOf(err))
	})
}

// ---------------------------------------------------------------------------
// Topic Tests
// ---------------------------------------------------------------------------

func TestTopicFromSlug(t *testing.T) {
	topic, err := TopicFromSlug("billing-failure")
	require.NoError(t, err)
	assert.Equal(t, TopicBillingFailure, topic)
	assert.Equal(t, "billing-failure", topic.Slug())
	assert.True(t, topic.IsValid())

	_, err = TopicFromSlug("orders-create")
	assert.ErrorIs(t, err, ErrUnknownTopic)
	assert.False(t, Topic("orders/create").IsValid())
}
