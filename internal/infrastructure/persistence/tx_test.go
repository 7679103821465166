package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/eo-nwanze/lavish-sub000/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormTxManager_WithinTransaction(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	txm := NewGormTxManager(db)
	repo := NewGormSubscriptionRepository(db)
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		sub := testutil.NewSubscription(t, uuid.New())
		err := txm.WithinTransaction(ctx, func(ctx context.Context) error {
			return repo.Save(ctx, sub)
		})
		require.NoError(t, err)

		_, err = repo.FindByID(ctx, sub.ID)
		assert.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		sub := testutil.NewSubscription(t, uuid.New())
		boom := errors.New("boom")
		err := txm.WithinTransaction(ctx, func(ctx context.Context) error {
			require.NoError(t, repo.Save(ctx, sub))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = repo.FindByID(ctx, sub.ID)
		assert.Error(t, err)
	})

	t.Run("nested calls join the outer transaction", func(t *testing.T) {
		sub := testutil.NewSubscription(t, uuid.New())
		boom := errors.New("outer failure")
		err := txm.WithinTransaction(ctx, func(ctx context.Context) error {
			inner := txm.WithinTransaction(ctx, func(ctx context.Context) error {
				return repo.Save(ctx, sub)
			})
			require.NoError(t, inner)
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = repo.FindByID(ctx, sub.ID)
		assert.Error(t, err)
	})
}
