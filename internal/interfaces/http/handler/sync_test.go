package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/application/billing"
	syncapp "github.com/eo-nwanze/lavish-sub000/internal/application/sync"
	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/scheduler"
	"github.com/eo-nwanze/lavish-sub000/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockBillingRunner struct {
	mock.Mock
}

func (m *mockBillingRunner) Run(ctx context.Context, opts billing.RunOptions) (*billing.RunSummary, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.RunSummary), args.Error(1)
}

func (m *mockBillingRunner) RetrySweep(ctx context.Context, opts billing.RunOptions) (*billing.RunSummary, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.RunSummary), args.Error(1)
}

type mockEntityPusher struct {
	mock.Mock
}

func (m *mockEntityPusher) Push(ctx context.Context, ref shared.EntityRef) (*syncapp.PushResult, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncapp.PushResult), args.Error(1)
}

func (m *mockEntityPusher) SyncPending(ctx context.Context) (*syncapp.SyncSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncapp.SyncSummary), args.Error(1)
}

func (m *mockEntityPusher) SyncPendingPlans(ctx context.Context) (*syncapp.SyncSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncapp.SyncSummary), args.Error(1)
}

func noop(context.Context) error { return nil }

// newGuard registers the sync jobs on a scheduler that is never started
func newGuard(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	s := scheduler.New(scheduler.Config{CheckInterval: time.Minute}, zap.NewNop())
	for _, name := range []string{scheduler.JobBillingRun, scheduler.JobRetrySweep, scheduler.JobPushPending} {
		require.NoError(t, s.Register(scheduler.Job{Name: name, Schedule: scheduler.Every(time.Hour), Run: noop}))
	}
	return s
}

func setupSyncRouter(h *SyncHandler) *gin.Engine {
	r := gin.New()
	r.POST("/sync/billing/run", h.RunBilling)
	r.POST("/sync/billing/retry", h.RetryBilling)
	r.POST("/sync/push", h.PushPendingEntities)
	r.POST("/sync/push/:kind/:id", h.PushEntity)
	r.GET("/sync/jobs", h.ListJobs)
	return r
}

func TestSyncHandler_RunBilling(t *testing.T) {
	runner := new(mockBillingRunner)
	h := NewSyncHandler(runner, new(mockEntityPusher), newGuard(t))
	router := setupSyncRouter(h)

	logID := uuid.New()
	runner.On("Run", mock.Anything, billing.RunOptions{DryRun: false}).
		Return(&billing.RunSummary{Total: 3, Successful: 2, Skipped: 1, SyncLogID: logID}, nil).Once()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync/billing/run", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp APIResponse[billing.RunSummary]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Data.Total)
	assert.Equal(t, logID, resp.Data.SyncLogID)
	runner.AssertExpectations(t)
}

func TestSyncHandler_RunBilling_DryRunWithDate(t *testing.T) {
	runner := new(mockBillingRunner)
	h := NewSyncHandler(runner, new(mockEntityPusher), newGuard(t))
	router := setupSyncRouter(h)

	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	runner.On("Run", mock.Anything, billing.RunOptions{DryRun: true, Today: today}).
		Return(&billing.RunSummary{DryRun: true}, nil).Once()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync/billing/run?dry_run=true&date=2026-03-15", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	runner.AssertExpectations(t)
}

func TestSyncHandler_RunBilling_BadQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"bad dry_run", "?dry_run=maybe"},
		{"bad date", "?date=15/03/2026"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(mockBillingRunner)
			router := setupSyncRouter(NewSyncHandler(runner, new(mockEntityPusher), newGuard(t)))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync/billing/run"+tt.query, nil))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
		})
	}
}

func TestSyncHandler_RunBilling_AlreadyRunning(t *testing.T) {
	runner := new(mockBillingRunner)
	guard := newGuard(t)
	router := setupSyncRouter(NewSyncHandler(runner, new(mockEntityPusher), guard))

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- guard.Exclusive(context.Background(), scheduler.JobBillingRun, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync/billing/run", nil))
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeJobAlreadyRunning, resp.Error.Code)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestSyncHandler_RetryBilling(t *testing.T) {
	runner := new(mockBillingRunner)
	router := setupSyncRouter(NewSyncHandler(runner, new(mockEntityPusher), newGuard(t)))

	runner.On("RetrySweep", mock.Anything, billing.RunOptions{}).
		Return(&billing.RunSummary{Total: 1, Failed: 1, Exhausted: 1}, nil).Once()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync/billing/retry", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp APIResponse[billing.RunSummary]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Exhausted)
	runner.AssertExpectations(t)
}

func TestSyncHandler_PushPending_PlansFirst(t *testing.T) {
	pusher := new(mockEntityPusher)
	router := setupSyncRouter(NewSyncHandler(new(mockBillingRunner), pusher, newGuard(t)))

	var order []string
	pusher.On("SyncPendingPlans", mock.Anything).
		Run(func(mock.Arguments) { order = append(order, "plans") }).
		Return(&syncapp.SyncSummary{Total: 1, Successful: 1}, nil).Once()
	pusher.On("SyncPending", mock.Anything).
		Run(func(mock.Arguments) { order = append(order, "subscriptions") }).
		Return(&syncapp.SyncSummary{Total: 2, Successful: 1, Failed: 1}, nil).Once()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync/push", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"plans", "subscriptions"}, order)
	var resp APIResponse[PushRunResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data.Subscriptions)
	assert.Equal(t, 1, resp.Data.Subscriptions.Failed)
	pusher.AssertExpectations(t)
}

func TestSyncHandler_PushEntity(t *testing.T) {
	pusher := new(mockEntityPusher)
	router := setupSyncRouter(NewSyncHandler(new(mockBillingRunner), pusher, newGuard(t)))

	id := uuid.New()
	pusher.On("Push", mock.Anything, shared.SubscriptionRef(id)).
		Return(&syncapp.PushResult{Success: true, RemoteID: "gid://commerce/SubscriptionContract/5"}, nil).Once()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync/push/subscription/"+id.String(), nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp APIResponse[syncapp.PushResult]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Success)
	pusher.AssertExpectations(t)
}

func TestSyncHandler_PushEntity_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantCode int
		wantErr  string
	}{
		{"unknown kind", "/sync/push/order/" + uuid.NewString(), http.StatusBadRequest, dto.ErrCodeInvalidEntityKind},
		{"bad id", "/sync/push/selling_plan/not-a-uuid", http.StatusBadRequest, dto.ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pusher := new(mockEntityPusher)
			router := setupSyncRouter(NewSyncHandler(new(mockBillingRunner), pusher, newGuard(t)))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, tt.path, nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, decodeResponse(t, w).Error.Code)
			pusher.AssertNotCalled(t, "Push", mock.Anything, mock.Anything)
		})
	}
}

func TestSyncHandler_PushEntity_NotFound(t *testing.T) {
	pusher := new(mockEntityPusher)
	router := setupSyncRouter(NewSyncHandler(new(mockBillingRunner), pusher, newGuard(t)))

	id := uuid.New()
	pusher.On("Push", mock.Anything, shared.SellingPlanRef(id)).Return(nil, shared.ErrNotFound).Once()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync/push/selling_plan/"+id.String(), nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncHandler_ListJobs(t *testing.T) {
	router := setupSyncRouter(NewSyncHandler(new(mockBillingRunner), new(mockEntityPusher), newGuard(t)))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/jobs", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp APIResponse[[]scheduler.JobState]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 3)
	assert.Equal(t, scheduler.JobRetrySweep, resp.Data[0].Name)
}
