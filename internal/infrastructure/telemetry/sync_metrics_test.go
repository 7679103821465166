package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

type fakeBacklog struct {
	pending map[string]int64
	failed  int64
	err     error
}

func (f *fakeBacklog) CountPendingPush(ctx context.Context) (map[string]int64, error) {
	return f.pending, f.err
}

func (f *fakeBacklog) CountFailedSubscriptions(ctx context.Context) (int64, error) {
	return f.failed, f.err
}

func newReaderMetrics(t *testing.T, backlog telemetry.SyncBacklogProvider) (*telemetry.SyncMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:           provider.Meter("test"),
		Logger:          zap.NewNop(),
		BacklogProvider: backlog,
	})
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, key attribute.Key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(key); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestNewSyncMetrics_NilMeter(t *testing.T) {
	m, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{})
	require.Error(t, err)
	assert.Nil(t, m)
	assert.Equal(t, "NewSyncMetrics: meter cannot be nil", err.Error())
}

func TestSyncMetrics_NoopMeter(t *testing.T) {
	m, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{Meter: noop.NewMeterProvider().Meter("test")})
	require.NoError(t, err)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordPush(ctx, "SUBSCRIPTION", telemetry.OutcomeSuccess)
		m.RecordBilling(ctx, telemetry.OutcomeSkipped, "NO_PAYMENT_METHOD", false)
		m.RecordChargedAmount(ctx, "USD", decimal.RequireFromString("29.00"))
		m.RecordWebhook(ctx, "subscription_contracts/update", telemetry.OutcomeSuccess)
		m.RecordRun(ctx, "BILLING_RUN", time.Second)
	})
}

func TestSyncMetrics_NilReceiver(t *testing.T) {
	var m *telemetry.SyncMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordPush(ctx, "SUBSCRIPTION", telemetry.OutcomeFailed)
		m.RecordBilling(ctx, telemetry.OutcomeFailed, "PAYMENT_DECLINED", false)
		m.RecordChargedAmount(ctx, "USD", decimal.NewFromInt(1))
		m.RecordWebhook(ctx, "x", telemetry.OutcomeRejected)
		m.RecordRun(ctx, "PUSH_BATCH", time.Millisecond)
		m.StartPeriodicCollection(ctx, time.Second)
		m.Stop()
	})
}

func TestSyncMetrics_Counters(t *testing.T) {
	m, reader := newReaderMetrics(t, nil)
	ctx := context.Background()

	m.RecordPush(ctx, "SUBSCRIPTION", telemetry.OutcomeSuccess)
	m.RecordPush(ctx, "SUBSCRIPTION", telemetry.OutcomeSuccess)
	m.RecordPush(ctx, "SELLING_PLAN", telemetry.OutcomeFailed)
	m.RecordBilling(ctx, telemetry.OutcomeSkipped, "NO_PAYMENT_METHOD", false)
	m.RecordChargedAmount(ctx, "USD", decimal.RequireFromString("29.99"))
	m.RecordWebhook(ctx, "subscription_billing_attempts/success", telemetry.OutcomeIgnored)

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumFor(t, metrics["subsync_push_total"], telemetry.AttrOutcome, telemetry.OutcomeSuccess))
	assert.Equal(t, int64(1), sumFor(t, metrics["subsync_push_total"], telemetry.AttrEntityKind, "SELLING_PLAN"))
	assert.Equal(t, int64(1), sumFor(t, metrics["subsync_billing_total"], telemetry.AttrReason, "NO_PAYMENT_METHOD"))
	assert.Equal(t, int64(2999), sumFor(t, metrics["subsync_billing_amount_total"], telemetry.AttrCurrency, "USD"))
	assert.Equal(t, int64(1), sumFor(t, metrics["subsync_webhook_total"], telemetry.AttrOutcome, telemetry.OutcomeIgnored))
}

func TestSyncMetrics_PeriodicCollection(t *testing.T) {
	backlog := &fakeBacklog{pending: map[string]int64{"SUBSCRIPTION": 4, "SELLING_PLAN": 1}, failed: 2}
	m, reader := newReaderMetrics(t, backlog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartPeriodicCollection(ctx, time.Hour)
	defer m.Stop()

	assert.Eventually(t, func() bool {
		_, ok := collect(t, reader)["subsync_failed_subscriptions"]
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	gauge, ok := collect(t, reader)["subsync_pending_push"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	byKind := map[string]int64{}
	for _, dp := range gauge.DataPoints {
		v, _ := dp.Attributes.Value(telemetry.AttrEntityKind)
		byKind[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"SUBSCRIPTION": 4, "SELLING_PLAN": 1}, byKind)
}

func TestSyncMetrics_PeriodicCollection_ProviderError(t *testing.T) {
	m, reader := newReaderMetrics(t, &fakeBacklog{err: errors.New("db down")})

	ctx, cancel := context.WithCancel(context.Background())
	m.StartPeriodicCollection(ctx, time.Hour)
	time.Sleep(50 * time.Millisecond)
	cancel()

	_, ok := collect(t, reader)["subsync_failed_subscriptions"]
	assert.False(t, ok)
}
