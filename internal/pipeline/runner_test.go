package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/yield-radar/internal/aggregate"
	"github.com/yourorg/yield-radar/internal/circuitbreaker"
	"github.com/yourorg/yield-radar/internal/fetch"
	"github.com/yourorg/yield-radar/internal/history"
	"github.com/yourorg/yield-radar/internal/model"
	"github.com/yourorg/yield-radar/internal/report"
)

type stubAdapter struct {
	name    string
	records []model.YieldRecord
	err     error
}

func (s stubAdapter) Name() string { return s.name }

func (s stubAdapter) Fetch(ctx context.Context) ([]model.YieldRecord, error) {
	return s.records, s.err
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) Send(text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

func kavaRecord() model.YieldRecord {
	return model.YieldRecord{
		Category:    model.CategoryPrimary,
		SourceName:  "rise",
		AssetSymbol: "KAVA",
		PoolLabel:   "Staking",
		APYTotal:    8.1,
		TVL:         1_000_000,
	}
}

func newRunner(adapters []fetch.Adapter, breaker *circuitbreaker.CircuitBreaker, notifier Notifier) (*Runner, *history.Tracker) {
	tracker := history.NewTracker(history.NewMemoryStore())
	runner := NewRunner(
		aggregate.New(adapters, aggregate.DefaultOptions()),
		breaker,
		tracker,
		report.NewFormatter("Kava Yield Radar"),
		notifier,
		7,
	)
	return runner, tracker
}

func TestRunOnce_PublishesHealthyRun(t *testing.T) {
	notifier := &fakeNotifier{}
	runner, _ := newRunner(
		[]fetch.Adapter{stubAdapter{name: "rise", records: []model.YieldRecord{kavaRecord()}}},
		circuitbreaker.New(circuitbreaker.Thresholds{MinProviders: 1}),
		notifier,
	)

	rep, err := runner.RunOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, rep.Published)
	assert.Empty(t, rep.SkipReason)
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "KAVA Staking @ rise")
	assert.Equal(t, 1, rep.Buckets.Count())
}

func TestRunOnce_RecordsHistoryEvenWhenSuppressed(t *testing.T) {
	notifier := &fakeNotifier{}
	runner, tracker := newRunner(
		[]fetch.Adapter{stubAdapter{name: "rise", records: []model.YieldRecord{kavaRecord()}}},
		circuitbreaker.New(circuitbreaker.Thresholds{MinProviders: 3}),
		notifier,
	)

	rep, err := runner.RunOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, rep.Published)
	assert.Contains(t, rep.SkipReason, "providers")
	assert.Empty(t, notifier.sent)

	// the snapshot made it into history regardless
	_, ok := tracker.AverageOverWindow("rise-kava-staking", 7)
	assert.False(t, ok) // one snapshot is below the minimum sample count
}

func TestRunOnce_NilNotifierRendersWithoutSending(t *testing.T) {
	runner, _ := newRunner(
		[]fetch.Adapter{stubAdapter{name: "rise", records: []model.YieldRecord{kavaRecord()}}},
		circuitbreaker.New(circuitbreaker.Thresholds{MinProviders: 1}),
		nil,
	)

	rep, err := runner.RunOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, rep.Published)
	assert.Equal(t, "delivery disabled", rep.SkipReason)
	assert.Contains(t, rep.Message, "Kava Yield Radar")
}

func TestRunOnce_DeliveryFailureIsAnError(t *testing.T) {
	runner, _ := newRunner(
		[]fetch.Adapter{stubAdapter{name: "rise", records: []model.YieldRecord{kavaRecord()}}},
		circuitbreaker.New(circuitbreaker.Thresholds{MinProviders: 1}),
		&fakeNotifier{err: errors.New("chat not found")},
	)

	_, err := runner.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delivery failed")
}

func TestRunOnce_CancelledContextSkipsHistory(t *testing.T) {
	flushed := false
	runner, _ := newRunner(
		[]fetch.Adapter{stubAdapter{name: "rise", records: []model.YieldRecord{kavaRecord()}}},
		circuitbreaker.New(circuitbreaker.Thresholds{MinProviders: 1}),
		&fakeNotifier{},
	)
	runner.WithFlush(func() error { flushed = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, flushed)
}

func TestRunOnce_FlushFailureDoesNotFailRun(t *testing.T) {
	notifier := &fakeNotifier{}
	runner, _ := newRunner(
		[]fetch.Adapter{stubAdapter{name: "rise", records: []model.YieldRecord{kavaRecord()}}},
		circuitbreaker.New(circuitbreaker.Thresholds{MinProviders: 1}),
		notifier,
	)
	runner.WithFlush(func() error { return errors.New("disk full") })

	rep, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Published)
}

func TestRunOnce_AdapterErrorDoesNotFailRun(t *testing.T) {
	notifier := &fakeNotifier{}
	runner, _ := newRunner(
		[]fetch.Adapter{
			stubAdapter{name: "rise", records: []model.YieldRecord{kavaRecord()}},
			stubAdapter{name: "hover", err: errors.New("subgraph down")},
		},
		circuitbreaker.New(circuitbreaker.Thresholds{MinProviders: 1}),
		notifier,
	)

	rep, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Published)
	require.Len(t, rep.Results, 2)
}

func TestRunOnce_SevenDayAverageInReport(t *testing.T) {
	notifier := &fakeNotifier{}
	runner, tracker := newRunner(
		[]fetch.Adapter{stubAdapter{name: "rise", records: []model.YieldRecord{kavaRecord()}}},
		circuitbreaker.New(circuitbreaker.Thresholds{MinProviders: 1}),
		notifier,
	)

	now := time.Now().UTC()
	for i := 3; i >= 1; i-- {
		tracker.RecordSnapshot("rise-kava-staking", now.AddDate(0, 0, -i), 8.1)
	}

	_, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "7d avg 8\\.10%")
}
