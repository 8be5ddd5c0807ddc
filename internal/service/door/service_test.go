package door

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/doorwatch/internal/domain/door"
	"github.com/oshokin/doorwatch/internal/repository/subscription"
	"github.com/oshokin/doorwatch/internal/service/dispatcher"
)

const testDelay = 100 * time.Millisecond

type fakeBroadcaster struct {
	refreshes atomic.Int32
}

func (f *fakeBroadcaster) BroadcastRefresh() {
	f.refreshes.Add(1)
}

type fakeNotifier struct {
	mu            sync.Mutex
	notifications []*domain.Notification
}

func (f *fakeNotifier) Dispatch(_ context.Context, notification *domain.Notification) *dispatcher.Report {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.notifications = append(f.notifications, notification)

	return new(dispatcher.Report)
}

func (f *fakeNotifier) sent() []*domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*domain.Notification(nil), f.notifications...)
}

type fixture struct {
	service     *Service
	notifier    *fakeNotifier
	broadcaster *fakeBroadcaster
}

func newFixture(historySize int) *fixture {
	f := &fixture{
		notifier:    new(fakeNotifier),
		broadcaster: new(fakeBroadcaster),
	}

	f.service = New(context.Background(), Options{
		DeviceName:  "Fridge",
		Icon:        "icon.png",
		Version:     "test",
		AlarmDelay:  testDelay,
		HistorySize: historySize,
		Location:    time.UTC,
	}, subscription.NewMemoryRepository(), f.notifier, f.broadcaster)

	return f
}

func TestService_InitialSnapshot(t *testing.T) {
	t.Parallel()

	f := newFixture(5)
	snapshot := f.service.Snapshot()

	require.Equal(t, domain.StatusUnknown, snapshot.Status)
	require.Zero(t, snapshot.UpdateCounter)
	require.False(t, snapshot.IsOpen)
	require.False(t, snapshot.AlarmPending)
	require.Nil(t, snapshot.LastOpenedAt)
	require.Nil(t, snapshot.LastClosedAt)
	require.Nil(t, snapshot.LastAlarmAt)
	require.Equal(t, "Fridge", snapshot.DeviceName)
	require.Equal(t, "test", snapshot.Version)
	require.Equal(t, "UTC", snapshot.TimeZone)
	require.Equal(t, testDelay, snapshot.AlarmDelay)
	require.Empty(t, f.service.History())
}

// TestService_CounterCountsEveryTransition checks that repeated signals are counted and recorded too.
func TestService_CounterCountsEveryTransition(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		f := newFixture(10)
		ctx := context.Background()
		signals := []bool{false, false, true, true, false}

		for i, open := range signals {
			result := f.service.ApplyTransition(ctx, open)
			require.Equal(t, open, result.IsOpen)
			require.Equal(t, uint64(i+1), f.service.Snapshot().UpdateCounter)
		}

		f.service.Close()

		entries := f.service.History()
		require.Len(t, entries, len(signals))

		for i, open := range signals {
			require.Equal(t, open, entries[i].IsOpen)
		}

		require.Equal(t, domain.StatusClosed, entries[0].Status)
		require.Equal(t, domain.StatusOpen, entries[2].Status)
		require.Equal(t, int32(len(signals)), f.broadcaster.refreshes.Load())
	})
}

func TestService_TransitionResult(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		f := newFixture(5)
		ctx := context.Background()

		first := f.service.ApplyTransition(ctx, true)
		require.False(t, first.WasOpen)
		require.True(t, first.IsOpen)
		require.Equal(t, domain.StatusOpen, first.Status)

		second := f.service.ApplyTransition(ctx, false)
		require.True(t, second.WasOpen)
		require.Equal(t, domain.StatusClosed, second.Status)

		snapshot := f.service.Snapshot()
		require.True(t, snapshot.LastOpenedAt.Equal(first.Timestamp))
		require.True(t, snapshot.LastClosedAt.Equal(second.Timestamp))
	})
}

func TestService_HistoryIsBounded(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		f := newFixture(3)
		ctx := context.Background()

		for _, open := range []bool{true, false, true, false} {
			f.service.ApplyTransition(ctx, open)
		}

		f.service.Close()

		entries := f.service.History()
		require.Len(t, entries, 3)
		require.Equal(t, []bool{false, true, false}, []bool{entries[0].IsOpen, entries[1].IsOpen, entries[2].IsOpen})
	})
}

// TestService_AlarmFiresOnce keeps the door open well past the delay: exactly one dispatch.
func TestService_AlarmFiresOnce(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		f := newFixture(5)

		result := f.service.ApplyTransition(context.Background(), true)
		require.True(t, f.service.Snapshot().AlarmPending)

		time.Sleep(10 * testDelay)
		synctest.Wait()

		sent := f.notifier.sent()
		require.Len(t, sent, 1)
		require.Equal(t, "Fridge is open!", sent[0].Title)
		require.Equal(t, "Fridge-"+result.Timestamp.Format(time.RFC3339), sent[0].Tag)

		snapshot := f.service.Snapshot()
		require.False(t, snapshot.AlarmPending)
		require.NotNil(t, snapshot.LastAlarmAt)
		require.True(t, result.Timestamp.Add(testDelay).Equal(*snapshot.LastAlarmAt))
	})
}

// TestService_ReassertOpenKeepsDeadline reopens mid-delay: the timer is not restarted.
func TestService_ReassertOpenKeepsDeadline(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		f := newFixture(5)
		ctx := context.Background()

		first := f.service.ApplyTransition(ctx, true)

		time.Sleep(60 * time.Millisecond)
		f.service.ApplyTransition(ctx, true)

		// 110ms after the first open, 50ms after the second.
		time.Sleep(50 * time.Millisecond)
		synctest.Wait()

		sent := f.notifier.sent()
		require.Len(t, sent, 1)
		require.Equal(t, "Fridge-"+first.Timestamp.Format(time.RFC3339), sent[0].Tag)

		// A door that stays open never re-arms.
		f.service.ApplyTransition(ctx, true)
		time.Sleep(10 * testDelay)
		synctest.Wait()

		require.Len(t, f.notifier.sent(), 1)
	})
}

// TestService_CloseDisarms closes at 50ms of a 100ms delay: no dispatch.
func TestService_CloseDisarms(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		f := newFixture(5)
		ctx := context.Background()

		f.service.ApplyTransition(ctx, true)

		time.Sleep(testDelay / 2)
		f.service.ApplyTransition(ctx, false)
		require.False(t, f.service.Snapshot().AlarmPending)

		time.Sleep(10 * testDelay)
		synctest.Wait()

		require.Empty(t, f.notifier.sent())
		require.Nil(t, f.service.Snapshot().LastAlarmAt)
	})
}

func TestService_CloseOpenCycleRearms(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		f := newFixture(5)
		ctx := context.Background()

		for range 2 {
			f.service.ApplyTransition(ctx, true)
			time.Sleep(2 * testDelay)
			synctest.Wait()
			f.service.ApplyTransition(ctx, false)
		}

		require.Len(t, f.notifier.sent(), 2)
	})
}

func TestService_Subscribers(t *testing.T) {
	t.Parallel()

	f := newFixture(5)
	ctx := context.Background()

	id, err := f.service.RegisterSubscriber(ctx, []byte(`{"endpoint":"https://push.example/1"}`))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	found, err := f.service.SubscriberExists(ctx, id)
	require.NoError(t, err)
	require.True(t, found)

	found, err = f.service.SubscriberExists(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)

	_, err = f.service.RegisterSubscriber(ctx, nil)
	require.ErrorIs(t, err, subscription.ErrEmptyEndpoint)
}

// TestService_AlarmUsesArmedPeriod delivers an expiry after the door was
// closed and reopened: the notification describes the period that was armed.
func TestService_AlarmUsesArmedPeriod(t *testing.T) {
	t.Parallel()

	f := newFixture(5)
	ctx := context.Background()

	first := f.service.ApplyTransition(ctx, true)
	f.service.ApplyTransition(ctx, false)

	reopenedAt := first.Timestamp.Add(time.Hour)
	f.service.options.Now = func() time.Time { return reopenedAt }
	f.service.ApplyTransition(ctx, true)
	f.service.Close()

	// The first period's timer fires late, after the reopen.
	f.service.onAlarm(first.Timestamp.Add(testDelay), first.Timestamp)

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	require.Equal(t, "Fridge-"+first.Timestamp.Format(time.RFC3339), sent[0].Tag)
	require.True(t, reopenedAt.Equal(*f.service.Snapshot().LastOpenedAt))
}

// TestService_ConcurrentTransitions applies transitions from many goroutines
// and checks that none of them is lost or reordered.
func TestService_ConcurrentTransitions(t *testing.T) {
	t.Parallel()

	const workers = 64

	var ticks atomic.Int64

	base := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)

	service := New(context.Background(), Options{
		DeviceName:  "Fridge",
		AlarmDelay:  time.Hour,
		HistorySize: workers,
		Now: func() time.Time {
			return base.Add(time.Duration(ticks.Add(1)) * time.Millisecond)
		},
	}, subscription.NewMemoryRepository(), new(fakeNotifier), new(fakeBroadcaster))
	defer service.Close()

	var wg sync.WaitGroup

	for i := range workers {
		wg.Go(func() {
			service.ApplyTransition(context.Background(), i%2 == 0)
		})
	}

	wg.Wait()

	snapshot := service.Snapshot()
	require.Equal(t, uint64(workers), snapshot.UpdateCounter)

	entries := service.History()
	require.Len(t, entries, workers)

	for i := 1; i < len(entries); i++ {
		require.False(t, entries[i].Timestamp.Before(entries[i-1].Timestamp),
			"entry %d is older than entry %d", i, i-1)
	}
}

// TestService_SnapshotIsConsistent takes snapshots while the door flaps: a
// pending alarm is only ever reported for an open door.
func TestService_SnapshotIsConsistent(t *testing.T) {
	t.Parallel()

	service := New(context.Background(), Options{
		DeviceName:  "Fridge",
		AlarmDelay:  time.Hour,
		HistorySize: 5,
	}, subscription.NewMemoryRepository(), nil, nil)
	defer service.Close()

	var (
		wg   sync.WaitGroup
		done atomic.Bool
	)

	wg.Go(func() {
		defer done.Store(true)

		for i := range 2000 {
			service.ApplyTransition(context.Background(), i%2 == 0)
		}
	})

	for !done.Load() {
		snapshot := service.Snapshot()
		if snapshot.AlarmPending {
			require.True(t, snapshot.IsOpen)
		}
	}

	wg.Wait()
}
