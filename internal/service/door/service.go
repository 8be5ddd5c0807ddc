package door

import (
	"context"
	"sync"
	"time"

	domain "github.com/oshokin/doorwatch/internal/domain/door"
	"github.com/oshokin/doorwatch/internal/logger"
	"github.com/oshokin/doorwatch/internal/service/dispatcher"
	"github.com/oshokin/doorwatch/internal/service/history"
	"github.com/oshokin/doorwatch/internal/service/scheduler"
)

// Broadcaster tells live observers that the state changed.
type Broadcaster interface {
	BroadcastRefresh()
}

// Notifier delivers the alarm notification to subscribers.
type Notifier interface {
	Dispatch(ctx context.Context, notification *domain.Notification) *dispatcher.Report
}

// Subscribers registers and looks up push subscriptions.
type Subscribers interface {
	Register(ctx context.Context, endpoint []byte) (string, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// Options configures the state machine.
type Options struct {
	// DeviceName names the door in notifications.
	DeviceName string
	// Icon is the notification icon.
	Icon string
	// Version is reported in snapshots.
	Version string
	// AlarmDelay is how long the door may stay open before the alarm fires.
	AlarmDelay time.Duration
	// HistorySize is the event history capacity.
	HistorySize int
	// Location is the zone used to render timestamps; UTC when nil.
	Location *time.Location
	// Now returns the current time; time.Now when nil.
	Now func() time.Time
}

// Service owns the door state. All mutations happen under mu; observers and
// the dispatcher are always called with mu released.
type Service struct {
	// ctx carries the logger for alarm dispatches started by the timer.
	ctx     context.Context //nolint:containedctx // The timer goroutine has no request context.
	options Options

	state     *domain.State
	ledger    *history.Ledger
	scheduler *scheduler.Scheduler

	broadcaster Broadcaster
	notifier    Notifier
	subscribers Subscribers

	mu sync.Mutex
}

// New creates a state machine in the unknown state.
// A nil broadcaster or notifier disables that side effect.
func New(
	ctx context.Context,
	options Options,
	subscribers Subscribers,
	notifier Notifier,
	broadcaster Broadcaster,
) *Service {
	if options.Now == nil {
		options.Now = time.Now
	}

	if options.Location == nil {
		options.Location = time.UTC
	}

	s := &Service{
		ctx:         context.WithoutCancel(logger.WithName(ctx, "door")),
		options:     options,
		state:       &domain.State{StartedAt: options.Now()},
		ledger:      history.New(options.HistorySize),
		broadcaster: broadcaster,
		notifier:    notifier,
		subscribers: subscribers,
	}

	s.scheduler = scheduler.New(s.onAlarm)

	return s
}

// ApplyTransition records an "open" or "closed" signal. Repeating the current
// state is accepted and counted like any other transition.
func (s *Service) ApplyTransition(ctx context.Context, open bool) domain.TransitionResult {
	ctx = logger.WithName(ctx, "door")

	s.mu.Lock()

	now := s.options.Now()
	wasOpen := s.state.IsOpen

	s.state.UpdateCounter++
	s.state.IsOpen = open

	if open {
		s.state.LastOpenedAt = &now
	} else {
		s.state.LastClosedAt = &now
	}

	status := s.state.Status()
	counter := s.state.UpdateCounter

	s.ledger.Append(domain.HistoryEntry{
		Timestamp: now,
		Status:    status,
		IsOpen:    open,
	})

	switch {
	case open && !wasOpen:
		if err := s.scheduler.ArmSince(now, s.options.AlarmDelay); err != nil {
			// The live timer keeps its original deadline.
			logger.WarnKV(ctx, "Alarm timer was not armed", "error", err)
		}
	case !open:
		s.scheduler.Disarm()
	}

	s.mu.Unlock()

	logger.InfoKV(ctx, "Door state changed",
		"status", status,
		"was_open", wasOpen,
		"update_counter", counter,
	)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastRefresh()
	}

	return domain.TransitionResult{
		Timestamp: now.In(s.options.Location),
		Status:    status,
		WasOpen:   wasOpen,
		IsOpen:    open,
	}
}

// Snapshot returns the current status.
func (s *Service) Snapshot() *domain.Snapshot {
	s.mu.Lock()
	state := s.state.Clone()
	lastFired := s.scheduler.LastFired()
	pending := s.scheduler.IsPending()
	s.mu.Unlock()

	loc := s.options.Location

	return &domain.Snapshot{
		StartedAt:     state.StartedAt.In(loc),
		LastOpenedAt:  inLocation(state.LastOpenedAt, loc),
		LastClosedAt:  inLocation(state.LastClosedAt, loc),
		LastAlarmAt:   inLocation(lastFired, loc),
		DeviceName:    s.options.DeviceName,
		Version:       s.options.Version,
		TimeZone:      loc.String(),
		Status:        state.Status(),
		AlarmDelay:    s.options.AlarmDelay,
		UpdateCounter: state.UpdateCounter,
		IsOpen:        state.IsOpen,
		AlarmPending:  pending,
	}
}

// History returns the recorded transitions, oldest first.
func (s *Service) History() []domain.HistoryEntry {
	entries := s.ledger.Snapshot()
	for i := range entries {
		entries[i].Timestamp = entries[i].Timestamp.In(s.options.Location)
	}

	return entries
}

// RegisterSubscriber stores a push endpoint descriptor and returns its id.
func (s *Service) RegisterSubscriber(ctx context.Context, endpoint []byte) (string, error) {
	id, err := s.subscribers.Register(ctx, endpoint)
	if err != nil {
		return "", err
	}

	logger.InfoKV(logger.WithName(ctx, "door"), "Subscriber registered", "subscription_id", id)

	return id, nil
}

// SubscriberExists reports whether id was registered.
func (s *Service) SubscriberExists(ctx context.Context, id string) (bool, error) {
	return s.subscribers.Exists(ctx, id)
}

// Close stops the alarm timer. Transitions after Close still work but never
// arm a timer that outlives the process.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scheduler.Disarm()
}

// onAlarm runs on the timer goroutine once the door stayed open too long.
// openedAt is the start of the open period the timer was armed for.
func (s *Service) onAlarm(firedAt, openedAt time.Time) {
	ctx := s.ctx

	logger.InfoKV(ctx, "Door is open for too long", "fired_at", firedAt.In(s.options.Location))

	if s.broadcaster != nil {
		s.broadcaster.BroadcastRefresh()
	}

	notification, err := domain.NewNotification(s.options.DeviceName, s.options.Icon, &openedAt, s.options.Location)
	if err != nil {
		logger.WarnKV(ctx, "Alarm notification was not built", "error", err)
		return
	}

	if s.notifier == nil {
		return
	}

	s.notifier.Dispatch(ctx, notification)
}

func inLocation(t *time.Time, loc *time.Location) *time.Time {
	if t == nil {
		return nil
	}

	local := t.In(loc)

	return &local
}
