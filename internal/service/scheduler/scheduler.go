package scheduler

import (
	"errors"
	"sync"
	"time"
)

// ErrAlreadyArmed is returned by Arm while a timer is still live.
var ErrAlreadyArmed = errors.New("alarm timer is already armed")

// FireFunc is called once per armed period when the deadline passes.
// firedAt is the moment the scheduler recorded the expiry; since is the start
// of the period the expired timer was armed for.
type FireFunc func(firedAt, since time.Time)

// Scheduler owns the single "door open too long" timer.
//
// Every Arm starts a new generation. The expiry callback only fires if its
// generation is still the live one when it takes the lock, so a Disarm that
// wins the lock first always suppresses the alarm.
type Scheduler struct {
	// onFire is invoked outside the lock after an expiry.
	onFire FireFunc
	// now returns the current time; replaced in tests.
	now func() time.Time

	// timer is the live timer, nil when nothing is armed.
	timer *time.Timer
	// lastFired is the time of the last expiry, nil if the alarm never fired.
	lastFired *time.Time
	// generation identifies the live arm; bumped by every Arm and Disarm.
	generation uint64
	// mu protects timer, lastFired and generation.
	mu sync.Mutex
}

// New creates an idle scheduler that calls onFire on every expiry.
func New(onFire FireFunc) *Scheduler {
	return &Scheduler{
		onFire: onFire,
		now:    time.Now,
	}
}

// Arm starts a single-shot deadline delay from now.
// Arming while a timer is live is a caller bug: ErrAlreadyArmed is returned
// and the live timer keeps its original deadline.
func (s *Scheduler) Arm(delay time.Duration) error {
	return s.ArmSince(s.now(), delay)
}

// ArmSince is Arm for a period that started at since. The value is handed
// back to the fire callback of this arm only.
func (s *Scheduler) ArmSince(since time.Time, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		return ErrAlreadyArmed
	}

	s.generation++
	generation := s.generation

	s.timer = time.AfterFunc(delay, func() {
		s.expire(generation, since)
	})

	return nil
}

// Disarm cancels the live timer if there is one. It is safe to call at any time.
func (s *Scheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer == nil {
		return
	}

	// Stop may lose the race against an expiry that already started; bumping
	// the generation makes that expiry a no-op.
	s.timer.Stop()
	s.timer = nil
	s.generation++
}

// IsPending reports whether a timer is live.
func (s *Scheduler) IsPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.timer != nil
}

// LastFired returns when the alarm last fired, nil if it never did.
func (s *Scheduler) LastFired() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastFired == nil {
		return nil
	}

	firedAt := *s.lastFired

	return &firedAt
}

// expire runs on the timer goroutine.
func (s *Scheduler) expire(generation uint64, since time.Time) {
	s.mu.Lock()

	if s.timer == nil || s.generation != generation {
		s.mu.Unlock()
		return
	}

	firedAt := s.now()
	s.timer = nil
	s.lastFired = &firedAt

	s.mu.Unlock()

	if s.onFire != nil {
		s.onFire(firedAt, since)
	}
}
