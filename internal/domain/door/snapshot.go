package door

import "time"

// Snapshot is a read-only view of the door status for dashboards and APIs.
// Timestamps are already converted to the configured time zone.
type Snapshot struct {
	StartedAt    time.Time
	LastOpenedAt *time.Time
	LastClosedAt *time.Time
	// LastAlarmAt is when the alarm last fired, nil if it never did.
	LastAlarmAt *time.Time

	DeviceName string
	Version    string
	// TimeZone is the name of the zone timestamps are rendered in.
	TimeZone string
	Status   Status

	AlarmDelay    time.Duration
	UpdateCounter uint64

	IsOpen bool
	// AlarmPending reports whether the open-too-long timer is running.
	AlarmPending bool
}
