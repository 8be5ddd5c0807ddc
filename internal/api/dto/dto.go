package dto

import (
	"time"

	domain "github.com/oshokin/doorwatch/internal/domain/door"
)

// Status is the /status document.
type Status struct {
	Device        string  `json:"device"`
	CurrentStatus string  `json:"currentStatus"`
	Version       string  `json:"version"`
	UpdateCounter uint64  `json:"updateCounter"`
	DoorOpenNow   bool    `json:"doorOpenNow"`
	PendingAlarm  bool    `json:"pendingAlarm"`
	AlarmMinutes  float64 `json:"alarmMinutes"`
	TimeZone      string  `json:"timeZone"`
	Started       string  `json:"started"`
	// Optional timestamps are omitted until the event happens.
	DoorLastOpen   string `json:"doorLastOpen,omitempty"`
	DoorLastClosed string `json:"doorLastClosed,omitempty"`
	LastAlarm      string `json:"lastAlarm,omitempty"`
}

// Transition is the response to /open and /closed.
type Transition struct {
	WasOpen       bool   `json:"wasOpen"`
	IsOpen        bool   `json:"isOpen"`
	CurrentStatus string `json:"currentStatus"`
	Timestamp     string `json:"timestamp"`
}

// HistoryEntry is one element of the /history array.
type HistoryEntry struct {
	Time      string `json:"time"`
	IsOpen    bool   `json:"isOpen"`
	NewStatus string `json:"newStatus"`
}

// Error is returned with every 4xx and 5xx response.
type Error struct {
	Error string `json:"error"`
	Time  string `json:"time"`
}

// AppConfig is handed to the browser UI.
type AppConfig struct {
	PublicVAPIDKey     string `json:"publicVapidKey"`
	ServiceWorkerScope string `json:"serviceWorkerScope"`
}

// NewStatus renders a snapshot.
func NewStatus(s *domain.Snapshot) *Status {
	return &Status{
		Device:         s.DeviceName,
		CurrentStatus:  s.Status.String(),
		Version:        s.Version,
		UpdateCounter:  s.UpdateCounter,
		DoorOpenNow:    s.IsOpen,
		PendingAlarm:   s.AlarmPending,
		AlarmMinutes:   s.AlarmDelay.Minutes(),
		TimeZone:       s.TimeZone,
		Started:        FormatTime(s.StartedAt),
		DoorLastOpen:   formatOptional(s.LastOpenedAt),
		DoorLastClosed: formatOptional(s.LastClosedAt),
		LastAlarm:      formatOptional(s.LastAlarmAt),
	}
}

// NewTransition renders a transition result.
func NewTransition(r domain.TransitionResult) *Transition {
	return &Transition{
		WasOpen:       r.WasOpen,
		IsOpen:        r.IsOpen,
		CurrentStatus: r.Status.String(),
		Timestamp:     FormatTime(r.Timestamp),
	}
}

// NewHistory renders history entries, keeping their order.
func NewHistory(entries []domain.HistoryEntry) []HistoryEntry {
	result := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, HistoryEntry{
			Time:      FormatTime(e.Timestamp),
			IsOpen:    e.IsOpen,
			NewStatus: e.Status.String(),
		})
	}

	return result
}

// FormatTime renders t in its own location.
func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}

	return FormatTime(*t)
}
