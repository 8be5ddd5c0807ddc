package door

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNeverOpened is returned when a notification is requested before the door
// was ever opened.
var ErrNeverOpened = errors.New("door has never been opened")

// openSinceLayout renders the open-since time the way a wall clock reads.
const openSinceLayout = "3:04 PM"

// Subscription is a registered push endpoint.
type Subscription struct {
	// CreatedAt is when the subscription was registered.
	CreatedAt time.Time
	// ID is the opaque token handed back to the subscriber.
	ID string
	// Endpoint is the push-service-specific descriptor (URL and keys) as
	// received from the browser.
	Endpoint []byte
}

// Notification is the payload pushed to subscribers when the alarm fires.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	// Tag lets the push service collapse duplicates of the same open period.
	Tag                string `json:"tag"`
	Icon               string `json:"icon"`
	RequireInteraction bool   `json:"requireInteraction"`
}

// NewNotification builds the "door is open" payload for the open period that
// started at openedAt. Times are rendered in loc.
func NewNotification(deviceName, icon string, openedAt *time.Time, loc *time.Location) (*Notification, error) {
	if openedAt == nil {
		return nil, ErrNeverOpened
	}

	if loc == nil {
		loc = time.UTC
	}

	local := openedAt.In(loc)

	return &Notification{
		Title:              deviceName + " is open!",
		Body:               "since " + local.Format(openSinceLayout),
		Tag:                deviceName + "-" + local.Format(time.RFC3339),
		Icon:               icon,
		RequireInteraction: true,
	}, nil
}

// Encode serializes the notification for the push transport.
func (n *Notification) Encode() ([]byte, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}

	return data, nil
}
