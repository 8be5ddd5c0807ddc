package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSignal is returned for payloads that name no door state.
var ErrInvalidSignal = errors.New("invalid door signal")

// ParseSignal reports whether payload means "open" (true) or "closed" (false).
// Accepted forms are open, closed, 1, 0, true, false and {"door":"open"|"closed"}.
func ParseSignal(payload []byte) (bool, error) {
	text := strings.TrimSpace(string(payload))

	if strings.HasPrefix(text, "{") {
		var message struct {
			Door string `json:"door"`
		}

		if err := json.Unmarshal([]byte(text), &message); err != nil {
			return false, fmt.Errorf("%w: %w", ErrInvalidSignal, err)
		}

		text = strings.TrimSpace(message.Door)
	}

	switch strings.ToLower(text) {
	case "open", "1", "true":
		return true, nil
	case "closed", "0", "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidSignal, text)
	}
}
