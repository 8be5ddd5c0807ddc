package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Sender delivers one payload to one endpoint.
type Sender interface {
	Send(ctx context.Context, endpoint []byte, payload []byte) error
}

var (
	// ErrInvalidEndpoint is returned for descriptors that are not push subscriptions.
	ErrInvalidEndpoint = errors.New("invalid push endpoint descriptor")
	// ErrSubscriptionGone is returned when the push service reports the
	// subscription expired or was revoked (HTTP 404 or 410).
	ErrSubscriptionGone = errors.New("push subscription is gone")
	// ErrRejected is returned for any other non-success response.
	ErrRejected = errors.New("push service rejected the notification")
)

// Options configures a WebPushSender.
type Options struct {
	// Subject is the VAPID contact (mailto: or https: URI).
	Subject         string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// TTL is how long the push service keeps an undelivered message, in seconds.
	TTL int
	// Timeout bounds each HTTP request to the push service.
	Timeout time.Duration
}

// WebPushSender sends encrypted Web Push messages signed with VAPID keys.
type WebPushSender struct {
	options *webpush.Options
}

// NewWebPushSender creates a sender with its own HTTP client.
func NewWebPushSender(opts Options) *WebPushSender {
	return &WebPushSender{
		options: &webpush.Options{
			HTTPClient:      &http.Client{Timeout: opts.Timeout},
			Subscriber:      opts.Subject,
			TTL:             opts.TTL,
			Urgency:         webpush.UrgencyHigh,
			VAPIDPublicKey:  opts.VAPIDPublicKey,
			VAPIDPrivateKey: opts.VAPIDPrivateKey,
		},
	}
}

// Send encrypts payload for endpoint and posts it to the push service.
func (s *WebPushSender) Send(ctx context.Context, endpoint []byte, payload []byte) error {
	subscription, err := DecodeSubscription(endpoint)
	if err != nil {
		return err
	}

	// webpush-go keeps a pointer to the options; give every call its own copy.
	options := *s.options

	resp, err := webpush.SendNotificationWithContext(ctx, payload, subscription, &options)
	if err != nil {
		return fmt.Errorf("send web push: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: status %d", ErrSubscriptionGone, resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
}

// DecodeSubscription parses a browser push subscription descriptor.
func DecodeSubscription(endpoint []byte) (*webpush.Subscription, error) {
	var subscription webpush.Subscription
	if err := json.Unmarshal(endpoint, &subscription); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}

	if subscription.Endpoint == "" || subscription.Keys.Auth == "" || subscription.Keys.P256dh == "" {
		return nil, fmt.Errorf("%w: endpoint and keys are required", ErrInvalidEndpoint)
	}

	return &subscription, nil
}

// GenerateVAPIDKeys returns a new base64url-encoded VAPID key pair.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate VAPID keys: %w", err)
	}

	return privateKey, publicKey, nil
}
