package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domain "github.com/oshokin/doorwatch/internal/domain/door"
	"github.com/oshokin/doorwatch/internal/logger"
	"github.com/oshokin/doorwatch/internal/push"
)

// Lister returns every stored endpoint descriptor.
type Lister interface {
	ListAll(ctx context.Context) ([][]byte, error)
}

// Report summarizes one dispatch batch.
type Report struct {
	// Results holds one entry per subscriber, nil for a successful delivery.
	Results []error
	// Delivered counts successful sends.
	Delivered int
	// Failed counts failed sends.
	Failed int
}

// Err joins every delivery error, nil when all sends succeeded.
func (r *Report) Err() error {
	return errors.Join(r.Results...)
}

// Dispatcher delivers notifications to all subscribers.
type Dispatcher struct {
	// subscribers provides the endpoint descriptors.
	subscribers Lister
	// sender delivers a single message; nil disables push delivery.
	sender push.Sender
}

// New creates a dispatcher. A nil sender turns Dispatch into a logged no-op.
func New(subscribers Lister, sender push.Sender) *Dispatcher {
	return &Dispatcher{
		subscribers: subscribers,
		sender:      sender,
	}
}

// Dispatch sends notification to every subscriber and waits for all sends to
// finish. A store failure degrades to zero subscribers reached.
func (d *Dispatcher) Dispatch(ctx context.Context, notification *domain.Notification) *Report {
	ctx = logger.WithName(ctx, "dispatcher")
	report := new(Report)

	if d.sender == nil {
		logger.Warn(ctx, "Push delivery is not configured, alarm not sent")
		return report
	}

	payload, err := notification.Encode()
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode notification", "error", err)
		return report
	}

	endpoints, err := d.subscribers.ListAll(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to list subscribers, no alarm sent", "error", err)
		return report
	}

	report.Results = make([]error, len(endpoints))

	var wg sync.WaitGroup

	for i, endpoint := range endpoints {
		wg.Go(func() {
			report.Results[i] = d.send(ctx, endpoint, payload)
		})
	}

	wg.Wait()

	for i, result := range report.Results {
		if result == nil {
			report.Delivered++
			continue
		}

		report.Failed++

		logger.ErrorKV(ctx, "Push delivery failed", "subscriber", i, "error", result)
	}

	logger.InfoKV(ctx, "Alarm dispatched",
		"tag", notification.Tag,
		"subscribers", len(endpoints),
		"delivered", report.Delivered,
		"failed", report.Failed,
	)

	return report
}

// send delivers to one subscriber. A panicking sender counts as a failure
// instead of taking the batch down.
func (d *Dispatcher) send(ctx context.Context, endpoint, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("push sender panicked: %v", r)
		}
	}()

	return d.sender.Send(ctx, endpoint, payload)
}
