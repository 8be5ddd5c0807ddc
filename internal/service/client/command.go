package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oshokin/doorwatch/internal/config"
	"github.com/oshokin/doorwatch/internal/logger"
	"github.com/oshokin/doorwatch/internal/service/common"
)

// Action selects what doorctl does.
type Action string

// Supported actions.
const (
	ActionOpen    Action = "open"
	ActionClosed  Action = "closed"
	ActionStatus  Action = "status"
	ActionHistory Action = "history"
)

// defaultRetryInterval is the delay between attempts when Retry is set.
const defaultRetryInterval = 1 * time.Second

// ErrUnknownAction is returned for an unsupported Action.
var ErrUnknownAction = errors.New("unknown action")

// Options configures a doorctl invocation.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides grpc_addr from config when specified.
	ServerAddress string
	// Action is the operation to perform.
	Action Action
	// Retry keeps sending a state change until the server accepts it or ctx ends.
	Retry bool
	// RetryInterval is the delay between attempts; defaults to one second.
	RetryInterval time.Duration
	// Output receives the JSON result; defaults to stdout.
	Output io.Writer
}

// Run performs the requested action against doorwatch-server.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "doorctl")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	serverAddress := cfg.GRPCAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	clientOptions := []common.Option{
		common.WithCallTimeout(cfg.Timeout),
		common.WithSecretKey(cfg.SecretKey),
	}

	if actor, err := common.DetectActor(); err == nil {
		clientOptions = append(clientOptions, common.WithActor(actor))
	} else {
		logger.WarnKV(ctx, "Unable to detect actor", "error", err)
	}

	client, err := common.Dial(ctx, serverAddress, clientOptions...)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	result, err := perform(ctx, client, opts)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	return nil
}

func perform(ctx context.Context, client *common.Client, opts *Options) (any, error) {
	switch opts.Action {
	case ActionOpen, ActionClosed:
		return setDoorState(ctx, client, opts)
	case ActionStatus:
		return client.GetStatus(ctx)
	case ActionHistory:
		return client.GetHistory(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, opts.Action)
	}
}

// setDoorState sends the state change once, or until it succeeds when Retry is set.
func setDoorState(ctx context.Context, client *common.Client, opts *Options) (any, error) {
	open := opts.Action == ActionOpen

	logger.InfoKV(ctx, "Pushing door state", "action", opts.Action, "retry", opts.Retry)

	result, err := client.SetDoorState(ctx, open)
	if err == nil || !opts.Retry {
		return result, err
	}

	interval := opts.RetryInterval
	if interval <= 0 {
		interval = defaultRetryInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// Log and keep retrying transient failures.
		logger.ErrorKV(ctx, "SetDoorState failed", "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		result, err = client.SetDoorState(ctx, open)
		if err == nil {
			return result, nil
		}
	}
}
