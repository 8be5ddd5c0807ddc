//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/doorwatch/internal/api/dto"
	grpcdoor "github.com/oshokin/doorwatch/internal/api/grpc/door"
	"github.com/oshokin/doorwatch/internal/config"
)

// Client wraps the gRPC DoorService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the server.
	conn *grpc.ClientConn
	// api is the DoorService client.
	api *grpcdoor.DoorServiceClient

	// secretKey is sent with state changes.
	secretKey string
	// actor identifies this caller in the server log.
	actor string
	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithSecretKey sets the shared secret required by SetDoorState.
func WithSecretKey(secretKey string) Option {
	return func(c *Client) {
		c.secretKey = secretKey
	}
}

// WithActor sets the user@host label attached to every call.
func WithActor(actor string) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errSecretKeyRequired is returned when a state change has no secret to send.
	errSecretKeyRequired = errors.New("secret key must be provided")
)

// Dial establishes a gRPC connection to doorwatch-server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial doorwatch server: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         grpcdoor.NewDoorServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// SetDoorState reports the door as open or closed.
func (c *Client) SetDoorState(ctx context.Context, open bool) (*dto.Transition, error) {
	if c.secretKey == "" {
		return nil, errSecretKeyRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	callCtx = metadata.AppendToOutgoingContext(callCtx, grpcdoor.SecretKeyMetadata, c.secretKey)

	response, err := c.api.SetDoorState(callCtx, wrapperspb.Bool(open))
	if err != nil {
		return nil, fmt.Errorf("set door state: %w", err)
	}

	result := new(dto.Transition)
	if err := grpcdoor.FromProto(response, result); err != nil {
		return nil, fmt.Errorf("decode door state: %w", err)
	}

	return result, nil
}

// GetStatus retrieves the current door status.
func (c *Client) GetStatus(ctx context.Context) (*dto.Status, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.GetStatus(callCtx, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	result := new(dto.Status)
	if err := grpcdoor.FromProto(response, result); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}

	return result, nil
}

// GetHistory retrieves the event history, oldest first.
func (c *Client) GetHistory(ctx context.Context) ([]dto.HistoryEntry, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.GetHistory(callCtx, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	var result []dto.HistoryEntry
	if err := grpcdoor.FromProto(response, &result); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	return result, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline. The actor label
// rides along as metadata.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.actor != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, grpcdoor.ActorMetadata, c.actor)
	}

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
