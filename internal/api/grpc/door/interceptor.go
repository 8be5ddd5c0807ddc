package door

import (
	"context"
	"crypto/subtle"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/oshokin/doorwatch/internal/logger"
)

// Metadata keys sent by doorctl.
const (
	// SecretKeyMetadata carries the shared secret for state changes.
	SecretKeyMetadata = "x-secret-key"
	// ActorMetadata identifies the caller as user@host for the audit log.
	ActorMetadata = "x-actor"
)

// SecretKeyInterceptor rejects SetDoorState calls that do not carry secretKey.
// Read-only methods pass through.
func SecretKeyInterceptor(secretKey string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = logger.WithName(ctx, "grpc")

		md, _ := metadata.FromIncomingContext(ctx)
		if actor := firstValue(md, ActorMetadata); actor != "" {
			ctx = logger.WithKV(ctx, "actor", actor)
		}

		if info.FullMethod != SetDoorStateMethod {
			return handler(ctx, req)
		}

		received := md.Get(SecretKeyMetadata)
		if len(received) == 0 {
			logger.Warn(ctx, "Secret key missing from gRPC call")
			return nil, status.Error(codes.Unauthenticated, "secret key missing")
		}

		if subtle.ConstantTimeCompare([]byte(received[0]), []byte(secretKey)) != 1 {
			logger.Warn(ctx, "Invalid secret key received over gRPC")
			return nil, status.Error(codes.PermissionDenied, "invalid secret key")
		}

		return handler(ctx, req)
	}
}

func firstValue(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}

	return values[0]
}
