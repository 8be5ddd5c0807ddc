package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/doorwatch/internal/api/dto"
	grpcdoor "github.com/oshokin/doorwatch/internal/api/grpc/door"
	"github.com/oshokin/doorwatch/internal/api/httpapi"
	"github.com/oshokin/doorwatch/internal/config"
	"github.com/oshokin/doorwatch/internal/ingress/mqtt"
	"github.com/oshokin/doorwatch/internal/logger"
	"github.com/oshokin/doorwatch/internal/push"
	"github.com/oshokin/doorwatch/internal/repository/subscription"
	"github.com/oshokin/doorwatch/internal/service/broadcast"
	"github.com/oshokin/doorwatch/internal/service/dispatcher"
	"github.com/oshokin/doorwatch/internal/service/door"
	"github.com/oshokin/doorwatch/internal/version"
)

// Options controls the doorwatch-server process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// HTTPAddress overrides http_addr from the config when set.
	HTTPAddress string
	// GRPCAddress overrides grpc_addr from the config when set.
	GRPCAddress string
	// AllowMultiple skips the single-instance check.
	AllowMultiple bool
	// Ready, when set, receives the bound HTTP and gRPC addresses once both
	// listeners are open.
	Ready func(httpAddress, grpcAddress string)
}

// Run starts every server and blocks until ctx is canceled or one of them fails.
//
//nolint:funlen // Startup wiring reads best top to bottom.
func Run(ctx context.Context, opts *Options) error {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	applyOverrides(settings, opts)

	// The logger must be configured before it is captured in ctx.
	configureLogger(ctx, &settings.Log)

	ctx = logger.WithName(ctx, "doorwatch-server")

	if !opts.AllowMultiple {
		if err := ensureSingleInstance(ctx); err != nil {
			return err
		}
	}

	store, err := subscription.Open(ctx, &settings.Store)
	if err != nil {
		return fmt.Errorf("open subscription store: %w", err)
	}

	defer func() {
		if err := store.Close(); err != nil {
			logger.ErrorKV(ctx, "Failed to close subscription store", "error", err)
		}
	}()

	hub := broadcast.NewHub(broadcast.Options{
		PingInterval: settings.WebSocket.PingInterval,
		PongWait:     settings.WebSocket.PongWait,
	})
	defer hub.Close()

	doorService := door.New(ctx, door.Options{
		DeviceName:  settings.DeviceName,
		Icon:        settings.Push.Icon,
		Version:     version.Short(),
		AlarmDelay:  settings.AlarmDelay,
		HistorySize: settings.HistorySize,
		Location:    settings.Location(),
	}, store, dispatcher.New(store, newSender(ctx, &settings.Push)), hub)
	defer doorService.Close()

	httpServer := httpapi.NewServer(httpapi.Dependencies{
		Addr:      settings.HTTPAddress,
		SecretKey: settings.SecretKey,
		Door:      doorService,
		Refresher: hub,
		StaticDir: settings.StaticDir,
		AppConfig: dto.AppConfig{
			PublicVAPIDKey:     settings.Push.VAPIDPublicKey,
			ServiceWorkerScope: settings.ServiceWorkerScope,
		},
		Location: settings.Location(),
	})

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpcdoor.SecretKeyInterceptor(settings.SecretKey)))
	grpcdoor.RegisterDoorServiceServer(grpcServer, grpcdoor.NewServer(doorService))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(grpcdoor.ServiceName, healthpb.HealthCheckResponse_SERVING)

	lc := net.ListenConfig{}

	httpListener, err := lc.Listen(ctx, "tcp", settings.HTTPAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.HTTPAddress, err)
	}

	grpcListener, err := lc.Listen(ctx, "tcp", settings.GRPCAddress)
	if err != nil {
		_ = httpListener.Close()
		return fmt.Errorf("listen on %s: %w", settings.GRPCAddress, err)
	}

	if settings.MQTT.Enabled() {
		ingress := mqtt.New(ctx, &settings.MQTT, settings.Timeout, doorService)
		if err := ingress.Start(); err != nil {
			// The client keeps retrying in the background.
			logger.WarnKV(ctx, "MQTT broker is not reachable yet", "broker", settings.MQTT.Broker, "error", err)
		}

		defer ingress.Stop()
	}

	logger.InfoKV(ctx, "Doorwatch server listening",
		"device", settings.DeviceName,
		"http_address", httpListener.Addr().String(),
		"grpc_address", grpcListener.Addr().String(),
		"store", settings.Store.Driver,
		"version", version.Short(),
	)

	if opts.Ready != nil {
		opts.Ready(httpListener.Addr().String(), grpcListener.Addr().String())
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := httpServer.Serve(httpListener); err != nil {
			return fmt.Errorf("serve HTTP: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		logger.Info(ctx, "Shutting down servers")

		healthServer.Shutdown()
		hub.Close()
		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settings.Timeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown HTTP: %w", err)
		}

		return nil
	})

	err = group.Wait()

	logger.Info(ctx, "Doorwatch server stopped")

	return err
}

// applyOverrides lets command-line flags win over the config file.
func applyOverrides(settings *config.Config, opts *Options) {
	if opts.HTTPAddress != "" {
		settings.HTTPAddress = opts.HTTPAddress
	}

	if opts.GRPCAddress != "" {
		settings.GRPCAddress = opts.GRPCAddress
	}
}

// configureLogger applies the log section. Bad values are logged and ignored.
func configureLogger(ctx context.Context, settings *config.LogConfig) {
	if settings.Format != "" {
		format, ok := logger.ParseFormat(settings.Format)
		if ok {
			logger.SetLogger(logger.New(format, os.Stdout))
		} else {
			logger.WarnKV(ctx, "Unknown log format, keeping the default", "format", settings.Format)
		}
	}

	if settings.Level != "" {
		level, ok := logger.ParseLogLevel(settings.Level)
		if ok {
			logger.SetLevel(level)
		} else {
			logger.WarnKV(ctx, "Unknown log level, keeping the default", "level", settings.Level)
		}
	}
}

// newSender returns the Web Push sender, or nil when VAPID keys are missing.
func newSender(ctx context.Context, settings *config.PushConfig) push.Sender {
	if !settings.Enabled() {
		logger.Warn(ctx, "VAPID keys are not configured, push notifications are disabled")
		return nil
	}

	return push.NewWebPushSender(push.Options{
		Subject:         settings.Subject,
		VAPIDPublicKey:  settings.VAPIDPublicKey,
		VAPIDPrivateKey: settings.VAPIDPrivateKey,
		TTL:             settings.TTL,
		Timeout:         settings.Timeout,
	})
}
