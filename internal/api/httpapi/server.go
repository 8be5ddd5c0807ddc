package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/oshokin/doorwatch/internal/api/dto"
	domain "github.com/oshokin/doorwatch/internal/domain/door"
)

const (
	// readHeaderTimeout bounds slow clients.
	readHeaderTimeout = 5 * time.Second

	// maxBodySize limits subscription payloads.
	maxBodySize = 64 << 10
)

// DoorService is the state machine as seen by the HTTP layer.
type DoorService interface {
	ApplyTransition(ctx context.Context, open bool) domain.TransitionResult
	Snapshot() *domain.Snapshot
	History() []domain.HistoryEntry
	RegisterSubscriber(ctx context.Context, endpoint []byte) (string, error)
	SubscriberExists(ctx context.Context, id string) (bool, error)
}

// Dependencies wires the server.
type Dependencies struct {
	// Addr is the listen address.
	Addr string
	// SecretKey guards /open and /closed.
	SecretKey string
	// Door is the state machine.
	Door DoorService
	// Refresher serves the /refresher websocket; the route is absent when nil.
	Refresher http.Handler
	// StaticDir is served for unmatched paths when set.
	StaticDir string
	// AppConfig is returned by /app-config.
	AppConfig dto.AppConfig
	// Location renders error timestamps; UTC when nil.
	Location *time.Location
}

// Server is the HTTP front end.
type Server struct {
	httpServer *http.Server
	door       DoorService
	secretKey  string
	appConfig  dto.AppConfig
	location   *time.Location
}

// NewServer builds the router.
func NewServer(d Dependencies) *Server {
	s := &Server{
		door:      d.Door,
		secretKey: d.SecretKey,
		appConfig: d.AppConfig,
		location:  d.Location,
	}

	if s.location == nil {
		s.location = time.UTC
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /open", s.handleTransition(true))
	mux.HandleFunc("GET /closed", s.handleTransition(false))
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("POST /checkSubscription", s.handleCheckSubscription)
	mux.HandleFunc("POST /subscribe", s.handleSubscribe)
	mux.HandleFunc("GET /app-config", s.handleAppConfig)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if d.Refresher != nil {
		mux.Handle("GET /refresher", d.Refresher)
	}

	if d.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(d.StaticDir)))
	}

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           loggingMiddleware(mux),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve accepts connections on listener until Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown stops accepting requests and waits for active ones.
// Hijacked websocket connections are not tracked and must be closed separately.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
