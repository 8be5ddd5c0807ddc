package integration

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/doorwatch/internal/config"
	"github.com/oshokin/doorwatch/internal/service/server"
)

const testSecret = "integration-secret"

// runningServer describes a doorwatch-server started for a test.
type runningServer struct {
	configPath  string
	httpURL     string
	grpcAddress string
}

// startServer runs a real doorwatch-server with an in-memory store on free ports.
// The server is stopped when the test ends.
func startServer(t *testing.T, customize func(cfg *config.Config)) *runningServer {
	t.Helper()

	cfg := &config.Config{
		DeviceName:  "Fridge",
		HTTPAddress: "127.0.0.1:0",
		GRPCAddress: "127.0.0.1:0",
		SecretKey:   testSecret,
		AlarmDelay:  time.Hour,
		HistorySize: 5,
		Timeout:     3 * time.Second,
		Store:       config.StoreConfig{Driver: config.DriverMemory},
	}

	if customize != nil {
		customize(cfg)
	}

	configPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	require.NoError(t, config.Save(configPath, cfg))

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan [2]string, 1)
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{
			ConfigPath:    configPath,
			AllowMultiple: true,
			Ready: func(httpAddress, grpcAddress string) {
				ready <- [2]string{httpAddress, grpcAddress}
			},
		})
	}()

	var addresses [2]string

	select {
	case addresses = <-ready:
	case err := <-done:
		cancel()
		t.Fatalf("server exited during startup: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("server did not start in time")
	}

	t.Cleanup(func() {
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop in time")
		}
	})

	return &runningServer{
		configPath:  configPath,
		httpURL:     "http://" + addresses[0],
		grpcAddress: addresses[1],
	}
}

// newSubscriptionJSON builds a browser-like push subscription pointing at url.
func newSubscriptionJSON(t *testing.T, url string) string {
	t.Helper()

	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)

	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	descriptor, err := json.Marshal(map[string]any{
		"endpoint": url,
		"keys": map[string]string{
			"p256dh": base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			"auth":   base64.RawURLEncoding.EncodeToString(auth),
		},
	})
	require.NoError(t, err)

	return string(descriptor)
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()

	resp, err := http.Get(url) //nolint:noctx // Test helper.
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))

	return resp.StatusCode
}
