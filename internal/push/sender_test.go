package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newDescriptor builds a browser-like subscription pointing at url with valid client keys.
func newDescriptor(t *testing.T, url string) []byte {
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

	return descriptor
}

func newSender(t *testing.T) *WebPushSender {
	t.Helper()

	privateKey, publicKey, err := GenerateVAPIDKeys()
	require.NoError(t, err)

	return NewWebPushSender(Options{
		Subject:         "mailto:ops@example.com",
		VAPIDPublicKey:  publicKey,
		VAPIDPrivateKey: privateKey,
		TTL:             60,
		Timeout:         5 * time.Second,
	})
}

// TestWebPushSender_Send posts an encrypted message with VAPID authorization.
func TestWebPushSender_Send(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		if r.Method != http.MethodPost ||
			r.Header.Get("Authorization") == "" ||
			r.Header.Get("Content-Encoding") != "aes128gcm" ||
			r.Header.Get("TTL") != "60" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := newSender(t).Send(context.Background(), newDescriptor(t, srv.URL), []byte(`{"title":"x"}`))
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())
}

// TestWebPushSender_StatusMapping maps push service responses to sentinel errors.
func TestWebPushSender_StatusMapping(t *testing.T) {
	t.Parallel()

	cases := map[int]error{
		http.StatusGone:                ErrSubscriptionGone,
		http.StatusNotFound:            ErrSubscriptionGone,
		http.StatusTooManyRequests:     ErrRejected,
		http.StatusInternalServerError: ErrRejected,
	}

	sender := newSender(t)

	for status, want := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		err := sender.Send(context.Background(), newDescriptor(t, srv.URL), []byte(`{}`))
		require.ErrorIs(t, err, want, "status %d", status)

		srv.Close()
	}
}

func TestDecodeSubscription(t *testing.T) {
	t.Parallel()

	_, err := DecodeSubscription([]byte(`not json`))
	require.ErrorIs(t, err, ErrInvalidEndpoint)

	_, err = DecodeSubscription([]byte(`{"endpoint":"https://push.example/a"}`))
	require.ErrorIs(t, err, ErrInvalidEndpoint)

	s, err := DecodeSubscription([]byte(`{"endpoint":"https://push.example/a","keys":{"p256dh":"p","auth":"a"}}`))
	require.NoError(t, err)
	require.Equal(t, "https://push.example/a", s.Endpoint)
	require.Equal(t, "p", s.Keys.P256dh)
	require.Equal(t, "a", s.Keys.Auth)
}
