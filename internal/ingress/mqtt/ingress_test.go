package mqtt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/doorwatch/internal/config"
	domain "github.com/oshokin/doorwatch/internal/domain/door"
)

// fakeMessage implements paho.Message.
type fakeMessage struct {
	payload []byte
}

func (*fakeMessage) Duplicate() bool   { return false }
func (*fakeMessage) Qos() byte         { return 0 }
func (*fakeMessage) Retained() bool    { return false }
func (*fakeMessage) Topic() string     { return config.DefaultMQTTTopic }
func (*fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte { return m.payload }
func (*fakeMessage) Ack()              {}

type recordingDoor struct {
	signals []bool
}

func (r *recordingDoor) ApplyTransition(_ context.Context, open bool) domain.TransitionResult {
	r.signals = append(r.signals, open)

	return domain.TransitionResult{IsOpen: open}
}

func TestParseSignal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		payload string
		open    bool
		wantErr bool
	}{
		{payload: "open", open: true},
		{payload: " OPEN\n", open: true},
		{payload: "1", open: true},
		{payload: "true", open: true},
		{payload: "closed"},
		{payload: "0"},
		{payload: "false"},
		{payload: `{"door":"open"}`, open: true},
		{payload: `{"door":"closed"}`},
		{payload: "", wantErr: true},
		{payload: "ajar", wantErr: true},
		{payload: `{"door":"ajar"}`, wantErr: true},
		{payload: `{"door":`, wantErr: true},
		{payload: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			t.Parallel()

			open, err := ParseSignal([]byte(tt.payload))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidSignal)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.open, open)
		})
	}
}

// TestIngress_HandleMessage forwards valid signals and drops the rest.
func TestIngress_HandleMessage(t *testing.T) {
	t.Parallel()

	door := new(recordingDoor)
	in := New(context.Background(), &config.MQTTConfig{
		Broker:   "tcp://127.0.0.1:1883",
		Topic:    config.DefaultMQTTTopic,
		ClientID: "test",
	}, 0, door)

	for _, payload := range []string{"open", "garbage", `{"door":"closed"}`, "1"} {
		in.handleMessage(nil, &fakeMessage{payload: []byte(payload)})
	}

	require.Equal(t, []bool{true, false, true}, door.signals)
}
