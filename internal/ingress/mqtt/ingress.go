package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/doorwatch/internal/config"
	domain "github.com/oshokin/doorwatch/internal/domain/door"
	"github.com/oshokin/doorwatch/internal/logger"
)

// disconnectQuiesce is how long Stop lets in-flight work finish, in milliseconds.
const disconnectQuiesce = 250

// errConnectTimeout is returned when the broker does not answer in time.
var errConnectTimeout = errors.New("mqtt connect timed out")

// Transitioner applies door signals.
type Transitioner interface {
	ApplyTransition(ctx context.Context, open bool) domain.TransitionResult
}

// Ingress subscribes to the door topic and forwards valid signals.
type Ingress struct {
	ctx     context.Context //nolint:containedctx // paho callbacks carry no context.
	client  paho.Client
	door    Transitioner
	topic   string
	qos     byte
	timeout time.Duration
}

// New builds an ingress for cfg. Nothing connects until Start.
func New(ctx context.Context, cfg *config.MQTTConfig, timeout time.Duration, door Transitioner) *Ingress {
	in := &Ingress{
		ctx:     logger.WithName(ctx, "mqtt"),
		door:    door,
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		timeout: timeout,
	}

	options := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetCleanSession(true).
		SetConnectTimeout(timeout).
		SetOnConnectHandler(in.onConnect).
		SetConnectionLostHandler(in.onConnectionLost)

	if cfg.Username != "" {
		options.SetUsername(cfg.Username)
	}

	if cfg.Password != "" {
		options.SetPassword(cfg.Password)
	}

	in.client = paho.NewClient(options)

	return in
}

// Start connects to the broker. The subscription is (re)made on every connect.
func (in *Ingress) Start() error {
	token := in.client.Connect()
	if !token.WaitTimeout(in.timeout) {
		return errConnectTimeout
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to mqtt broker: %w", err)
	}

	return nil
}

// Stop disconnects from the broker.
func (in *Ingress) Stop() {
	in.client.Disconnect(disconnectQuiesce)
}

func (in *Ingress) onConnect(client paho.Client) {
	token := client.Subscribe(in.topic, in.qos, in.handleMessage)
	if token.WaitTimeout(in.timeout) && token.Error() == nil {
		logger.InfoKV(in.ctx, "Subscribed to door topic", "topic", in.topic)
		return
	}

	logger.ErrorKV(in.ctx, "Failed to subscribe to door topic", "topic", in.topic, "error", token.Error())
}

func (in *Ingress) onConnectionLost(_ paho.Client, err error) {
	logger.WarnKV(in.ctx, "MQTT connection lost", "error", err)
}

func (in *Ingress) handleMessage(_ paho.Client, message paho.Message) {
	open, err := ParseSignal(message.Payload())
	if err != nil {
		logger.WarnKV(in.ctx, "Dropped door signal", "topic", message.Topic(), "error", err)
		return
	}

	in.door.ApplyTransition(in.ctx, open)
}
