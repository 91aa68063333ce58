package devicectl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"dispatch-server/services/dispatch-api/internal/domain/dispatch"
	"dispatch-server/services/dispatch-api/internal/infrastructure/metrics"
)

// Options configures the MQTT connection to the device-control broker.
type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Topic     string
	Timeout   time.Duration
}

// Publisher hands device commands to the control plane over MQTT. Publishes
// are QoS 1: a command is delivered at least once or the dispatch fails.
type Publisher struct {
	client  pahomqtt.Client
	topic   string
	timeout time.Duration
	log     zerolog.Logger
}

// Connect establishes the broker session. Auto-reconnect keeps the session
// alive across broker restarts; only the initial connect is fatal.
func Connect(opts Options, log zerolog.Logger) (*Publisher, error) {
	clientOpts := pahomqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(opts.Timeout)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	publisher := &Publisher{
		topic:   opts.Topic,
		timeout: opts.Timeout,
		log:     log.With().Str("component", "device-publisher").Logger(),
	}
	clientOpts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		publisher.log.Warn().Err(err).Msg("device broker connection lost, reconnecting")
	})

	publisher.client = pahomqtt.NewClient(clientOpts)
	token := publisher.client.Connect()
	if !token.WaitTimeout(opts.Timeout) {
		return nil, fmt.Errorf("connect device broker: timeout after %v", opts.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect device broker: %w", err)
	}

	publisher.log.Info().Str("broker", opts.BrokerURL).Str("topic", opts.Topic).Msg("connected to device broker")
	return publisher, nil
}

// PublishCommand serializes the command and publishes it under
// <topic>/<device_id>.
func (p *Publisher) PublishCommand(ctx context.Context, command dispatch.DeviceCommand) error {
	payload, err := json.Marshal(command)
	if err != nil {
		return fmt.Errorf("encode device command: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", p.topic, command.DeviceID)
	token := p.client.Publish(topic, 1, false, payload)

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if !token.WaitTimeout(timeout) {
		metrics.DeviceCommandsTotal.WithLabelValues("timeout").Inc()
		return fmt.Errorf("publish device command: timeout after %v", timeout)
	}
	if err := token.Error(); err != nil {
		metrics.DeviceCommandsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("publish device command: %w", err)
	}

	metrics.DeviceCommandsTotal.WithLabelValues("success").Inc()
	p.log.Debug().
		Str("topic", topic).
		Str("device_id", command.DeviceID).
		Str("action", command.Action).
		Msg("device command published")
	return nil
}

// Close disconnects from the broker, allowing in-flight publishes to finish.
func (p *Publisher) Close() {
	p.client.Disconnect(uint(p.timeout / time.Millisecond))
}
