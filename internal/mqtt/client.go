package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sctg-development/photoacoustic-go/internal/conf"
	"github.com/sctg-development/photoacoustic-go/internal/logging"
)

var clientLogger = logging.ForComponent("mqtt")

// client implements the Client interface. Driver already reconnects
// lazily before every publish (it calls Connect whenever IsConnected is
// false), so this type stays a thin wrapper around paho rather than
// running its own reconnect loop.
type client struct {
	config         Config
	internalClient mqtt.Client
	mu             sync.Mutex
}

// NewClient creates a new MQTT client from the instrument's MQTT config
// (spec.md §4.4).
func NewClient(settings *conf.Settings) Client {
	clientID := settings.MQTT.ClientID
	if clientID == "" {
		clientID = "photoacoustic-core"
	}
	return &client{
		config: Config{
			Broker:   settings.MQTT.Broker,
			ClientID: clientID,
			Username: settings.MQTT.Username,
			Password: settings.MQTT.Password,
			Topic:    settings.MQTT.Topic,
		},
	}
}

// Connect establishes a connection to the MQTT broker, blocking until
// paho confirms it or ctx expires.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(c.onConnect)

	c.internalClient = mqtt.NewClient(opts)

	token := c.internalClient.Connect()
	deadline, ok := ctx.Deadline()
	timeout := 30 * time.Second
	if ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connection error: %w", err)
	}
	return nil
}

// Publish sends a message to the specified topic on the MQTT broker.
func (c *client) Publish(ctx context.Context, topic string, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnectedLocked() {
		return fmt.Errorf("not connected to MQTT broker")
	}

	deadline, ok := ctx.Deadline()
	timeout := 10 * time.Second
	if ok {
		timeout = time.Until(deadline)
	}
	token := c.internalClient.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnectedLocked()
}

func (c *client) isConnectedLocked() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(250)
	}
}

func (c *client) onConnect(mqtt.Client) {
	clientLogger.Info("connected to mqtt broker", "broker", c.config.Broker)
}
