package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sctg-development/photoacoustic-go/internal/conf"
	"github.com/sctg-development/photoacoustic-go/internal/events"
)

// Driver adapts a Client into an events.Driver, publishing every
// dispatched trigger as a JSON payload on the configured topic, suffixed
// with "/<action id>" when the trigger carries one (spec.md
// §4.4: action drivers include "MQTT publish"; §5: "action out-of-process
// calls default 30s timeout").
type Driver struct {
	client  Client
	topic   string
	timeout time.Duration
}

// NewDriver does not connect the client; Handle connects it on first use
// and again whenever IsConnected reports false.
func NewDriver(settings *conf.Settings) *Driver {
	return &Driver{
		client:  NewClient(settings),
		topic:   settings.MQTT.Topic,
		timeout: 30 * time.Second,
	}
}

func (d *Driver) Name() string { return "mqtt" }

func (d *Driver) Handle(t events.Trigger) error {
	if !d.client.IsConnected() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.client.Connect(ctx); err != nil {
			return fmt.Errorf("mqtt driver: connecting: %w", err)
		}
	}

	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("mqtt driver: marshaling trigger: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	topic := d.topic
	if t.ActionID != "" {
		topic = topic + "/" + t.ActionID
	}
	return d.client.Publish(ctx, topic, string(payload))
}
