// Package mqtt publishes action triggers to an MQTT broker as an
// internal/events.Driver, adapting the teacher's MQTT client (originally
// built for bird-detection notifications) to the trigger payloads this
// spec defines (spec.md §4.4, §9).
package mqtt

import "context"

// Config configures one broker connection.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

// Client is the minimal MQTT surface the action-trigger driver needs.
type Client interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic string, payload string) error
	IsConnected() bool
	Disconnect()
}
