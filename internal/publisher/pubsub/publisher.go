// Package pubsub publishes task completion events to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// sender abstracts the Pub/Sub round trip so tests can capture messages.
type sender interface {
	send(ctx context.Context, msg *pubsub.Message) (string, error)
}

type topicSender struct {
	publisher *pubsub.Publisher
}

func (s topicSender) send(ctx context.Context, msg *pubsub.Message) (string, error) {
	id, err := s.publisher.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Publisher wraps a Pub/Sub client bound to one topic.
type Publisher struct {
	client     *pubsub.Client
	publisher  *pubsub.Publisher
	sender     sender
	propagator propagation.TextMapPropagator
}

// New dials Pub/Sub for projectID and binds the publisher to topic.
func New(ctx context.Context, projectID, topic string) (*Publisher, error) {
	if projectID == "" || topic == "" {
		return nil, errors.New("pubsub project id and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	publisher := client.Publisher(topic)
	return &Publisher{
		client:     client,
		publisher:  publisher,
		sender:     topicSender{publisher: publisher},
		propagator: otel.GetTextMapPropagator(),
	}, nil
}

func newWithSender(s sender, propagator propagation.TextMapPropagator) *Publisher {
	return &Publisher{sender: s, propagator: propagator}
}

// Publish marshals the payload to JSON and publishes it with the caller's
// trace context in the message attributes. The topic argument is ignored;
// the publisher is bound at construction.
func (p *Publisher) Publish(ctx context.Context, _ string, payload any) (string, error) {
	if p == nil || p.sender == nil {
		return "", errors.New("pubsub publisher is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{Data: data, Attributes: map[string]string{}}
	p.propagator.Inject(ctx, carrier(msg.Attributes))
	return p.sender.send(ctx, msg)
}

// Close flushes pending messages and releases the client.
func (p *Publisher) Close() error {
	if p.publisher != nil {
		p.publisher.Stop()
	}
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			return fmt.Errorf("close pubsub client: %w", err)
		}
	}
	return nil
}

// carrier adapts message attributes to propagation.TextMapCarrier.
type carrier map[string]string

func (c carrier) Get(key string) string { return c[key] }

func (c carrier) Set(key, value string) { c[key] = value }

func (c carrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
