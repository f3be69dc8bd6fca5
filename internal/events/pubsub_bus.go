package events

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/neuroflux/engine/internal/ledger"
)

// PubSubBus wraps the in-memory Bus and also publishes every ledger
// event to a Google Cloud Pub/Sub topic for durable, cross-service
// delivery.
//
// Fan-out strategy:
//   - Pub/Sub: durable, at-least-once delivery to downstream consumers
//     (compliance dashboards, SIEM forwarders, long-term archival)
//   - In-memory: immediate push to in-process observers (the compliance
//     hook's own subscribers)
//
// Usage:
//
//	bus, err := events.NewPubSubBus("my-project", "ledger-events")
//	bus.Emit(appendedEvent)
//	defer bus.Close()
type PubSubBus struct {
	*Bus // embedded — in-process subscribers, Subscribe/Unsubscribe still work

	client *pubsub.Client
	topic  *pubsub.Topic
	logger *log.Logger
}

// NewPubSubBus creates a Pub/Sub-backed event bus. It creates the topic
// if it does not exist.
func NewPubSubBus(projectID, topicID string) (*PubSubBus, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub.NewClient: %w", err)
	}

	topic := client.Topic(topicID)

	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("topic.Exists: %w", err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("CreateTopic: %w", err)
		}
		slog.Info("created pub/sub topic", "topic_id", topicID)
	}

	// Ordering is keyed by patient ID so a single patient's audit trail
	// is never delivered out of order downstream.
	topic.EnableMessageOrdering = true

	bus := &PubSubBus{
		Bus:    NewBus(),
		client: client,
		topic:  topic,
		logger: log.New(log.Writer(), "[PUBSUB] ", log.LstdFlags),
	}

	bus.logger.Printf("connected to pub/sub topic: projects/%s/topics/%s", projectID, topicID)
	return bus, nil
}

// Emit publishes e to Pub/Sub and fans it out to in-process subscribers.
// This is the method a ledger compliance hook calls directly.
func (pb *PubSubBus) Emit(e *ledger.Event) {
	env := NewEnvelope(e)

	pb.publishToPubSub(env)
	pb.Bus.Publish(env)
}

// publishToPubSub serializes the envelope and publishes it as a Pub/Sub
// message. Message attributes mirror the CloudEvents metadata for
// server-side filtering by downstream subscriptions.
func (pb *PubSubBus) publishToPubSub(env *Envelope) {
	payload, err := env.JSON()
	if err != nil {
		pb.logger.Printf("failed to marshal event %s: %v", env.ID, err)
		return
	}

	msg := &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"ce-specversion": env.SpecVersion,
			"ce-type":        env.Type,
			"ce-source":      env.Source,
			"ce-id":          env.ID,
			"ce-time":        env.Time.Format(time.RFC3339Nano),
			"ce-patientid":   env.PatientID,
		},
		OrderingKey: env.PatientID,
	}

	result := pb.topic.Publish(context.Background(), msg)

	// Non-blocking: check the result in a goroutine so the compliance
	// hook's hot path never waits on Pub/Sub round-trip latency.
	go func() {
		serverID, err := result.Get(context.Background())
		if err != nil {
			pb.logger.Printf("pub/sub publish failed: %s -> %v", env.ID, err)
			return
		}
		pb.logger.Printf("published event %s -> msgID=%s (type=%s)", env.ID, serverID, env.Type)
	}()
}

// PublishRaw publishes a pre-built envelope to Pub/Sub and the in-memory
// bus. Used by the replay path when resending events from a storage tier.
func (pb *PubSubBus) PublishRaw(env *Envelope) {
	pb.publishToPubSub(env)
	pb.Bus.Publish(env)
}

// Close gracefully shuts down the Pub/Sub client. Call from main()'s
// shutdown sequence.
func (pb *PubSubBus) Close() error {
	pb.topic.Stop()
	if err := pb.client.Close(); err != nil {
		return fmt.Errorf("pubsub client close: %w", err)
	}
	pb.logger.Printf("pub/sub client closed")
	return nil
}

// TopicPath returns the fully-qualified Pub/Sub topic path.
func (pb *PubSubBus) TopicPath() string {
	return pb.topic.String()
}

// HealthCheck verifies the Pub/Sub topic is reachable.
func (pb *PubSubBus) HealthCheck(ctx context.Context) error {
	exists, err := pb.topic.Exists(ctx)
	if err != nil {
		return fmt.Errorf("topic health check: %w", err)
	}
	if !exists {
		return fmt.Errorf("topic does not exist")
	}
	return nil
}

// Stats returns basic telemetry about the bus.
func (pb *PubSubBus) Stats() map[string]interface{} {
	return map[string]interface{}{
		"backend":     "gcp-pubsub",
		"topic":       pb.topic.String(),
		"subscribers": pb.Bus.SubscriberCount(),
	}
}

var _ Emitter = (*PubSubBus)(nil)
