// Package events publishes plan lifecycle events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TypePlanGenerated  = "plan.generated"
	TypeWorkoutToggled = "workout.toggled"
)

// Event is the envelope written to the topic, keyed by user id.
type Event struct {
	Type       string          `json:"type"`
	UserID     int64           `json:"user_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// PlanGenerated is the payload of TypePlanGenerated.
type PlanGenerated struct {
	Weeks    int `json:"weeks"`
	Workouts int `json:"workouts"`
}

// WorkoutToggled is the payload of TypeWorkoutToggled.
type WorkoutToggled struct {
	WorkoutID int64 `json:"workout_id"`
	Completed bool  `json:"completed"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, eventType string, userID int64, payload any) error
	Close() error
}

// NewEvent wraps payload in an envelope stamped with the current time.
func NewEvent(eventType string, userID int64, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, UserID: userID, OccurredAt: time.Now().UTC(), Payload: raw}, nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events synchronously to a single topic.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, userID int64, payload any) error {
	event, err := NewEvent(eventType, userID, payload)
	if err != nil {
		return err
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(userID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop discards events. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, int64, any) error { return nil }

func (Nop) Close() error { return nil }
