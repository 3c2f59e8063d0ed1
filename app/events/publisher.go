package events

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// Publisher sends domain events to whoever listens (mailers, invoicing, analytics).
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) error
}

// Event is the envelope every message is wrapped in.
type Event struct {
	EventType  string      `json:"event_type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

func NewEvent(eventType string, data interface{}) Event {
	return Event{
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// LogPublisher only writes events to the log. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, topic string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	log.Printf("[events] %s %s", topic, data)
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	Events []Recorded
}

type Recorded struct {
	Topic string
	Event Event
}

func (r *Recorder) Publish(_ context.Context, topic string, event Event) error {
	r.Events = append(r.Events, Recorded{Topic: topic, Event: event})
	return nil
}

// Topics returns the topics published so far, in order.
func (r *Recorder) Topics() []string {
	topics := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		topics = append(topics, e.Topic)
	}
	return topics
}
