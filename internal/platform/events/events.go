// Package events carries record change notifications from the domain services
// to their consumers: WebSocket clients, Kafka and the metrics registry.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Topics, one per record type.
const (
	TopicPatients      = "patients"
	TopicDoctors       = "doctors"
	TopicConsultations = "consultations"
	TopicExams         = "exams"
	TopicMedications   = "medications"
	TopicPrescriptions = "prescriptions"
)

// Topics lists every topic a client may subscribe to.
var Topics = []string{
	TopicPatients, TopicDoctors, TopicConsultations,
	TopicExams, TopicMedications, TopicPrescriptions,
}

// Actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event describes one change to a record. Type is "<topic>.<action>".
type Event struct {
	Type       string          `json:"type"`
	Topic      string          `json:"topic"`
	Action     string          `json:"action"`
	ResourceID string          `json:"resource_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// New builds an event, encoding payload as its data. A nil payload leaves
// Data empty.
func New(topic, action, resourceID string, payload interface{}, at time.Time) (Event, error) {
	ev := Event{
		Type:       topic + "." + action,
		Topic:      topic,
		Action:     action,
		ResourceID: resourceID,
		Timestamp:  at.UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("encode %s event: %w", ev.Type, err)
		}
		ev.Data = data
	}
	return ev, nil
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Fanout delivers each event to every publisher. All publishers are tried;
// their errors are joined.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Emitter is what domain services hold. Publishing is best effort: a failure
// is logged and never reaches the caller, so a broker outage cannot fail a
// write that already committed. A nil *Emitter is a no-op.
type Emitter struct {
	pub    Publisher
	logger zerolog.Logger
	now    func() time.Time
}

func NewEmitter(pub Publisher, logger zerolog.Logger) *Emitter {
	return &Emitter{pub: pub, logger: logger, now: time.Now}
}

func (e *Emitter) Emit(ctx context.Context, topic, action, resourceID string, payload interface{}) {
	if e == nil || e.pub == nil {
		return
	}

	ev, err := New(topic, action, resourceID, payload, e.now())
	if err != nil {
		e.logger.Error().Err(err).Str("topic", topic).Str("resource_id", resourceID).Msg("build event")
		return
	}

	// The request context may be cancelled right after the response is
	// written; delivery should not depend on it.
	if err := e.pub.Publish(context.WithoutCancel(ctx), ev); err != nil {
		e.logger.Warn().Err(err).
			Str("type", ev.Type).
			Str("resource_id", resourceID).
			Msg("publish event")
	}
}
