package natssink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-track/pkg/activity"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "tracking.activity"

// Publisher is the subset of *nats.Conn the hook needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Message is the JSON payload published for every event.
type Message struct {
	Verb       string         `json:"verb"`
	ActorID    string         `json:"actor_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	TenantID   string         `json:"tenant_id,omitempty"`
	ObjectType string         `json:"object_type"`
	ObjectID   string         `json:"object_id"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Hook publishes tracking activity to a NATS subject. Subjects are
// suffixed with the event verb when PerVerb is set, e.g.
// "tracking.activity.tracking.applied".
type Hook struct {
	Publisher Publisher
	Subject   string
	PerVerb   bool
}

// Connect dials url with reconnect defaults and returns a hook publishing
// to subject. The caller owns the returned connection.
func Connect(url, subject string, opts ...nats.Option) (*Hook, *nats.Conn, error) {
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &Hook{Publisher: nc, Subject: subject}, nc, nil
}

// Notify implements activity.ActivityHook.
func (h *Hook) Notify(_ context.Context, event activity.Event) error {
	if h == nil || h.Publisher == nil {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if normalized.Verb == "" || normalized.ObjectType == "" || normalized.ObjectID == "" {
		return nil
	}

	data, err := json.Marshal(Message{
		Verb:       normalized.Verb,
		ActorID:    normalized.ActorID,
		UserID:     normalized.UserID,
		TenantID:   normalized.TenantID,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Metadata:   normalized.Metadata,
		OccurredAt: normalized.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	subject := h.subject(normalized.Verb)
	if err := h.Publisher.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

func (h *Hook) subject(verb string) string {
	subject := strings.TrimSpace(h.Subject)
	if subject == "" {
		subject = DefaultSubject
	}
	if h.PerVerb {
		subject += "." + verb
	}
	return subject
}
