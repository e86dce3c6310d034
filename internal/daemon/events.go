package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// BuildEvent is published to NATS after every scheduled build.
type BuildEvent struct {
	Project    string    `json:"project,omitempty"`
	Target     string    `json:"target"`
	Outcome    string    `json:"outcome"`
	Warnings   int       `json:"warnings"`
	DurationMS int64     `json:"duration_ms"`
	Channel    string    `json:"channel,omitempty"`
	Commit     string    `json:"commit,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventPublisher publishes build events to a JetStream stream.
type EventPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewEventPublisher connects to NATS and ensures the event stream exists.
func NewEventPublisher(cfg config.EventsConfig) (*EventPublisher, error) {
	if cfg.NATSURL == "" {
		return nil, fmt.Errorf("events enabled but nats_url is empty")
	}

	conn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "docpages build events",
		Subjects:    []string{cfg.Subject},
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure event stream: %w", err)
	}

	slog.Info("Event publisher initialized",
		logfields.URL(cfg.NATSURL),
		slog.String("subject", cfg.Subject),
		slog.String("stream", cfg.Stream))

	return &EventPublisher{conn: conn, js: js, subject: cfg.Subject}, nil
}

// Publish sends one build event. A nil publisher is a no-op so callers need
// no enabled-check at every site.
func (p *EventPublisher) Publish(ctx context.Context, ev *BuildEvent) error {
	if p == nil {
		return nil
	}
	ev.Timestamp = time.Now()

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal build event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := p.js.Publish(ctx, p.subject, data); err != nil {
		return fmt.Errorf("publish build event: %w", err)
	}

	slog.Debug("Published build event",
		logfields.Target(ev.Target),
		slog.String("outcome", ev.Outcome))
	return nil
}

// Close closes the NATS connection.
func (p *EventPublisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Close()
	}
}
