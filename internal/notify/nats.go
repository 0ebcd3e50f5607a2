package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/logfields"
)

const (
	defaultNATSURL       = "nats://127.0.0.1:4222"
	defaultSubjectPrefix = "docdrift.pipeline"
	defaultStream        = "DOCDRIFT"
)

// NATSPublisher publishes run outcomes to a JetStream stream.
type NATSPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	prefix  string
	timeout time.Duration
}

// NewNATSPublisher connects and ensures the outcome stream exists.
func NewNATSPublisher(cfg *config.NATSConfig) (*NATSPublisher, error) {
	url := cfg.URL
	if url == "" {
		url = defaultNATSURL
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	stream := cfg.Stream
	if stream == "" {
		stream = defaultStream
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, errors.NetworkError("failed to connect to NATS").
			Retryable().
			WithContext("url", url).
			Build()
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errors.DaemonError("failed to create JetStream context").Build()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{prefix + ".>"},
	})
	if err != nil {
		conn.Close()
		return nil, errors.DaemonError("failed to ensure outcome stream").
			WithContext("stream", stream).
			Build()
	}

	slog.Info("NATS outcome publisher initialized",
		slog.String("url", url), slog.String("stream", stream))
	return &NATSPublisher{conn: conn, js: js, prefix: prefix, timeout: 5 * time.Second}, nil
}

// PublishCompleted emits the <prefix>.completed event.
func (p *NATSPublisher) PublishCompleted(ctx context.Context, ev Event) error {
	return p.publish(ctx, p.prefix+".completed", ev)
}

// PublishFailed emits the <prefix>.failed event.
func (p *NATSPublisher) PublishFailed(ctx context.Context, ev Event) error {
	return p.publish(ctx, p.prefix+".failed", ev)
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.StoreError("failed to marshal outcome event").
			WithContext("run_id", ev.RunID).
			Build()
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return errors.NetworkError("failed to publish outcome event").
			Retryable().
			WithContext("subject", subject).
			WithContext("run_id", ev.RunID).
			Build()
	}

	slog.Debug("published outcome event",
		slog.String("subject", subject),
		logfields.RunID(ev.RunID), logfields.Project(ev.Project))
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
