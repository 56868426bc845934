package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"support-chatbot-be/internal/pkg/logger"
	"support-chatbot-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	HeaderEventType = "Event-Type"
	duplicateWindow = 10 * time.Minute
)

// Publisher handles sending events to a JetStream stream.
type Publisher struct {
	nc            *nats.Conn
	js            jetstream.JetStream
	subjectPrefix string
}

func connect(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return nc, js, nil
}

// NewPublisher connects and ensures the stream exists for subjects under subjectPrefix.
func NewPublisher(url, stream, subjectPrefix string, log logger.ILogger) (*Publisher, error) {
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       stream,
		Subjects:   []string{subjectPrefix + ".>"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		Duplicates: duplicateWindow,
	})
	if err != nil {
		// Don't fail hard here, maybe it already exists or NATS isn't ready
		log.Warn("PUBLISHER", "Failed to ensure stream", map[string]interface{}{
			"stream": stream,
			"error":  err.Error(),
		})
	}

	return &Publisher{nc: nc, js: js, subjectPrefix: subjectPrefix}, nil
}

// Publish sends an event on <prefix>.<key>. The message id lets JetStream drop
// retries of the same event inside the duplicate window.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	msg := nats.NewMsg(SubjectFor(p.subjectPrefix, event.Key()))
	msg.Data = data
	msg.Header.Set(HeaderEventType, event.EventType())

	if _, err := p.js.PublishMsg(ctx, msg, jetstream.WithMsgID(event.MessageID())); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", msg.Subject, err)
	}
	return nil
}

// Close drains pending publishes and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}

// SubjectFor builds the subject for a partition key. Characters NATS treats
// as token separators or wildcards are replaced.
func SubjectFor(prefix, key string) string {
	if key == "" {
		key = "_"
	}
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, key)
	return prefix + "." + safe
}
