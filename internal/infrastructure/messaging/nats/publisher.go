package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
	"github.com/dreschagin/aip-monitor/pkg/logger"
)

// JetStream is the subset of nats.JetStreamContext used by the publisher.
type JetStream interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// RecordPublisher publishes every record to JetStream on
// <prefix>.<uuid>. Implements port.Exporter.
type RecordPublisher struct {
	nc     *nats.Conn
	js     JetStream
	stream string
	prefix string
	logger *logger.Logger
}

// Connect opens a NATS connection with reconnects and returns a publisher bound to it.
func Connect(natsURL, stream, subjectPrefix string, log *logger.Logger) (*RecordPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("aip-monitor"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	log.Info("Connected to NATS", "url", natsURL)

	p := NewRecordPublisher(js, stream, subjectPrefix, log)
	p.nc = nc
	return p, nil
}

func NewRecordPublisher(js JetStream, stream, subjectPrefix string, log *logger.Logger) *RecordPublisher {
	return &RecordPublisher{
		js:     js,
		stream: stream,
		prefix: strings.TrimSuffix(subjectPrefix, "."),
		logger: log,
	}
}

// Initialize creates the stream when it does not exist yet.
func (p *RecordPublisher) Initialize(ctx context.Context, schema []string) error {
	if p.stream == "" || p.prefix == "" {
		return fmt.Errorf("nats stream and subject prefix are required")
	}

	_, err := p.js.StreamInfo(p.stream, nats.Context(ctx))
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", p.stream, err)
	}

	_, err = p.js.AddStream(&nats.StreamConfig{
		Name:     p.stream,
		Subjects: []string{p.prefix + ".>"},
		Storage:  nats.FileStorage,
	}, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", p.stream, err)
	}

	p.logger.Info("Created JetStream stream", "stream", p.stream, "subjects", p.prefix+".>")
	return nil
}

// Write publishes synchronously so that a missing ack fails the cycle.
func (p *RecordPublisher) Write(ctx context.Context, records []entity.Record) error {
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}

		subject := p.Subject(r)
		if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", subject, err)
		}

		p.logger.Debug("Record published",
			"subject", subject,
			"size", len(data),
		)
	}
	return nil
}

func (p *RecordPublisher) Close(ctx context.Context) error {
	if p.nc != nil {
		p.logger.Info("Closing NATS connection")
		if err := p.nc.Drain(); err != nil {
			p.nc.Close()
		}
	}
	return nil
}

// Subject returns the subject of a record. Tokens cannot contain '.', '*',
// '>' or whitespace, so those are replaced with '_'.
func (p *RecordPublisher) Subject(r entity.Record) string {
	return p.prefix + "." + subjectToken(r.UUID)
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(c rune) rune {
		switch c {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return c
	}, s)
}
