// Package nats publishes gameplay events to a NATS server so other
// processes can follow games without polling the REST API.
//
// Events are JSON encoded service.GameEvent values published on
// <prefix>.<session id>.<event type>, for example
// mergegame.sessions.ab12.merge. Subscribers can follow one session with
// mergegame.sessions.ab12.> or one event type across all sessions with
// mergegame.sessions.*.game_over.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/mergegame/game/service"
)

// DefaultSubjectPrefix is the subject root for session events
const DefaultSubjectPrefix = "mergegame.sessions"

var ErrClosed = errors.New("publisher closed")

// Conn is the subset of *nats.Conn the publisher needs
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher implements service.EventPublisher on top of a NATS connection
type Publisher struct {
	mu     sync.RWMutex // guards conn; held for reading across conn.Publish
	conn   Conn
	prefix string
}

var _ service.EventPublisher = (*Publisher)(nil)

// Options configure Connect
type Options struct {
	Prefix     string
	Attempts   uint
	RetryDelay time.Duration
	Name       string
}

func (o *Options) applyDefaults() {
	if o.Prefix == "" {
		o.Prefix = DefaultSubjectPrefix
	}
	if o.Attempts == 0 {
		o.Attempts = 5
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = 200 * time.Millisecond
	}
	if o.Name == "" {
		o.Name = "mergegame"
	}
}

// Connect dials url, retrying with exponential backoff until the server
// answers, the attempts run out or ctx is cancelled.
func Connect(ctx context.Context, url string, opts Options) (*Publisher, error) {
	opts.applyDefaults()

	nc, err := retry.DoWithData(
		func() (*natsgo.Conn, error) {
			return natsgo.Connect(url,
				natsgo.Name(opts.Name),
				natsgo.MaxReconnects(-1),
			)
		},
		retry.Context(ctx),
		retry.Attempts(opts.Attempts),
		retry.Delay(opts.RetryDelay),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			log.Warn().Err(err).Uint("n", n).Str("url", url).Msg("nats connect failed, retrying")
			return retry.BackOffDelay(n, err, config)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}

	log.Info().Str("url", nc.ConnectedUrl()).Msg("publishing game events to nats")
	return NewPublisher(nc, opts.Prefix), nil
}

// NewPublisher wraps an existing connection. An empty prefix uses
// DefaultSubjectPrefix.
func NewPublisher(conn Conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{conn: conn, prefix: strings.TrimSuffix(prefix, ".")}
}

// Publish sends one event. The NATS client buffers internally, so this does
// not wait for the server.
func (p *Publisher) Publish(ctx context.Context, event service.GameEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.conn == nil {
		return ErrClosed
	}

	subject := Subject(p.prefix, event.SessionID, event.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending events and closes the connection. Publish calls
// already in flight finish before the drain starts.
func (p *Publisher) Close() error {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Drain()
}

// Subject builds the subject for an event. Characters NATS treats as
// separators or wildcards are replaced so an ID always maps to exactly one
// token.
func Subject(prefix, sessionID, eventType string) string {
	return prefix + "." + token(strings.ToLower(sessionID)) + "." + token(eventType)
}

func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
