// Package rmq publishes evaluations to a RabbitMQ exchange so downstream
// systems (bed management, paging) can react to triage decisions.
package rmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/streadway/amqp"

	"github.com/linnemanlabs/vitaltriage/internal/triage"
)

// RoutingKeyPrefix is followed by the evaluation's highest category,
// e.g. "evaluation.emergency".
const RoutingKeyPrefix = "evaluation."

// ErrClosed is returned by Notify after Close.
var ErrClosed = errors.New("amqp publisher closed")

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// session is one broker connection with its publishing channel. closed
// receives once when the connection goes away.
type session struct {
	ch     channel
	closed <-chan *amqp.Error
	close  func() error
}

type dialFunc func(url, exchange string) (*session, error)

// Publisher implements triage.Notifier over AMQP. A lost connection is
// logged when it happens and re-dialed on the next Notify.
type Publisher struct {
	url      string
	exchange string
	logger   log.Logger
	dial     dialFunc

	mu       sync.Mutex
	sess     *session
	shutdown bool
}

// Dial connects to url and declares a durable topic exchange. The first
// connection must succeed.
func Dial(url, exchange string, logger log.Logger) (*Publisher, error) {
	p := newPublisher(url, exchange, logger, dialBroker)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func newPublisher(url, exchange string, logger log.Logger, dial dialFunc) *Publisher {
	if logger == nil {
		logger = log.Nop()
	}
	return &Publisher{url: url, exchange: exchange, logger: logger, dial: dial}
}

func dialBroker(url, exchange string) (*session, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // delete when unused
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}
	// buffered: the library blocks on an unread notify channel
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	return &session{ch: ch, closed: closed, close: conn.Close}, nil
}

// connectLocked returns the live session, dialing a new one if needed.
// p.mu must be held.
func (p *Publisher) connectLocked() (*session, error) {
	if p.shutdown {
		return nil, ErrClosed
	}
	if p.sess != nil {
		return p.sess, nil
	}
	s, err := p.dial(p.url, p.exchange)
	if err != nil {
		return nil, err
	}
	p.sess = s
	go p.watch(s)
	return s, nil
}

// watch drops s once its connection closes unexpectedly.
func (p *Publisher) watch(s *session) {
	amqpErr, ok := <-s.closed

	p.mu.Lock()
	defer p.mu.Unlock()
	// dropped, replaced or shut down on purpose
	if p.sess != s {
		return
	}
	p.sess = nil
	if ok && amqpErr != nil {
		p.logger.Warn(context.Background(), "amqp connection lost, will reconnect on next publish",
			"exchange", p.exchange, "code", amqpErr.Code, "reason", amqpErr.Reason)
		return
	}
	p.logger.Warn(context.Background(), "amqp connection closed, will reconnect on next publish", "exchange", p.exchange)
}

// drop discards s after a failed publish so the next call re-dials.
func (p *Publisher) drop(s *session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess != s {
		return
	}
	p.sess = nil
	if s.close != nil {
		_ = s.close()
	}
}

// Notify publishes ev as a persistent JSON message. streadway/amqp has no
// context support, so ctx is only checked before publishing.
func (p *Publisher) Notify(ctx context.Context, ev *triage.Evaluation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := buildPublishing(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	s, err := p.connectLocked()
	p.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.ch.Publish(p.exchange, RoutingKey(ev), false, false, msg); err != nil {
		p.drop(s)
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Close closes the current connection. Later calls to Notify fail with
// ErrClosed.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shutdown = true
	s := p.sess
	p.sess = nil
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// RoutingKey returns the topic an evaluation is published under.
func RoutingKey(ev *triage.Evaluation) string {
	return RoutingKeyPrefix + string(ev.Highest)
}

func buildPublishing(ev *triage.Evaluation) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal evaluation: %w", err)
	}
	headers := amqp.Table{
		"schema_version": ev.SchemaVersion,
		"disagreement":   ev.Disagreement,
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.CreatedAt.Truncate(time.Second),
		Type:         "vitaltriage.evaluation",
		Headers:      headers,
		Body:         body,
	}, nil
}
