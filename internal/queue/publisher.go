package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var (
	ErrPublisherClosed   = errors.New("publisher closed")
	ErrPublishBufferFull = errors.New("publish buffer full")
)

const publishBuffer = 256

// AMQPPublisher hands messages to a background worker that owns the broker
// connection. Publish never waits on the network; a slow or unreachable broker
// fills the buffer and further messages are rejected.
type AMQPPublisher struct {
	url         string
	log         *zap.Logger
	dialTimeout time.Duration

	pending   chan Message
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// owned by run
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher starts a publisher for the broker at url. The connection is
// opened lazily by the worker.
func NewAMQPPublisher(url string, log *zap.Logger) *AMQPPublisher {
	p := newAMQPPublisher(url, log, dialTimeout, publishBuffer)
	go p.run()
	return p
}

func newAMQPPublisher(url string, log *zap.Logger, timeout time.Duration, buffer int) *AMQPPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &AMQPPublisher{
		url:         url,
		log:         log,
		dialTimeout: timeout,
		pending:     make(chan Message, buffer),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

// Publish queues msg for delivery.
func (p *AMQPPublisher) Publish(_ context.Context, msg Message) error {
	select {
	case <-p.done:
		return ErrPublisherClosed
	default:
	}
	select {
	case p.pending <- msg:
		return nil
	default:
		return ErrPublishBufferFull
	}
}

// Close stops accepting messages, flushes what is buffered while the broker keeps
// answering, and closes the connection.
func (p *AMQPPublisher) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	<-p.stopped
	return nil
}

func (p *AMQPPublisher) run() {
	defer close(p.stopped)
	defer p.reset()

	for {
		select {
		case msg := <-p.pending:
			_ = p.send(msg)
		case <-p.done:
			p.drain()
			return
		}
	}
}

func (p *AMQPPublisher) drain() {
	for {
		select {
		case msg := <-p.pending:
			if err := p.send(msg); err != nil {
				if n := len(p.pending); n > 0 {
					p.log.Warn("dropping buffered notifications", zap.Int("count", n))
				}
				return
			}
		default:
			return
		}
	}
}

func (p *AMQPPublisher) send(msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		p.log.Error("marshal notification failed", zap.String("type", string(msg.Type)), zap.Error(err))
		return nil
	}

	ch, err := p.channel()
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), p.dialTimeout)
		err = ch.PublishWithContext(ctx,
			"",                // default exchange
			NotificationQueue, // routing key = queue name
			false,             // mandatory
			false,             // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Type:         string(msg.Type),
				Timestamp:    time.Now().UTC(),
				Body:         body,
			},
		)
		cancel()
		if err != nil {
			p.reset()
		}
	}
	if err != nil {
		p.log.Warn("publish notification failed",
			zap.String("type", string(msg.Type)),
			zap.String("user_id", msg.UserID.String()),
			zap.Error(err),
		)
	}
	return err
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := dial(p.url, p.dialTimeout)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
