// Package notification delivers registry change notifications to sinks: the
// in-process event bus behind the SSE stream and, when configured, Kafka.
package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"autoshield/internal/registry/models"
)

// DeliveryTimeout bounds one sink delivery.
const DeliveryTimeout = 5 * time.Second

var (
	// ErrBufferFull is returned when the async buffer cannot take another notification.
	ErrBufferFull = errors.New("notification buffer full")
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("notification publisher closed")
)

// Sink receives notifications from the publisher.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n models.ChangeNotification) error
}

// Publisher fans notifications out to every sink. In sync mode (the default)
// Publish delivers before returning. With WithAsyncBuffer, Publish enqueues and
// a single worker delivers in enqueue order.
type Publisher struct {
	sinks   []Sink
	logger  *slog.Logger
	metrics *Metrics

	bufferSize int
	queue      chan models.ChangeNotification
	done       chan struct{}

	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

// WithAsyncBuffer enables async delivery with a buffer of n notifications.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.bufferSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithSink adds a sink after construction-time sinks.
func WithSink(s Sink) Option {
	return func(p *Publisher) {
		if s != nil {
			p.sinks = append(p.sinks, s)
		}
	}
}

func NewPublisher(sinks []Sink, opts ...Option) *Publisher {
	p := &Publisher{logger: slog.Default()}
	for _, s := range sinks {
		if s != nil {
			p.sinks = append(p.sinks, s)
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.bufferSize > 0 {
		p.queue = make(chan models.ChangeNotification, p.bufferSize)
		p.done = make(chan struct{})
		go p.run()
	}
	return p
}

// Publish delivers or enqueues n. Sink failures are logged and counted but are
// not returned; only a full buffer or a closed publisher is an error.
func (p *Publisher) Publish(ctx context.Context, n models.ChangeNotification) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	if p.queue == nil {
		p.deliver(context.WithoutCancel(ctx), n)
		return nil
	}

	select {
	case p.queue <- n:
		return nil
	default:
		p.metrics.recordDropped()
		p.logger.WarnContext(ctx, "notification dropped",
			"notification_id", n.ID.String(),
			"address", n.Address.String(),
			"sequence", n.Sequence,
		)
		return ErrBufferFull
	}
}

// Close stops accepting notifications and, in async mode, waits for the
// buffer to drain.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.queue != nil {
		close(p.queue)
	}
	p.mu.Unlock()

	if p.done != nil {
		<-p.done
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for n := range p.queue {
		p.deliver(context.Background(), n)
	}
}

func (p *Publisher) deliver(ctx context.Context, n models.ChangeNotification) {
	for _, sink := range p.sinks {
		deliverCtx, cancel := context.WithTimeout(ctx, DeliveryTimeout)
		err := sink.Deliver(deliverCtx, n)
		cancel()
		if err != nil {
			p.metrics.recordFailed(sink.Name())
			p.logger.ErrorContext(ctx, "notification delivery failed",
				"sink", sink.Name(),
				"notification_id", n.ID.String(),
				"address", n.Address.String(),
				"error", err,
			)
			continue
		}
		p.metrics.recordDelivered(sink.Name())
	}
}
