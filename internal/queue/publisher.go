package queue

import (
    "context"
    "encoding/json"
    "errors"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
    gobreaker "github.com/sony/gobreaker/v2"

    "github.com/iliyamo/movie-catalog/internal/config"
    "github.com/iliyamo/movie-catalog/internal/logger"
    "github.com/iliyamo/movie-catalog/internal/metrics"
)

// Publisher sends activity events to a durable RabbitMQ queue.  Each publish
// dials, declares the queue and closes again; a circuit breaker stops the
// dialing while the broker is down so requests do not pay the dial timeout.
type Publisher struct {
    cfg     config.BrokerConfig
    breaker *gobreaker.CircuitBreaker[any]
    dial    func(url string) (*amqp.Connection, error)
}

// NewPublisher builds a Publisher from cfg.
func NewPublisher(cfg config.BrokerConfig) *Publisher {
    log := logger.Get()
    settings := gobreaker.Settings{
        Name:    "activity-publisher",
        Timeout: cfg.BreakerOpenFor,
        ReadyToTrip: func(counts gobreaker.Counts) bool {
            return counts.ConsecutiveFailures >= cfg.BreakerFailures
        },
        OnStateChange: func(name string, from, to gobreaker.State) {
            log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state change")
        },
    }
    return &Publisher{cfg: cfg, breaker: gobreaker.NewCircuitBreaker[any](settings), dial: amqp.Dial}
}

// Publish marshals ev and sends it as a persistent message.
func (p *Publisher) Publish(ctx context.Context, ev ActivityEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }
    _, err = p.breaker.Execute(func() (any, error) {
        return nil, p.send(ctx, body)
    })
    switch {
    case err == nil:
        metrics.EventsPublished.WithLabelValues(ev.Type, "ok").Inc()
    case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
        metrics.EventsPublished.WithLabelValues(ev.Type, "breaker_open").Inc()
    default:
        metrics.EventsPublished.WithLabelValues(ev.Type, "error").Inc()
    }
    return err
}

// State reports the breaker state for health output.
func (p *Publisher) State() string { return p.breaker.State().String() }

func (p *Publisher) send(ctx context.Context, body []byte) error {
    conn, err := p.dial(p.cfg.URL)
    if err != nil {
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return err
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(p.cfg.Queue, true, false, false, false, nil); err != nil {
        return err
    }

    ctx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
    defer cancel()
    return ch.PublishWithContext(ctx,
        "",          // default exchange
        p.cfg.Queue, // routing key = queue name
        false,       // mandatory
        false,       // immediate
        amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent,
            Timestamp:    time.Now().UTC(),
            Body:         body,
        })
}
