package output

import (
	"context"
	"fmt"

	"github.com/chrisdamba/menustats/internal/analytics"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the part of an AMQP channel the sink uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink publishes report messages to a fanout exchange with the message
// topic as routing key.
type AMQPSink struct {
	conn     *amqp.Connection
	channel  Publisher
	exchange string
}

func NewAMQPSink(url, exchange string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	sink := NewAMQPSinkWithPublisher(ch, exchange)
	sink.conn = conn
	return sink, nil
}

func NewAMQPSinkWithPublisher(p Publisher, exchange string) *AMQPSink {
	return &AMQPSink{channel: p, exchange: exchange}
}

func (a *AMQPSink) Write(ctx context.Context, report *analytics.Report) error {
	msgs, err := Messages(report)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		err := a.channel.PublishWithContext(ctx,
			a.exchange,
			m.Topic,
			false,
			false,
			amqp.Publishing{
				Headers:      amqp.Table{"run_id": report.RunID, "key": m.Key},
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    report.RunID + ":" + m.Topic + ":" + m.Key,
				Timestamp:    report.GeneratedAt,
				Type:         m.Topic,
				Body:         m.Value,
			})
		if err != nil {
			return fmt.Errorf("publish %s: %w", m.Topic, err)
		}
	}
	return nil
}

func (a *AMQPSink) Close() error {
	var err error
	if a.channel != nil {
		err = a.channel.Close()
	}
	if a.conn != nil {
		if cerr := a.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
