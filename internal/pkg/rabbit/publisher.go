package rabbit

import (
	"encoding/json"
	"sync"
	"time"

	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"bitbucket.org/airenas/vidscribe/internal/pkg/messages"
	"github.com/cenkalti/backoff"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

//BackOffProvider returns a fresh back off policy for each publish
type BackOffProvider interface {
	Get() backoff.BackOff
}

//ExpBackOffProvider provides exponential back off limited by MaxElapsedTime
type ExpBackOffProvider struct {
	MaxElapsedTime time.Duration
}

//Get returns new exponential back off
func (bp *ExpBackOffProvider) Get() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     backoff.DefaultInitialInterval,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         backoff.DefaultMaxInterval,
		MaxElapsedTime:      bp.MaxElapsedTime,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

type channelRunner interface {
	RunOnChannelWithRetry(f runOnChannelFunc) error
}

//Publisher publish events to a fanout exchange of rabbit mq broker
type Publisher struct {
	provider channelRunner
	bp       BackOffProvider

	m        sync.Mutex
	declared map[string]bool
}

//NewPublisher initializes rabbit publisher
func NewPublisher(provider *ChannelProvider, bp BackOffProvider) (*Publisher, error) {
	if provider == nil {
		return nil, errors.New("No channel provider")
	}
	if bp == nil {
		return nil, errors.New("No back off provider")
	}
	return &Publisher{provider: provider, bp: bp, declared: make(map[string]bool)}, nil
}

//Publish publishes the message to the exchange topic, retries with back off
func (sender *Publisher) Publish(msg *messages.StatusMessage, topic string) error {
	if msg == nil {
		return errors.New("No message")
	}
	cmdapp.Log.Debugf("Publishing event %s(%s)", topic, msg.ID)
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "Can't marshal message")
	}
	op := func() error {
		return sender.provider.RunOnChannelWithRetry(func(ch *amqp.Channel) error {
			if err := sender.declare(ch, topic); err != nil {
				return err
			}
			return ch.Publish(
				topic, // exchange
				"",
				false, // mandatory
				false,
				amqp.Publishing{
					ContentType: "application/json",
					Body:        body,
				})
		})
	}
	err = backoff.Retry(op, sender.bp.Get())
	if err != nil {
		return errors.Wrap(err, "Can't publish event")
	}
	return nil
}

func (sender *Publisher) declare(ch *amqp.Channel, topic string) error {
	sender.m.Lock()
	defer sender.m.Unlock()
	if sender.declared[topic] {
		return nil
	}
	err := ch.ExchangeDeclare(
		topic,
		"fanout",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return errors.Wrapf(err, "Can't declare exchange %s", topic)
	}
	sender.declared[topic] = true
	return nil
}
