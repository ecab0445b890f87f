package messagebus

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/datapipe-labs/dp-go-common/config"
	"github.com/datapipe-labs/dp-go-common/xerrors/stacktrace"
)

var ErrNoMessages = errors.New("no messages found")

// GetLastRecord consumes only the last published record for a given subject,
// typically to resume a pipeline from where it left off.
// Returns ErrNoMessages if no record exists on that subject.
func GetLastRecord[T any](cfg *config.Configuration, cfgPath string, opts ...Option) (T, *jetstream.MsgMetadata, error) {
	var data T

	options := parseOptions(opts)
	consumerCfg := recordConsumerConfig{}
	if err := cfg.Unmarshal(cfgPath, &consumerCfg); err != nil {
		return data, nil, stacktrace.Wrap(err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Description:   consumerCfg.Description,
		FilterSubject: consumerCfg.Subject,
		AckPolicy:     jetstream.AckNonePolicy,     // Don't require an ACK
		DeliverPolicy: jetstream.DeliverLastPolicy, // Deliver the last message first
	}

	var nc *nats.Conn
	var js jetstream.JetStream

	if options.nc != nil {
		if options.js == nil {
			return data, nil, stacktrace.Wrap(ErrNoJetstream)
		}
		nc = options.nc
		js = options.js
	} else {
		newNC, newJS, err := NewJetStreamConnection(cfg, opts...)
		if err != nil {
			return data, nil, stacktrace.Wrap(err)
		}
		nc = newNC
		js = newJS
		// Only drain the nats connection if it was one we made.
		// Otherwise the responsibility for this lies with its creator.
		defer func() { _ = nc.Drain() }()
	}

	consumer, err := js.CreateOrUpdateConsumer(context.Background(), consumerCfg.Stream, consumerConfig)
	if err != nil {
		return data, nil, stacktrace.Wrap(err)
	}

	// Fetch the single message that we care about (the last one).
	// NOTE: this is a non-blocking operation.
	msgBatch, err := consumer.FetchNoWait(1)
	if err != nil {
		return data, nil, stacktrace.Wrap(err)
	}

	// The channel is closed once the message (or lack thereof) is pushed into it.
	msg, ok := <-msgBatch.Messages()
	if !ok {
		// May be a legitimately expected result; log the consumer config to
		// help debug the cases where it isn't.
		options.logger.Info("no messages found for consumer", slog.Any("consumerConfig", consumerConfig))
		return data, nil, stacktrace.Wrap(ErrNoMessages)
	}

	metadata, err := msg.Metadata()
	if err != nil {
		return data, nil, stacktrace.Wrap(err)
	}

	if err := options.unmarshaler(msg.Data(), &data); err != nil {
		return data, nil, stacktrace.Wrap(err)
	}

	return data, metadata, nil
}
