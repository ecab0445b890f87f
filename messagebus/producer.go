package messagebus

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/datapipe-labs/dp-go-common/config"
	"github.com/datapipe-labs/dp-go-common/xerrors/stacktrace"
)

// required config for a record producer
type recordProducerConfig struct {
	// Subject identifies where to produce records to
	Subject string
}

// RecordProducer publishes typed records to a JetStream subject.
type RecordProducer[T any] struct {
	config           recordProducerConfig
	nc               *nats.Conn
	shouldCloseNC    bool
	js               jetstream.JetStream
	opts             options
	subjectTransform func(data T, defaultSubject string) string
}

func nilTransform[T any](_ T, defaultSubject string) string {
	return defaultSubject
}

// NewRecordProducer creates a new RecordProducer.
func NewRecordProducer[T any](cfg *config.Configuration, cfgPath string, opts ...Option) (*RecordProducer[T], error) {
	options := parseOptions(opts)

	producerConfig := recordProducerConfig{}
	if err := cfg.Unmarshal(cfgPath, &producerConfig); err != nil {
		return nil, stacktrace.Wrap(err)
	}
	if producerConfig.Subject == "" {
		return nil, stacktrace.Wrap(ErrNoSubject)
	}

	producer := RecordProducer[T]{
		config:           producerConfig,
		opts:             options,
		subjectTransform: nilTransform[T],
	}

	if options.nc != nil {
		if options.js == nil {
			return nil, stacktrace.Wrap(ErrNoJetstream)
		}
		producer.nc = options.nc
		producer.js = options.js
	} else {
		nc, js, err := NewJetStreamConnection(cfg, opts...)
		if err != nil {
			return nil, stacktrace.Wrap(err)
		}
		producer.shouldCloseNC = true
		producer.nc = nc
		producer.js = js
	}

	return &producer, nil
}

// SetSubjectTransform allows publishing to a dynamic subject derived from the record.
func (p *RecordProducer[T]) SetSubjectTransform(f func(data T, defaultSubject string) string) {
	p.subjectTransform = f
}

// Produce sends the record to the stream.
func (p *RecordProducer[T]) Produce(ctx context.Context, data T) error {
	b, err := p.opts.marshaler(&data)
	if err != nil {
		return stacktrace.Wrap(err)
	}

	return p.opts.retrier.Try(ctx, func() error {
		sub := p.subjectTransform(data, p.config.Subject)
		if _, err := p.js.Publish(ctx, sub, b); err != nil {
			return stacktrace.Wrap(err)
		}
		return nil
	})
}

// Close terminates the connection if this producer owns it.
func (p *RecordProducer[T]) Close() {
	// Only close the nats connection if it was one we made.
	// Otherwise the responsibility for this lies with its creator.
	if p.shouldCloseNC {
		p.nc.Close()
	}
}
