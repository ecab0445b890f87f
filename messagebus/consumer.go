package messagebus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/datapipe-labs/dp-go-common/calm/errgroup"
	"github.com/datapipe-labs/dp-go-common/config"
	"github.com/datapipe-labs/dp-go-common/log"
	"github.com/datapipe-labs/dp-go-common/retry"
	"github.com/datapipe-labs/dp-go-common/retry/strategy"
	"github.com/datapipe-labs/dp-go-common/task/polling"
	"github.com/datapipe-labs/dp-go-common/xerrors/errclass"
	"github.com/datapipe-labs/dp-go-common/xerrors/stacktrace"
)

const (
	// The default AckWait is 30 seconds, meaning any message that
	// hasn't been given an Ack or an InProgress will be resent.
	// Use 15 seconds as the default time to send InProgress updates.
	defaultInProgressInterval = 15 * time.Second

	// bounds on the delay NATS is asked to wait before redelivering a message
	maxNakDelay  = time.Minute
	baseNakDelay = time.Millisecond * 100

	maxRetryAttempts     = 5
	retryBackoffInterval = 2 * time.Second
)

// required config for a record consumer
type recordConsumerConfig struct {
	Stream       string
	DurableQueue string `koanf:"durablequeue"`
	Description  string
	Subject      string
}

// Handler handles the incoming records.
// Using generic type T abstracts the deserialization away from implementations.
type Handler[T any] interface {
	HandleRecord(ctx context.Context, data T, subject string, metadata jetstream.MsgMetadata) error
}

// RecordConsumer is a Task that does the dirty work of talking to NATS JetStream,
// allowing users to focus on handling the records with a Handler.
type RecordConsumer[T any] struct {
	nc            *nats.Conn
	shouldCloseNC bool
	js            jetstream.JetStream
	consumer      jetstream.Consumer
	handler       Handler[T]
	opts          options
}

// NewRecordConsumer creates a new RecordConsumer.
func NewRecordConsumer[T any](cfg *config.Configuration, cfgPath string, handler Handler[T], opts ...Option) (*RecordConsumer[T], error) {
	options := parseOptions(opts)
	consumerCfg := recordConsumerConfig{}
	if err := cfg.Unmarshal(cfgPath, &consumerCfg); err != nil {
		return nil, stacktrace.Wrap(err)
	}

	var consumerConfig jetstream.ConsumerConfig
	if options.consumerConfig != nil {
		consumerConfig = *options.consumerConfig
	} else {
		consumerConfig = jetstream.ConsumerConfig{
			Durable:       consumerCfg.DurableQueue,
			Description:   consumerCfg.Description,
			FilterSubject: consumerCfg.Subject,
		}
		if options.durableQueue != "" {
			consumerConfig.Durable = options.durableQueue
		}
	}

	recordConsumer := &RecordConsumer[T]{
		handler: handler,
		opts:    options,
	}

	if options.nc != nil && options.js != nil {
		recordConsumer.nc = options.nc
		recordConsumer.js = options.js
	} else {
		nc, js, err := NewJetStreamConnection(cfg, opts...)
		if err != nil {
			return nil, stacktrace.Wrap(err)
		}
		recordConsumer.shouldCloseNC = true
		recordConsumer.nc = nc
		recordConsumer.js = js
	}

	consumer, err := recordConsumer.js.CreateOrUpdateConsumer(context.Background(), consumerCfg.Stream, consumerConfig)
	if err != nil {
		return nil, stacktrace.Wrap(err)
	}
	recordConsumer.consumer = consumer

	return recordConsumer, nil
}

// HealthCheck returns an error if the NATS connection is not "connected".
func (n *RecordConsumer[T]) HealthCheck(ctx context.Context) error {
	if n.nc.Status() != nats.CONNECTED {
		return stacktrace.Wrap(ErrNATSNotConnected)
	}
	return nil
}

// Name returns the name of this task.
func (n *RecordConsumer[T]) Name() string {
	return fmt.Sprintf("record-consumer (%s)", n.consumer.CachedInfo().Config.Durable)
}

// Run consumes records from NATS and passes them to the handler.
func (n *RecordConsumer[T]) Run(ctx context.Context) error {
	// Only close the nats connection if it was one we made.
	// Otherwise the responsibility for this lies with its creator.
	if n.shouldCloseNC {
		defer n.nc.Close()
	}

	retrier := retry.NewRetrier(
		retry.WithMaxAttempts(maxRetryAttempts),
		retry.WithStrategy(strategy.NewExponential(retryBackoffInterval, maxNakDelay)),
		retry.WithUnknownErrorsAs(errclass.Transient),
	)

	return retrier.Try(ctx, func() error {
		err := n.consumeLoop(ctx)
		if err != nil {
			if isRecoverableStreamError(err) {
				n.opts.logger.Warn("recoverable error occurred, will retry",
					log.ErrAttr(err),
					slog.String("task", n.Name()),
				)
				return stacktrace.Wrap(err)
			}
			return errclass.Mark(stacktrace.Wrap(err), errclass.Persistent)
		}
		return nil
	})
}

func (n *RecordConsumer[T]) consumeLoop(ctx context.Context) error {
	// Recreate consumer to ensure it's using the current connection
	// (important after a reconnection).
	consumerInfo := n.consumer.CachedInfo()
	if consumerInfo == nil {
		info, infoErr := n.consumer.Info(ctx)
		if infoErr != nil {
			return stacktrace.Wrap(infoErr)
		}
		consumerInfo = info
	}
	newConsumer, err := n.js.CreateOrUpdateConsumer(ctx, consumerInfo.Stream, consumerInfo.Config)
	if err != nil {
		return stacktrace.Wrap(err)
	}
	n.consumer = newConsumer

	consumerErrChan := make(chan error, 1)

	cc, err := n.consumer.Consume(
		func(msg jetstream.Msg) {
			n.handleRecord(ctx, msg)
		},
		jetstream.ConsumeErrHandler(func(cc jetstream.ConsumeContext, err error) {
			// ErrNoHeartbeat is safe to ignore so long as we still have a
			// valid connection to the nats server
			if errors.Is(err, nats.ErrNoHeartbeat) || errors.Is(err, jetstream.ErrNoHeartbeat) {
				if n.nc.Status() != nats.CONNECTED {
					cc.Stop()
					select {
					case consumerErrChan <- stacktrace.Wrap(ErrNATSNotConnected):
					default:
					}
				}
			} else {
				cc.Stop()
				select {
				case consumerErrChan <- stacktrace.Wrap(err):
				default:
				}
			}
		}),
	)
	if err != nil {
		return stacktrace.Wrap(err)
	}
	defer cc.Stop()

	select {
	case <-ctx.Done():
		return nil
	case err := <-consumerErrChan:
		return stacktrace.Wrap(err)
	}
}

func (n *RecordConsumer[T]) handleRecord(ctx context.Context, msg jetstream.Msg) {
	meta, err := msg.Metadata()
	if err != nil || meta == nil {
		// Should never happen; log and retry the message later.
		n.opts.logger.Error("failed to fetch message metadata", log.ErrAttr(err),
			slog.String("task", n.Name()), slog.String("subject", msg.Subject()))
		_ = msg.NakWithDelay(baseNakDelay)
		return
	}
	logger := n.opts.logger.With(
		slog.String("task", n.Name()),
		slog.String("subject", msg.Subject()),
		slog.Uint64("sequence_number", meta.Sequence.Stream),
		slog.Uint64("delivery_attempt", meta.NumDelivered),
	)

	var data T
	if err := n.opts.unmarshaler(msg.Data(), &data); err != nil {
		// If we can't unmarshal the data, it's useless to us.
		// Log an error, and consider it otherwise handled.
		logger.Error("failed to unmarshal record - skipping", log.ErrAttr(err))
		return
	}

	// The default AckWait for NATS consumers is 30 seconds. Handling a record
	// may take much longer, so send InProgress at regular intervals to reset
	// the AckWait countdown while the handler works.
	progressAcker := newInProgressAcker(msg, n.opts.inProgressInterval)
	innerCtx, cancel := context.WithCancel(ctx)
	g := errgroup.New()

	g.Go(func() error {
		defer cancel()
		metadata, err := msg.Metadata()
		if err != nil {
			return stacktrace.Wrap(err)
		} else if metadata == nil {
			return stacktrace.Wrap(errors.New("metadata is nil"))
		}
		return n.handler.HandleRecord(innerCtx, data, msg.Subject(), *metadata)
	})
	g.Go(func() error {
		return progressAcker.Run(innerCtx)
	})

	err = g.Wait()
	var ackErr error
	switch errclass.GetClass(err) {
	case errclass.Nil:
		ackErr = msg.Ack()
	case errclass.Persistent, errclass.Panic:
		if ctx.Err() == nil {
			logger.Error("failed to handle record - skipping", log.ErrAttr(err))
		}
		ackErr = msg.Ack()
	default: // errclass.Transient or error class was not explicitly set
		delay := CalculateNakDelay(meta)
		ackErr = msg.NakWithDelay(delay)
		if ctx.Err() == nil {
			if meta.NumDelivered < 10 {
				logger.Warn("failed to handle record - will retry", log.ErrAttr(err), slog.Duration("delay", delay))
			} else {
				logger.Error("failed to handle record - will retry", log.ErrAttr(err), slog.Duration("delay", delay))
			}
		}
	}

	if ackErr != nil && ctx.Err() == nil {
		logger.Warn("failed to ack/nak message", log.ErrAttr(ackErr))
	}
}

func newInProgressAcker(msg jetstream.Msg, d time.Duration) *polling.Task {
	action := inProgressAction{Msg: msg}
	// NOTE: never include WithTerminateOnError since a failure to send the
	// InProgress message must not surface as a record handling error.
	options := []polling.Option{
		polling.WithRunAtStart(),
		polling.WithInterval(d),
	}
	return polling.NewTask("msg in progress acker", &action, options...)
}

type inProgressAction struct {
	Msg jetstream.Msg
}

func (a *inProgressAction) Run(_ context.Context) error {
	return a.Msg.InProgress()
}

func (a *inProgressAction) Cleanup() {}

// CalculateNakDelay produces a bounded doubling backoff from the message
// metadata. A Nak without a delay would make NATS redeliver instantly.
func CalculateNakDelay(meta *jetstream.MsgMetadata) time.Duration {
	// don't bother with calculation after the 10th attempt
	if meta.NumDelivered <= 10 {
		calculatedDelay := baseNakDelay << meta.NumDelivered
		if calculatedDelay < maxNakDelay {
			return calculatedDelay
		}
	}

	return maxNakDelay
}

func isRecoverableStreamError(err error) bool {
	switch {
	case errors.Is(err, jetstream.ErrConsumerLeadershipChanged):
		return true
	case errors.Is(err, ErrNATSNotConnected):
		return true
	case errors.Is(err, nats.ErrConnectionClosed):
		return true
	case errors.Is(err, nats.ErrNoServers):
		return true
	// Fallback to string matching for errors without specific constants
	case strings.Contains(strings.ToLower(err.Error()), "nats: server shutdown"):
		return true
	default:
		return false
	}
}
