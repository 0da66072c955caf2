package relay

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BrokerConfig represents the config of the SignalClient
type BrokerConfig struct {
	TopicPrefix string `yaml:"topic_prefix"`
}

// SignalClient is a DataBroker backed by the vehicle signal feed on the
// messaging fabric. Each signal is fed on its own topic carrying a plain
// decimal payload. The client keeps the current value of every fed signal
// and fans change notifications out to the registered subscriptions.
type SignalClient struct {
	config    BrokerConfig
	transport Transport
	logger    *zap.SugaredLogger

	mu            sync.Mutex
	values        map[Signal]SignalValue
	subscriptions []subscription
}

type subscription struct {
	signals []Signal
	handler ChangeHandler
}

// FeedTopic returns the topic the given signal is fed on
func (c *SignalClient) FeedTopic(signal Signal) string {
	prefix := c.config.TopicPrefix
	if prefix == "" {
		prefix = "vss/data"
	}

	return prefix + "/" + strings.ReplaceAll(string(signal), ".", "/")
}

// Subscribe registers a handler invoked whenever one of the given signals
// changes. The notification carries the current values of every signal of
// this subscription seen so far.
func (c *SignalClient) Subscribe(signals []Signal, handler ChangeHandler) error {
	for _, signal := range signals {
		if err := c.transport.Subscribe(c.FeedTopic(signal), c.onFeedMessage(signal)); err != nil {
			return fmt.Errorf("signal client: %s", err)
		}

		c.logger.Infof("signal client: watching signal %q", signal)
	}

	// Registered only once every feed topic is wired, so a mid-loop
	// transport failure leaves no partially fed subscription behind.
	c.mu.Lock()
	c.subscriptions = append(c.subscriptions, subscription{
		signals: signals,
		handler: handler,
	})
	c.mu.Unlock()

	return nil
}

// GetCurrentValue returns the current value of the given signal
func (c *SignalClient) GetCurrentValue(ctx context.Context, signal Signal) (SignalValue, error) {
	if err := ctx.Err(); err != nil {
		return SignalValue{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.values[signal]
	if !ok {
		return SignalValue{}, fmt.Errorf("signal client: %q: %w", signal, ErrSignalUnavailable)
	}

	return value, nil
}

func (c *SignalClient) onFeedMessage(signal Signal) MessageHandler {
	return func(ctx context.Context, topic string, payload []byte) error {
		value, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
		if err != nil {
			return fmt.Errorf("signal client: value %q on topic %q is not a number", payload, topic)
		}

		type dispatch struct {
			handler      ChangeHandler
			notification ChangeNotification
		}

		c.mu.Lock()
		c.values[signal] = SignalValue{
			Value:      value,
			MeasuredAt: time.Now(),
		}

		var dispatches []dispatch
		for _, sub := range c.subscriptions {
			if !containsSignal(sub.signals, signal) {
				continue
			}

			notification := make(ChangeNotification, len(sub.signals))
			for _, s := range sub.signals {
				if v, ok := c.values[s]; ok {
					notification[s] = v
				}
			}

			dispatches = append(dispatches, dispatch{
				handler:      sub.handler,
				notification: notification,
			})
		}
		c.mu.Unlock()

		// Handlers run outside the lock: they publish and may call back
		// into GetCurrentValue.
		for _, d := range dispatches {
			d.handler(ctx, d.notification)
		}

		return nil
	}
}

func containsSignal(signals []Signal, signal Signal) bool {
	for _, s := range signals {
		if s == signal {
			return true
		}
	}

	return false
}

// NewSignalClient creates a new SignalClient
func NewSignalClient(config BrokerConfig, transport Transport, logger *zap.SugaredLogger) *SignalClient {
	return &SignalClient{
		config:    config,
		transport: transport,
		logger:    logger,
		values:    make(map[Signal]SignalValue),
	}
}
