package relay

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/segmentio/encoding/json"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Config is the main configuration
type Config struct {
	Env    string       `yaml:"env"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Broker BrokerConfig `yaml:"broker"`
	Log    LogConfig    `yaml:"log"`
}

// SignalLoggers is the registry of per-category signal loggers, built once
// at bootstrap and handed to the Relay
type SignalLoggers struct {
	Speed        *SignalLogger
	Longitudinal *SignalLogger
	Lateral      *SignalLogger
	Vertical     *SignalLogger
}

// Relay translates broker change notifications and inbound queries into
// logged records and outbound messages
type Relay struct {
	broker    DataBroker
	transport Transport
	loggers   SignalLoggers
	logger    *zap.SugaredLogger
}

// requestBinding pairs one inbound request topic with its handler
type requestBinding struct {
	topic   string
	handler MessageHandler
}

func (r *Relay) requestBindings() []requestBinding {
	return []requestBinding{
		{TopicGetSpeed, r.onGetRequest(SignalSpeed, "Speed = %s")},
		{TopicGetLongitudinalAccel, r.onGetRequest(SignalLongitudinalAccel, "Longi Acceleration = %s")},
		{TopicGetLateralAccel, r.onGetRequest(SignalLateralAccel, "LAT Acceleration = %s")},
		{TopicGetVerticalAccel, r.onGetRequest(SignalVerticalAccel, "Vertical Acceleration = %s")},
	}
}

// Start registers the signal subscriptions and the request topic bindings
func (r *Relay) Start() error {
	err := r.broker.Subscribe([]Signal{SignalSpeed}, r.onSpeedChanged)
	if err != nil {
		return fmt.Errorf("relay: %s", err)
	}

	// The three acceleration axes share one subscription.
	err = r.broker.Subscribe([]Signal{
		SignalLongitudinalAccel,
		SignalLateralAccel,
		SignalVerticalAccel,
	}, r.onAccelerationChanged)
	if err != nil {
		return fmt.Errorf("relay: %s", err)
	}

	for _, binding := range r.requestBindings() {
		if err := r.transport.Subscribe(binding.topic, binding.handler); err != nil {
			return fmt.Errorf("relay: %s", err)
		}
	}

	return nil
}

func (r *Relay) onSpeedChanged(ctx context.Context, notification ChangeNotification) {
	if err := r.handleSpeedChanged(ctx, notification); err != nil {
		r.logger.Errorf("relay: speed change: %s", err)
	}
}

func (r *Relay) handleSpeedChanged(ctx context.Context, notification ChangeNotification) error {
	speed, ok := notification.Get(SignalSpeed)
	if !ok {
		return fmt.Errorf("notification missing signal %q", SignalSpeed)
	}

	r.loggers.Speed.Infof("Vehicle speed: %s", formatValue(speed.Value))

	return r.publishValue(ctx, TopicCurrentSpeed, "speed", speed.Value)
}

func (r *Relay) onAccelerationChanged(ctx context.Context, notification ChangeNotification) {
	if err := r.handleAccelerationChanged(ctx, notification); err != nil {
		r.logger.Errorf("relay: acceleration change: %s", err)
	}
}

func (r *Relay) handleAccelerationChanged(ctx context.Context, notification ChangeNotification) error {
	axes := []struct {
		signal Signal
		logger *SignalLogger
		label  string
		topic  string
		key    string
	}{
		{SignalLongitudinalAccel, r.loggers.Longitudinal, "longitudinal", TopicCurrentLongitudinalAccel, "longitudinal_acceleration"},
		{SignalLateralAccel, r.loggers.Lateral, "lateral", TopicCurrentLateralAccel, "lateral_acceleration"},
		{SignalVerticalAccel, r.loggers.Vertical, "vertical", TopicCurrentVerticalAccel, "vertical_acceleration"},
	}

	// The three axes are independent operations: a failed publish must not
	// block the remaining axes from being attempted.
	var errs error
	for _, axis := range axes {
		value, ok := notification.Get(axis.signal)
		if !ok {
			r.logger.Warnf("relay: notification missing signal %q", axis.signal)

			continue
		}

		axis.logger.Infof("Vehicle %s acceleration: %s", axis.label, formatValue(value.Value))

		errs = multierr.Append(errs, r.publishValue(ctx, axis.topic, axis.key, value.Value))
	}

	return errs
}

// onGetRequest builds the handler answering "get current value" queries
// for one signal. The request payload is logged for diagnostics only.
func (r *Relay) onGetRequest(signal Signal, format string) MessageHandler {
	return func(ctx context.Context, topic string, payload []byte) error {
		r.logger.Debugf("relay: received request on topic %q with data: %s", topic, payload)

		value, err := r.broker.GetCurrentValue(ctx, signal)
		if err != nil {
			return fmt.Errorf("get %q: %s", signal, err)
		}

		response, err := FormatResponse(StatusOK, fmt.Sprintf(format, formatValue(value.Value)))
		if err != nil {
			return err
		}

		return r.transport.Publish(ctx, ResponseTopic(topic), response)
	}
}

func (r *Relay) publishValue(ctx context.Context, topic string, key string, value float64) error {
	payload, err := json.Marshal(map[string]decimal{key: decimal(value)})
	if err != nil {
		return err
	}

	return r.transport.Publish(ctx, topic, payload)
}

// decimal is a float64 rendered with formatValue on the wire
type decimal float64

// MarshalJSON implements json.Marshaler
func (d decimal) MarshalJSON() ([]byte, error) {
	return []byte(formatValue(float64(d))), nil
}

// formatValue renders a signal value as a decimal. Whole numbers keep
// their decimal point, so 1 renders as "1.0".
func formatValue(value float64) string {
	s := strconv.FormatFloat(value, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}

	return s
}

// NewRelay creates a new Relay
func NewRelay(broker DataBroker, transport Transport, loggers SignalLoggers, logger *zap.SugaredLogger) *Relay {
	return &Relay{
		broker:    broker,
		transport: transport,
		loggers:   loggers,
		logger:    logger,
	}
}
