package relay

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubscription struct {
	signals []Signal
	handler ChangeHandler
}

type fakeBroker struct {
	values map[Signal]SignalValue
	err    error
	subs   []fakeSubscription
}

func (b *fakeBroker) Subscribe(signals []Signal, handler ChangeHandler) error {
	b.subs = append(b.subs, fakeSubscription{signals: signals, handler: handler})

	return nil
}

func (b *fakeBroker) GetCurrentValue(_ context.Context, signal Signal) (SignalValue, error) {
	if b.err != nil {
		return SignalValue{}, b.err
	}

	value, ok := b.values[signal]
	if !ok {
		return SignalValue{}, ErrSignalUnavailable
	}

	return value, nil
}

type publishedMessage struct {
	topic   string
	payload []byte
}

type fakeTransport struct {
	published          []publishedMessage
	handlers           map[string]MessageHandler
	failTopic          string
	failSubscribeTopic string
}

func (t *fakeTransport) Publish(_ context.Context, topic string, payload []byte) error {
	t.published = append(t.published, publishedMessage{topic: topic, payload: payload})

	if t.failTopic != "" && t.failTopic == topic {
		return errors.New("transport failure")
	}

	return nil
}

func (t *fakeTransport) Subscribe(topic string, handler MessageHandler) error {
	if t.failSubscribeTopic != "" && t.failSubscribeTopic == topic {
		return errors.New("subscribe failure")
	}

	if t.handlers == nil {
		t.handlers = make(map[string]MessageHandler)
	}
	t.handlers[topic] = handler

	return nil
}

type sinkBuffers struct {
	speed        bytes.Buffer
	longitudinal bytes.Buffer
	lateral      bytes.Buffer
	vertical     bytes.Buffer
}

func newTestRelay(broker *fakeBroker, transport *fakeTransport) (*Relay, *sinkBuffers) {
	buffers := &sinkBuffers{}

	loggers := SignalLoggers{
		Speed:        NewSignalLogger(SpeedLoggerName, &buffers.speed),
		Longitudinal: NewSignalLogger(LongitudinalAccelLoggerName, &buffers.longitudinal),
		Lateral:      NewSignalLogger(LateralAccelLoggerName, &buffers.lateral),
		Vertical:     NewSignalLogger(VerticalAccelLoggerName, &buffers.vertical),
	}

	return NewRelay(broker, transport, loggers, zap.NewNop().Sugar()), buffers
}

func TestStartRegistersSubscriptionsAndBindings(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{}
	transport := &fakeTransport{}
	r, _ := newTestRelay(broker, transport)

	require.NoError(t, r.Start())

	require.Len(t, broker.subs, 2)
	assert.Equal(t, []Signal{SignalSpeed}, broker.subs[0].signals)
	assert.Equal(t, []Signal{
		SignalLongitudinalAccel,
		SignalLateralAccel,
		SignalVerticalAccel,
	}, broker.subs[1].signals)

	for _, topic := range []string{
		TopicGetSpeed,
		TopicGetLongitudinalAccel,
		TopicGetLateralAccel,
		TopicGetVerticalAccel,
	} {
		assert.Contains(t, transport.handlers, topic)
	}
}

func TestSpeedChangeLogsAndPublishes(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{}
	transport := &fakeTransport{}
	r, buffers := newTestRelay(broker, transport)
	require.NoError(t, r.Start())

	broker.subs[0].handler(context.Background(), ChangeNotification{
		SignalSpeed: {Value: 42.5},
	})

	require.Len(t, transport.published, 1)
	assert.Equal(t, TopicCurrentSpeed, transport.published[0].topic)
	assert.Equal(t, `{"speed":42.5}`, string(transport.published[0].payload))

	assert.Contains(t, buffers.speed.String(), "Vehicle speed: 42.5")
	assert.Equal(t, 1, bytes.Count(buffers.speed.Bytes(), []byte("\n")))
}

func TestSpeedChangeWithoutSpeedSignal(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{}
	transport := &fakeTransport{}
	r, buffers := newTestRelay(broker, transport)
	require.NoError(t, r.Start())

	broker.subs[0].handler(context.Background(), ChangeNotification{})

	assert.Empty(t, transport.published)
	assert.Zero(t, buffers.speed.Len())
}

func TestAccelerationChangeLogsAndPublishesInOrder(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{}
	transport := &fakeTransport{}
	r, buffers := newTestRelay(broker, transport)
	require.NoError(t, r.Start())

	broker.subs[1].handler(context.Background(), ChangeNotification{
		SignalLongitudinalAccel: {Value: 1.0},
		SignalLateralAccel:      {Value: -0.5},
		SignalVerticalAccel:     {Value: 9.81},
	})

	require.Len(t, transport.published, 3)
	assert.Equal(t, TopicCurrentLongitudinalAccel, transport.published[0].topic)
	assert.Equal(t, `{"longitudinal_acceleration":1.0}`, string(transport.published[0].payload))
	assert.Equal(t, TopicCurrentLateralAccel, transport.published[1].topic)
	assert.Equal(t, `{"lateral_acceleration":-0.5}`, string(transport.published[1].payload))
	assert.Equal(t, TopicCurrentVerticalAccel, transport.published[2].topic)
	assert.Equal(t, `{"vertical_acceleration":9.81}`, string(transport.published[2].payload))

	assert.Contains(t, buffers.longitudinal.String(), "Vehicle longitudinal acceleration: 1.0")
	assert.Contains(t, buffers.lateral.String(), "Vehicle lateral acceleration: -0.5")
	assert.Contains(t, buffers.vertical.String(), "Vehicle vertical acceleration: 9.81")
}

func TestAccelerationPublishFailureDoesNotBlockSiblings(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{}
	transport := &fakeTransport{failTopic: TopicCurrentLongitudinalAccel}
	r, _ := newTestRelay(broker, transport)
	require.NoError(t, r.Start())

	broker.subs[1].handler(context.Background(), ChangeNotification{
		SignalLongitudinalAccel: {Value: 1.0},
		SignalLateralAccel:      {Value: 2.0},
		SignalVerticalAccel:     {Value: 3.0},
	})

	require.Len(t, transport.published, 3)
	assert.Equal(t, TopicCurrentLateralAccel, transport.published[1].topic)
	assert.Equal(t, TopicCurrentVerticalAccel, transport.published[2].topic)
}

func TestGetRequestPublishesResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		requestTopic string
		signal       Signal
		value        float64
		want         string
	}{
		{
			name:         "speed",
			requestTopic: TopicGetSpeed,
			signal:       SignalSpeed,
			value:        42.5,
			want:         `{"result":{"status":0,"message":"Speed = 42.5"}}`,
		},
		{
			name:         "longitudinal acceleration",
			requestTopic: TopicGetLongitudinalAccel,
			signal:       SignalLongitudinalAccel,
			value:        1.25,
			want:         `{"result":{"status":0,"message":"Longi Acceleration = 1.25"}}`,
		},
		{
			name:         "lateral acceleration",
			requestTopic: TopicGetLateralAccel,
			signal:       SignalLateralAccel,
			value:        -0.5,
			want:         `{"result":{"status":0,"message":"LAT Acceleration = -0.5"}}`,
		},
		{
			name:         "vertical acceleration",
			requestTopic: TopicGetVerticalAccel,
			signal:       SignalVerticalAccel,
			value:        9.81,
			want:         `{"result":{"status":0,"message":"Vertical Acceleration = 9.81"}}`,
		},
		{
			name:         "whole-number speed keeps decimal point",
			requestTopic: TopicGetSpeed,
			signal:       SignalSpeed,
			value:        42,
			want:         `{"result":{"status":0,"message":"Speed = 42.0"}}`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			broker := &fakeBroker{
				values: map[Signal]SignalValue{
					tt.signal: {Value: tt.value},
				},
			}
			transport := &fakeTransport{}
			r, _ := newTestRelay(broker, transport)
			require.NoError(t, r.Start())

			handler := transport.handlers[tt.requestTopic]
			require.NotNil(t, handler)
			require.NoError(t, handler(context.Background(), tt.requestTopic, []byte("{}")))

			require.Len(t, transport.published, 1)
			assert.Equal(t, ResponseTopic(tt.requestTopic), transport.published[0].topic)
			assert.Equal(t, tt.want, string(transport.published[0].payload))
		})
	}
}

func TestFormatValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value float64
		want  string
	}{
		{42.5, "42.5"},
		{1, "1.0"},
		{0, "0.0"},
		{-0.5, "-0.5"},
		{9.81, "9.81"},
		{-3, "-3.0"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatValue(tt.value))
	}
}

func TestGetRequestFetchFailurePublishesNothing(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{err: errors.New("broker unreachable")}
	transport := &fakeTransport{}
	r, _ := newTestRelay(broker, transport)
	require.NoError(t, r.Start())

	handler := transport.handlers[TopicGetSpeed]
	require.NotNil(t, handler)

	err := handler(context.Background(), TopicGetSpeed, nil)
	require.Error(t, err)
	assert.Empty(t, transport.published)
}
