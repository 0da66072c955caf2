package relay

import (
	"context"
	"errors"
	"time"
)

// Signal identifies a vehicle telemetry datapoint by its VSS path
type Signal string

// Signals relayed by this application
const (
	SignalSpeed             Signal = "Vehicle.Speed"
	SignalLongitudinalAccel Signal = "Vehicle.Acceleration.Longitudinal"
	SignalLateralAccel      Signal = "Vehicle.Acceleration.Lateral"
	SignalVerticalAccel     Signal = "Vehicle.Acceleration.Vertical"
)

// ErrSignalUnavailable is returned when the broker holds no value for a signal
var ErrSignalUnavailable = errors.New("signal unavailable")

// SignalValue represents a single measurement of a signal
type SignalValue struct {
	Value      float64
	MeasuredAt time.Time
}

// ChangeNotification carries the current values of the signals of one
// subscription at the moment the notification fired
type ChangeNotification map[Signal]SignalValue

// Get returns the value of the given signal, if present in the notification
func (n ChangeNotification) Get(signal Signal) (SignalValue, bool) {
	value, ok := n[signal]

	return value, ok
}

// ChangeHandler is invoked by the broker whenever a subscribed signal changes
type ChangeHandler func(ctx context.Context, notification ChangeNotification)

// DataBroker exposes vehicle signals for subscription and synchronous reads
type DataBroker interface {
	Subscribe(signals []Signal, handler ChangeHandler) error
	GetCurrentValue(ctx context.Context, signal Signal) (SignalValue, error)
}
