package relay

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

// Logger names, one per signal category
const (
	SpeedLoggerName             = "vehicle/speed"
	LongitudinalAccelLoggerName = "vehicle/acceleration_longitudinal"
	LateralAccelLoggerName      = "vehicle/acceleration_lateral"
	VerticalAccelLoggerName     = "vehicle/acceleration_vertical"
)

const timestampLayout = "2006-01-02 15:04:05.000"

// LogConfig represents the config of the signal log sink
type LogConfig struct {
	Path            string `yaml:"path"`
	RotationSeconds int    `yaml:"rotation_seconds"`
	MaxSegments     uint   `yaml:"max_segments"`
}

func (c LogConfig) withDefaults() LogConfig {
	if c.Path == "" {
		c.Path = "logs/vehicle/app.log"
	}
	if c.RotationSeconds <= 0 {
		c.RotationSeconds = 60
	}
	if c.MaxSegments == 0 {
		c.MaxSegments = 5
	}

	return c
}

// NewLogSink opens the time-rotating file sink shared by the signal
// loggers. A new segment is started every rotation interval and at most
// MaxSegments historical segments are retained.
func NewLogSink(config LogConfig) (io.Writer, error) {
	config = config.withDefaults()

	if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		return nil, fmt.Errorf("log sink: %s", err)
	}

	sink, err := rotatelogs.New(
		config.Path+".%Y%m%d%H%M%S",
		rotatelogs.WithLinkName(config.Path),
		rotatelogs.WithRotationTime(time.Duration(config.RotationSeconds)*time.Second),
		rotatelogs.WithMaxAge(-1),
		rotatelogs.WithRotationCount(config.MaxSegments),
	)
	if err != nil {
		return nil, fmt.Errorf("log sink: %s", err)
	}

	return sink, nil
}

// SignalLogger appends formatted lines for one signal category to a log
// sink. The four loggers share one sink and are distinguished by name.
type SignalLogger struct {
	name string
	sink io.Writer
}

// Infof appends one line to the sink. Write failures are not defended
// against; the sink's own error policy governs them.
func (l *SignalLogger) Infof(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)

	fmt.Fprintf(l.sink, "%s [%s]- %s\n", time.Now().Format(timestampLayout), l.name, message)
}

// NewSignalLogger creates a new SignalLogger writing to the given sink
func NewSignalLogger(name string, sink io.Writer) *SignalLogger {
	return &SignalLogger{
		name: name,
		sink: sink,
	}
}
