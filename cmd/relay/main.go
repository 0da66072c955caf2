package main

import (
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/vehicle-edge/mqtt-telemetry-relay/relay"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("error: config file location not specified")
	}

	f, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("error: %v", err)
	}

	c := relay.Config{}
	err = yaml.Unmarshal(f, &c)
	if err != nil {
		log.Fatalf("error: %v", err)
	}

	// Set up logger
	var logger *zap.Logger
	if c.Env == "dev" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("error: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// Set up signal log sinks
	sink, err := relay.NewLogSink(c.Log)
	if err != nil {
		sugar.Fatalf("relay: %s", err)
	}

	loggers := relay.SignalLoggers{
		Speed:        relay.NewSignalLogger(relay.SpeedLoggerName, sink),
		Longitudinal: relay.NewSignalLogger(relay.LongitudinalAccelLoggerName, sink),
		Lateral:      relay.NewSignalLogger(relay.LateralAccelLoggerName, sink),
		Vertical:     relay.NewSignalLogger(relay.VerticalAccelLoggerName, sink),
	}

	// Set up transport and broker client
	messenger := relay.NewMessenger(c.MQTT, sugar)
	if err := messenger.Connect(); err != nil {
		sugar.Fatalf("relay: %s", err)
	}
	defer messenger.Shutdown()

	broker := relay.NewSignalClient(c.Broker, messenger, sugar)

	// Set up relay
	r := relay.NewRelay(broker, messenger, loggers, sugar)
	if err := r.Start(); err != nil {
		sugar.Fatalf("relay: %s", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		exit := make(chan os.Signal, 1)
		signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)

		<-exit

		sugar.Info("relay: shutting down")
		wg.Done()
	}()

	wg.Wait()
	sugar.Info("relay: shutdown OK")
}
