// Package main provides the entry point for the go-vmeter poller.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/resident-x/go-vmeter/internal/config"
	"github.com/resident-x/go-vmeter/internal/display"
	"github.com/resident-x/go-vmeter/internal/domain"
	"github.com/resident-x/go-vmeter/internal/meter"
	"github.com/resident-x/go-vmeter/internal/pubsub"
	"github.com/resident-x/go-vmeter/internal/service"
	"github.com/resident-x/go-vmeter/internal/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var (
	Version = "unknown" // Default version, can be overridden by build flags
)

func main() {
	code := run() // run() returns an int
	os.Exit(code) // os.Exit is called after deferred functions in run() execute
}

func run() int {
	// Parse command line flags
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	dumpRegisters := flag.Bool("dump-registers", false, "Print the register table as YAML and exit")
	flag.Parse()

	// Show version if requested
	if *showVersion {
		fmt.Printf("go-vmeter poller %s\n", Version)
		return 0
	}

	// Dump the register table if requested
	if *dumpRegisters {
		out, err := yaml.Marshal(meter.Registers)
		if err != nil {
			fmt.Printf("Failed to marshal register table: %v\n", err)
			return 1
		}
		fmt.Print(string(out))
		return 0
	}

	// Initialize context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		return 1
	}

	// Initialize logger with the configured log level
	initLogger(cfg.LogLevel)

	log.Info().Str("version", Version).Msg("Starting go-vmeter poller")
	cfg.Print()

	// Open the Modbus connection to the meter
	client, err := transport.NewClient(transport.Config{
		URL:     cfg.MeterURL(),
		UnitID:  cfg.Meter.UnitID,
		Timeout: cfg.ReadTimeout(),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create meter transport")
		return 1
	}
	if err := client.Open(); err != nil {
		log.Error().
			Err(err).
			Str("meter", cfg.MeterURL()).
			Msg("Failed to reach meter. Check IP address, cabling, and that the meter is powered.")
		return 1
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close meter transport")
		}
	}()

	// Initialize MQTT publisher
	var publisher domain.MessagePublisher
	if cfg.MQTT.Enabled {
		mqttPublisher := pubsub.NewMQTTPublisher(cfg)
		if err := mqttPublisher.Connect(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to connect to MQTT broker, using noop publisher")
			publisher = pubsub.NewNoopPublisher()
		} else {
			publisher = mqttPublisher
			log.Info().Msg("MQTT publisher connected successfully")
		}
	} else {
		log.Info().Msg("MQTT disabled, using noop publisher")
		publisher = pubsub.NewNoopPublisher()
	}

	// Create and start the poll service
	svc := service.NewPollService(cfg, meter.NewBuilder(client), publisher, display.New(os.Stdout))
	if err := svc.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to start poll service")
		return 1
	}

	// Handle graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-signalChan
	log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	cancel()

	// Create context with timeout for graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop the poll service
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping poll service")
		return 1
	}

	log.Info().Msg("Poller stopped")
	return 0
}

// initLogger configures the global zerolog logger.
func initLogger(level string) {
	// Set up pretty console logging for development
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	// Parse the log level
	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		fmt.Printf("Invalid log level '%s', defaulting to 'info'\n", level)
		logLevel = zerolog.InfoLevel
	}

	// Configure global logger
	zerolog.SetGlobalLevel(logLevel)
	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}
