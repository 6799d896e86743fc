// Package main provides an emulated VM-3P75CT meter for development without
// hardware. It serves the poller's register map over Modbus and drifts the
// operating point a little every second so live data looks alive.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/resident-x/go-vmeter/internal/domain"
	"github.com/resident-x/go-vmeter/internal/metersim"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/simonvetter/modbus"
)

// phaseState is the simulated operating point of one phase.
type phaseState struct {
	voltage float64 // V
	current float64 // A
	pf      float64 // signed, negative means export
	fwdKWh  float64
	revKWh  float64
}

// simState drifts a plausible three-phase household load.
type simState struct {
	rng    *rand.Rand
	phases map[string]*phaseState
	fwdKWh float64
	revKWh float64
}

func newSimState() *simState {
	s := &simState{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		phases: make(map[string]*phaseState),
	}
	for i, phase := range domain.Phases {
		s.phases[phase] = &phaseState{
			voltage: 230.0,
			current: 2.0 + float64(i),
			pf:      0.95,
			fwdKWh:  100.0 * float64(i+1),
		}
	}
	return s
}

// power returns the signed active power of one phase.
func (p *phaseState) power() float64 {
	return p.voltage * p.current * p.pf
}

// step advances the operating point by dt and writes it into the register bank.
func (s *simState) step(handler *metersim.Handler, dt time.Duration) {
	hours := dt.Hours()
	values := map[string]float64{
		domain.FieldFrequency:  50.0 + s.rng.Float64()*0.04 - 0.02,
		domain.FieldPENVoltage: 0.4 + s.rng.Float64()*0.2,
	}

	var totalPower float64
	for _, phase := range domain.Phases {
		p := s.phases[phase]
		p.voltage += s.rng.Float64()*0.6 - 0.3
		p.current += s.rng.Float64()*0.2 - 0.1
		if p.current < 0.1 {
			p.current = 0.1
		}
		// Flip direction once in a while so exported power shows up too.
		if s.rng.Intn(120) == 0 {
			p.pf = -p.pf
		}

		power := p.power()
		totalPower += power
		if power >= 0 {
			p.fwdKWh += power * hours / 1000.0
			s.fwdKWh += power * hours / 1000.0
		} else {
			p.revKWh += -power * hours / 1000.0
			s.revKWh += -power * hours / 1000.0
		}

		values[domain.FieldVoltage(phase)] = p.voltage
		values[domain.FieldCurrent(phase)] = p.current
		values[domain.FieldPower(phase)] = power
		values[domain.FieldEnergyForward(phase)] = p.fwdKWh
		values[domain.FieldEnergyReverse(phase)] = p.revKWh
	}

	values[domain.FieldTotalPower] = totalPower
	values[domain.FieldTotalEnergyForward] = s.fwdKWh
	values[domain.FieldTotalEnergyReverse] = s.revKWh

	handler.Seed(values)
}

func main() {
	os.Exit(run())
}

func run() int {
	listen := flag.String("listen", "tcp://0.0.0.0:1502", "Endpoint to serve Modbus on")
	unit := flag.Uint("unit", 1, "Modbus unit id to answer as")
	interval := flag.Duration("interval", time.Second, "Operating point update interval")
	flag.Parse()

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()

	handler := metersim.NewHandler(uint8(*unit))
	sim := newSimState()
	sim.step(handler, 0)

	server, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        *listen,
		Timeout:    30 * time.Second,
		MaxClients: 5,
	}, handler)
	if err != nil {
		fmt.Printf("Failed to create modbus server: %v\n", err)
		return 1
	}

	if err := server.Start(); err != nil {
		log.Error().Err(err).Str("listen", *listen).Msg("Failed to start modbus server")
		return 1
	}

	log.Info().
		Str("listen", *listen).
		Uint("unit", *unit).
		Dur("interval", *interval).
		Msg("Meter simulator started")

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				sim.step(handler, *interval)
			}
		}
	}()

	// Wait for shutdown signal
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signalChan
	log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	close(done)
	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("Error stopping modbus server")
		return 1
	}

	log.Info().Msg("Meter simulator stopped")
	return 0
}
