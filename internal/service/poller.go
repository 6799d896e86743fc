// Package service provides implementation of the core polling loop.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/resident-x/go-vmeter/internal/api"
	"github.com/resident-x/go-vmeter/internal/config"
	"github.com/resident-x/go-vmeter/internal/display"
	"github.com/resident-x/go-vmeter/internal/domain"
	"github.com/resident-x/go-vmeter/internal/meter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PollService drives the fixed-interval poll cycle: read a snapshot from the
// meter, keep it as the latest known state, and hand it to the display and
// the publisher. It also serves as the snapshot source for the HTTP API.
type PollService struct {
	config    *config.Config
	builder   *meter.Builder
	publisher domain.MessagePublisher
	display   *display.Writer
	apiServer *api.Server
	mu        sync.RWMutex
	latest    *domain.Snapshot
	done      chan struct{}
	wg        sync.WaitGroup
	logger    zerolog.Logger
	startTime time.Time
}

// NewPollService creates a new poll service instance.
func NewPollService(cfg *config.Config, builder *meter.Builder,
	publisher domain.MessagePublisher, disp *display.Writer) *PollService {
	// Create logger with component context.
	logger := log.With().Str("component", "poller").Logger()

	svc := &PollService{
		config:    cfg,
		builder:   builder,
		publisher: publisher,
		display:   disp,
		done:      make(chan struct{}),
		logger:    logger,
	}

	// Initialize HTTP API server if enabled.
	if cfg.API.Enabled {
		svc.apiServer = api.NewServer(cfg, svc)
	}

	return svc
}

// LatestSnapshot returns the most recent complete snapshot, if any poll cycle
// has succeeded since startup.
func (s *PollService) LatestSnapshot() (*domain.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, false
	}
	return s.latest, true
}

// Start begins the poll loop and the HTTP API server.
func (s *PollService) Start(ctx context.Context) error {
	// Record start time.
	s.startTime = time.Now()

	// Start HTTP API server if enabled.
	if s.apiServer != nil {
		if err := s.apiServer.Start(ctx); err != nil {
			return err
		}
	}

	s.logger.Info().
		Str("meter", s.config.MeterURL()).
		Dur("interval", s.config.PollInterval()).
		Msg("Poll loop started")

	s.wg.Add(1)
	go s.runLoop(ctx)

	return nil
}

// Stop gracefully shuts down the poll loop and all attached components.
func (s *PollService) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping poll service")

	// Signal shutdown and wait for the loop to finish its cycle.
	close(s.done)
	s.wg.Wait()

	// Stop API server
	if s.apiServer != nil {
		if err := s.apiServer.Stop(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Failed to stop API server")
		}
	}

	// Close message publisher
	if err := s.publisher.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to close message publisher")
	}

	return nil
}

// runLoop executes poll cycles at the configured interval. The first cycle
// runs immediately so the display and API have data without waiting a full
// interval.
func (s *PollService) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval())
	defer ticker.Stop()

	s.pollOnce(ctx)

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

// pollOnce runs a single poll cycle. A cycle where even the basic registers
// could not be read is reported and dropped; the loop itself never stops on
// read failures.
func (s *PollService) pollOnce(ctx context.Context) {
	snap := s.builder.ReadAll(ctx)

	// Total active power is the canary register: if it cannot be read from
	// either register space, the meter is effectively unreachable.
	if !snap.Get(domain.FieldTotalPower).Valid {
		s.logger.Warn().
			Str("meter", s.config.MeterURL()).
			Msg("Basic registers unreadable, skipping cycle")
		if s.config.Display.Enabled && s.display != nil {
			s.display.ShowReadFailure()
		}
		return
	}

	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()

	if s.config.Display.Enabled && s.display != nil {
		s.display.Show(snap)
	}

	if err := s.publisher.Publish(ctx, s.config.MQTT.Topic, snap); err != nil {
		s.logger.Error().
			Str("topic", s.config.MQTT.Topic).
			Err(err).
			Msg("Failed to publish snapshot")
	}
}
