// Package transport provides the Modbus connection to the meter.
package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/resident-x/go-vmeter/internal/meter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/simonvetter/modbus"
)

// Config holds the transport endpoint settings.
type Config struct {
	// URL is the endpoint in the underlying library's notation, e.g.
	// "udp://192.168.0.155:502". The VM-3P75CT speaks Modbus TCP framing
	// over UDP; tcp:// uses the same codec and is handy for emulated meters.
	URL string

	// UnitID is the Modbus unit (device) identifier, typically 1 for
	// Ethernet-attached Victron meters.
	UnitID uint8

	// Timeout bounds each register read so a silent meter cannot stall the
	// polling loop.
	Timeout time.Duration
}

// Client wraps the underlying open source modbus library behind the register
// reader interface the snapshot builder consumes. It is not safe for
// concurrent use; the polling loop is its only caller.
type Client struct {
	cfg Config

	subClient       *modbus.ModbusClient // the raw client of the underlying modbus library
	shouldReconnect bool                 // when true, the subClient is 'dirty' and will be re-created on the next read
	logger          zerolog.Logger
}

// NewClient creates a transport client. The connection is established by
// Open, or lazily on the first read.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("transport: endpoint URL required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Client{
		cfg:             cfg,
		shouldReconnect: true,
		logger:          log.With().Str("component", "transport").Str("url", cfg.URL).Logger(),
	}, nil
}

// Open establishes the connection to the meter.
func (c *Client) Open() error {
	return c.reconnectIfNecessary()
}

// createSubClient creates the modbus library client and connects to the meter.
func (c *Client) createSubClient() error {
	subClient, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     c.cfg.URL,
		Timeout: c.cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("create modbus client: %w", err)
	}

	if err := subClient.SetUnitId(c.cfg.UnitID); err != nil {
		return fmt.Errorf("set unit id: %w", err)
	}

	if err := subClient.Open(); err != nil {
		return fmt.Errorf("open modbus client: %w", err)
	}

	c.subClient = subClient
	return nil
}

// reconnectIfNecessary will close the old connection and reconnect if there
// have been problems with the connection.
func (c *Client) reconnectIfNecessary() error {
	if !c.shouldReconnect {
		return nil
	}

	// Ignore errors from Close() as we will continue with the reconnect
	// anyway and start a new connection.
	if c.subClient != nil {
		c.subClient.Close()
	}

	if err := c.createSubClient(); err != nil {
		return err
	}

	c.shouldReconnect = false
	c.logger.Info().Msg("Connected modbus client")
	return nil
}

// ReadRegisters implements meter.RegisterReader: it reads count consecutive
// 16-bit registers starting at addr from the given register space.
func (c *Client) ReadRegisters(addr, count uint16, space meter.RegisterSpace) ([]uint16, error) {
	if err := c.reconnectIfNecessary(); err != nil {
		return nil, fmt.Errorf("reconnect: %w", err)
	}

	regType := modbus.INPUT_REGISTER
	if space == meter.HoldingRegisters {
		regType = modbus.HOLDING_REGISTER
	}

	words, err := c.subClient.ReadRegisters(addr, count, regType)
	if err != nil {
		// A modbus exception means the device is alive and answering; only
		// transport-level failures force a reconnect.
		if !isProtocolError(err) {
			c.shouldReconnect = true
		}
		return nil, fmt.Errorf("read %d registers at 0x%04X (%s): %w", count, addr, space, err)
	}
	return words, nil
}

// isProtocolError reports whether err is a modbus exception response rather
// than a connection problem.
func isProtocolError(err error) bool {
	return errors.Is(err, modbus.ErrIllegalFunction) ||
		errors.Is(err, modbus.ErrIllegalDataAddress) ||
		errors.Is(err, modbus.ErrIllegalDataValue) ||
		errors.Is(err, modbus.ErrServerDeviceFailure)
}

// Close closes the connection to the meter.
func (c *Client) Close() error {
	if c.subClient == nil {
		return nil
	}
	return c.subClient.Close()
}
