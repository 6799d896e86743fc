package transport

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/resident-x/go-vmeter/internal/meter"
	"github.com/resident-x/go-vmeter/internal/metersim"
	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startSimServer runs an emulated meter on a random local TCP port. The TCP
// codec is identical to the UDP one the real meter uses.
func startSimServer(t *testing.T, handler *metersim.Handler) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	url := fmt.Sprintf("tcp://127.0.0.1:%d", port)
	server, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        url,
		Timeout:    5 * time.Second,
		MaxClients: 2,
	}, handler)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		_ = server.Stop()
	})

	return url
}

func TestClientRequiresURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestClientReadsBothRegisterSpaces(t *testing.T) {
	handler := metersim.NewHandler(1)
	handler.SetUint16(0x3032, 5000)
	url := startSimServer(t, handler)

	client, err := NewClient(Config{URL: url, UnitID: 1, Timeout: 2 * time.Second})
	require.NoError(t, err)
	require.NoError(t, client.Open())
	defer client.Close()

	input, err := client.ReadRegisters(0x3032, 1, meter.InputRegisters)
	require.NoError(t, err)
	assert.Equal(t, []uint16{5000}, input)

	holding, err := client.ReadRegisters(0x3032, 1, meter.HoldingRegisters)
	require.NoError(t, err)
	assert.Equal(t, input, holding)
}

func TestClientExceptionDoesNotForceReconnect(t *testing.T) {
	handler := metersim.NewHandler(1)
	handler.SetUint16(0x3032, 5000)
	url := startSimServer(t, handler)

	client, err := NewClient(Config{URL: url, UnitID: 1, Timeout: 2 * time.Second})
	require.NoError(t, err)
	require.NoError(t, client.Open())
	defer client.Close()

	_, err = client.ReadRegisters(0x4000, 1, meter.InputRegisters)
	require.Error(t, err)
	assert.False(t, client.shouldReconnect)

	// The connection stays usable.
	words, err := client.ReadRegisters(0x3032, 1, meter.InputRegisters)
	require.NoError(t, err)
	assert.Equal(t, []uint16{5000}, words)
}

func TestClientUnreachableEndpoint(t *testing.T) {
	client, err := NewClient(Config{
		URL:     "tcp://127.0.0.1:1", // nothing listens here
		UnitID:  1,
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	require.Error(t, client.Open())

	// Reads surface the connect failure as an error, not a panic.
	_, err = client.ReadRegisters(0x3032, 1, meter.InputRegisters)
	require.Error(t, err)

	assert.NoError(t, client.Close())
}

func TestClientEndToEndThroughBuilder(t *testing.T) {
	handler := metersim.NewHandler(1)
	handler.Seed(map[string]float64{
		"P_total_W":           -500,
		"E_total_forward_kWh": 5000.00,
		"freq_Hz":             50.00,
	})
	url := startSimServer(t, handler)

	client, err := NewClient(Config{URL: url, UnitID: 1, Timeout: 2 * time.Second})
	require.NoError(t, err)
	require.NoError(t, client.Open())
	defer client.Close()

	words, err := client.ReadRegisters(0x3080, 2, meter.InputRegisters)
	require.NoError(t, err)
	raw, err := meter.DecodeInt32(words, true)
	require.NoError(t, err)
	assert.Equal(t, int64(-500), raw)
}
