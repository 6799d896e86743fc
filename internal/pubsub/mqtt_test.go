package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/resident-x/go-vmeter/internal/config"
	"github.com/resident-x/go-vmeter/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeToken is an already-completed paho token.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakeClient records published messages.
type fakeClient struct {
	published []struct {
		topic    string
		retained bool
		payload  []byte
	}
	publishErr    error
	disconnected  bool
	connectCalled bool
}

func (c *fakeClient) Connect() mqtt.Token {
	c.connectCalled = true
	return &fakeToken{}
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, struct {
		topic    string
		retained bool
		payload  []byte
	}{topic, retained, payload.([]byte)})
	return &fakeToken{err: c.publishErr}
}

func (c *fakeClient) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token { return &fakeToken{} }
func (c *fakeClient) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{}
}
func (c *fakeClient) Unsubscribe(...string) mqtt.Token           { return &fakeToken{} }
func (c *fakeClient) AddRoute(string, mqtt.MessageHandler)       {}
func (c *fakeClient) IsConnected() bool                          { return true }
func (c *fakeClient) IsConnectionOpen() bool                     { return true }
func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader    { return mqtt.ClientOptionsReader{} }

func mqttConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.MQTT.Enabled = true
	cfg.MQTT.Topic = "test/meter"
	return cfg
}

func TestNoopPublisher(t *testing.T) {
	publisher := NewNoopPublisher()
	ctx := context.Background()

	assert.NoError(t, publisher.Connect(ctx))
	assert.NoError(t, publisher.Publish(ctx, "test/topic", map[string]interface{}{"test": "data"}))
	assert.NoError(t, publisher.Close())
}

func TestMQTTPublisher_Connect_Disabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MQTT.Enabled = false

	client := &fakeClient{}
	publisher := NewMQTTPublisherWithClient(cfg, client)

	assert.NoError(t, publisher.Connect(context.Background()))
	assert.False(t, publisher.connected)
	assert.False(t, client.connectCalled)
}

func TestMQTTPublisher_Publish_NotConnected(t *testing.T) {
	client := &fakeClient{}
	publisher := NewMQTTPublisherWithClient(mqttConfig(), client)

	// Not connected: publish is a silent no-op, not an error.
	err := publisher.Publish(context.Background(), "test/meter", map[string]interface{}{"x": 1})
	assert.NoError(t, err)
	assert.Empty(t, client.published)
}

func TestMQTTPublisher_PublishSnapshot(t *testing.T) {
	client := &fakeClient{}
	publisher := NewMQTTPublisherWithClient(mqttConfig(), client)
	require.NoError(t, publisher.Connect(context.Background()))

	snap := domain.NewSnapshot()
	snap.Set(domain.FieldTotalPower, domain.NewReading(-500))
	snap.Set(domain.FieldTotalPowerFactor, domain.Absent())

	require.NoError(t, publisher.Publish(context.Background(), "test/meter", snap))
	require.Len(t, client.published, 1)
	assert.Equal(t, "test/meter", client.published[0].topic)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(client.published[0].payload, &payload))
	assert.Equal(t, -500.0, payload[domain.FieldTotalPower])
	assert.Contains(t, payload, domain.FieldTotalPowerFactor)
	assert.Nil(t, payload[domain.FieldTotalPowerFactor])
}

func TestMQTTPublisher_PublishError(t *testing.T) {
	client := &fakeClient{publishErr: assert.AnError}
	publisher := NewMQTTPublisherWithClient(mqttConfig(), client)
	require.NoError(t, publisher.Connect(context.Background()))

	err := publisher.Publish(context.Background(), "test/meter", map[string]interface{}{"x": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish")
}

func TestMQTTPublisher_ConnectPublishesDiscovery(t *testing.T) {
	cfg := mqttConfig()
	cfg.MQTT.HomeAssistantAutoDiscovery.Enabled = true

	client := &fakeClient{}
	publisher := NewMQTTPublisherWithClient(cfg, client)
	require.NoError(t, publisher.Connect(context.Background()))

	// One discovery message per sensor, published retained.
	require.NotEmpty(t, client.published)
	for _, msg := range client.published {
		assert.Contains(t, msg.topic, "homeassistant/sensor/vm3p75ct/")
		assert.True(t, msg.retained)

		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(msg.payload, &payload))
		assert.Equal(t, "test/meter", payload["state_topic"])
	}
}

func TestMQTTPublisher_Close(t *testing.T) {
	client := &fakeClient{}
	publisher := NewMQTTPublisherWithClient(mqttConfig(), client)
	require.NoError(t, publisher.Connect(context.Background()))

	assert.NoError(t, publisher.Close())
	assert.True(t, client.disconnected)
	assert.False(t, publisher.connected)
}
