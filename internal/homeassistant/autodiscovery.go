// Package homeassistant provides MQTT auto-discovery support for Home Assistant integration.
package homeassistant

import (
	"fmt"
	"strings"

	"github.com/resident-x/go-vmeter/internal/domain"
)

// Config holds the Home Assistant auto-discovery configuration.
type Config struct {
	Enabled         bool
	DiscoveryPrefix string
	DeviceName      string
	DeviceID        string
	RetainDiscovery bool
}

// Sensor describes how one measurement field maps onto a Home Assistant
// sensor entity.
type Sensor struct {
	Name              string
	DeviceClass       string
	UnitOfMeasurement string
	StateClass        string
}

// DiscoveryMessage represents a Home Assistant MQTT discovery message.
type DiscoveryMessage struct {
	Name              string     `json:"name"`
	UniqueID          string     `json:"unique_id"`
	StateTopic        string     `json:"state_topic"`
	ValueTemplate     string     `json:"value_template"`
	DeviceClass       string     `json:"device_class,omitempty"`
	UnitOfMeasurement string     `json:"unit_of_measurement,omitempty"`
	StateClass        string     `json:"state_class,omitempty"`
	Device            DeviceInfo `json:"device"`
}

// DeviceInfo represents device information for Home Assistant.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
	SwVersion    string   `json:"sw_version,omitempty"`
}

// Sensors returns the sensor entity for every field the poller publishes.
// Unlike inverters with firmware-dependent layouts, the meter's field set is
// fixed, so this table is built in code rather than loaded from YAML.
func Sensors() map[string]Sensor {
	sensors := map[string]Sensor{
		domain.FieldTotalPower: {
			Name: "Total active power", DeviceClass: "power",
			UnitOfMeasurement: "W", StateClass: "measurement",
		},
		domain.FieldTotalEnergyForward: {
			Name: "Total energy forward", DeviceClass: "energy",
			UnitOfMeasurement: "kWh", StateClass: "total_increasing",
		},
		domain.FieldTotalEnergyReverse: {
			Name: "Total energy reverse", DeviceClass: "energy",
			UnitOfMeasurement: "kWh", StateClass: "total_increasing",
		},
		domain.FieldPENVoltage: {
			Name: "PEN voltage", DeviceClass: "voltage",
			UnitOfMeasurement: "V", StateClass: "measurement",
		},
		domain.FieldFrequency: {
			Name: "Frequency", DeviceClass: "frequency",
			UnitOfMeasurement: "Hz", StateClass: "measurement",
		},
		domain.FieldTotalPowerFactor: {
			Name: "Total power factor", DeviceClass: "power_factor",
			StateClass: "measurement",
		},
	}

	for _, phase := range domain.Phases {
		sensors[domain.FieldVoltage(phase)] = Sensor{
			Name: phase + " voltage", DeviceClass: "voltage",
			UnitOfMeasurement: "V", StateClass: "measurement",
		}
		sensors[domain.FieldCurrent(phase)] = Sensor{
			Name: phase + " current", DeviceClass: "current",
			UnitOfMeasurement: "A", StateClass: "measurement",
		}
		sensors[domain.FieldPower(phase)] = Sensor{
			Name: phase + " active power", DeviceClass: "power",
			UnitOfMeasurement: "W", StateClass: "measurement",
		}
		sensors[domain.FieldEnergyForward(phase)] = Sensor{
			Name: phase + " energy forward", DeviceClass: "energy",
			UnitOfMeasurement: "kWh", StateClass: "total_increasing",
		}
		sensors[domain.FieldEnergyReverse(phase)] = Sensor{
			Name: phase + " energy reverse", DeviceClass: "energy",
			UnitOfMeasurement: "kWh", StateClass: "total_increasing",
		}
		sensors[domain.FieldPowerFactor(phase)] = Sensor{
			Name: phase + " power factor", DeviceClass: "power_factor",
			StateClass: "measurement",
		}
	}

	return sensors
}

// AutoDiscovery handles Home Assistant MQTT auto-discovery.
type AutoDiscovery struct {
	config    Config
	baseTopic string
}

// New creates a new Home Assistant auto-discovery instance. The baseTopic is
// the state topic snapshots are published on.
func New(config Config, baseTopic string) *AutoDiscovery {
	return &AutoDiscovery{
		config:    config,
		baseTopic: baseTopic,
	}
}

// GenerateDiscoveryMessages generates the discovery message for every sensor,
// keyed by discovery topic. The meter's entity set never changes at runtime,
// so the messages can be published once after connecting.
func (ad *AutoDiscovery) GenerateDiscoveryMessages() map[string]DiscoveryMessage {
	deviceInfo := DeviceInfo{
		Identifiers:  []string{ad.nodeID()},
		Name:         ad.config.DeviceName,
		Manufacturer: "Victron Energy",
		Model:        "VM-3P75CT",
		SwVersion:    "go-vmeter",
	}

	messages := make(map[string]DiscoveryMessage)
	for fieldName, sensor := range Sensors() {
		messages[ad.getDiscoveryTopic(fieldName)] = DiscoveryMessage{
			Name:              sensor.Name,
			UniqueID:          fmt.Sprintf("%s_%s", ad.nodeID(), fieldName),
			StateTopic:        ad.baseTopic,
			ValueTemplate:     fmt.Sprintf("{{ value_json.%s }}", fieldName),
			DeviceClass:       sensor.DeviceClass,
			UnitOfMeasurement: sensor.UnitOfMeasurement,
			StateClass:        sensor.StateClass,
			Device:            deviceInfo,
		}
	}
	return messages
}

// nodeID returns the device identifier in topic-safe form.
func (ad *AutoDiscovery) nodeID() string {
	id := strings.ReplaceAll(ad.config.DeviceID, " ", "_")
	return strings.ToLower(id)
}

// getDiscoveryTopic generates the MQTT discovery topic for a sensor.
func (ad *AutoDiscovery) getDiscoveryTopic(fieldName string) string {
	// Home Assistant discovery topic format:
	// <discovery_prefix>/sensor/<node_id>/<object_id>/config
	objectID := strings.ToLower(fmt.Sprintf("%s_%s", ad.nodeID(), fieldName))
	return fmt.Sprintf("%s/sensor/%s/%s/config", ad.config.DiscoveryPrefix, ad.nodeID(), objectID)
}

// CleanupDiscoveryMessages generates cleanup (empty) messages to remove all
// sensors from Home Assistant.
func (ad *AutoDiscovery) CleanupDiscoveryMessages() map[string]string {
	messages := make(map[string]string)
	for fieldName := range Sensors() {
		messages[ad.getDiscoveryTopic(fieldName)] = "" // Empty payload removes the entity
	}
	return messages
}
