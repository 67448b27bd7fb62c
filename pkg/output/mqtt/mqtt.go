package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/ericogr/as7341-to-mqtt/pkg/config"
	"github.com/ericogr/as7341-to-mqtt/pkg/output"
	"github.com/ericogr/as7341-to-mqtt/pkg/sensor"
)

const (
	// defaults
	DefaultServer   = "tcp://localhost:1883"
	DefaultClientID = "as7341-client"
	DefaultTopic    = "as7341"
	sensorTopicFmt  = "%s/sensor/%s"
	discoveryFmt    = "%s/sensor/%s/%s/config"
	// discovery payload keys/values
	keyName                = "name"
	keyStateTopic          = "state_topic"
	keyStateClass          = "state_class"
	keyValueTemplate       = "value_template"
	keyJSONAttributesTopic = "json_attributes_topic"
	keyUniqueID            = "unique_id"
	keyDevice              = "device"
	stateClassMeasurement  = "measurement"
	valueTemplate          = "{{ value_json.value }}"
	disconnectQuiesceMs    = 250
)

type MQTTOutput struct {
	client mqtt.Client
	topic  string
	retain bool
}

func NewMQTT(cfg config.MQTTConfig, inputs []config.InputConfig) (output.Output, error) {
	cfg = withDefaults(cfg)
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return newWithClient(client, cfg, inputs), nil
}

// newWithClient wraps a connected client and publishes Home Assistant
// discovery for every input if a discovery topic is configured.
func newWithClient(client mqtt.Client, cfg config.MQTTConfig, inputs []config.InputConfig) *MQTTOutput {
	cfg = withDefaults(cfg)
	m := &MQTTOutput{client: client, topic: cfg.Topic, retain: cfg.Retain}
	if cfg.DiscoveryTopic == "" {
		return m
	}
	for _, in := range inputs {
		dTopic := fmt.Sprintf(discoveryFmt, cfg.DiscoveryTopic, cfg.ClientID, in.Name)
		payload := discoveryPayload(cfg, in, m.stateTopic(in.Name))
		if err := m.publishJSON(dTopic, true, payload); err != nil {
			log.WithField("sensor", in.Name).WithError(err).Error("mqtt discovery publish failed")
		}
	}
	return m
}

func withDefaults(cfg config.MQTTConfig) config.MQTTConfig {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	cfg.Topic = strings.TrimSuffix(cfg.Topic, "/")
	return cfg
}

func (m *MQTTOutput) stateTopic(name string) string {
	return fmt.Sprintf(sensorTopicFmt, m.topic, name)
}

func (m *MQTTOutput) Publish(readings []sensor.Reading) error {
	for _, r := range readings {
		payload := map[string]interface{}{"value": r.Value}
		if r.Channel != "" {
			payload["channel"] = r.Channel
		}
		if err := m.publishJSON(m.stateTopic(r.Sensor), m.retain, payload); err != nil {
			return fmt.Errorf("mqtt publish %s: %w", r.Sensor, err)
		}
	}
	return nil
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(disconnectQuiesceMs)
	}
	return nil
}

// PublishRaw publishes a raw payload to the given topic. The caller can set the
// retain flag which is useful for discovery messages.
func (m *MQTTOutput) PublishRaw(topic string, payload []byte, retained bool) error {
	if m.client == nil {
		return fmt.Errorf("mqtt client not connected")
	}
	token := m.client.Publish(topic, 0, retained, payload)
	token.Wait()
	return token.Error()
}

// helper: discovery payload for one input
func discoveryPayload(cfg config.MQTTConfig, in config.InputConfig, stateTopic string) map[string]interface{} {
	uid := fmt.Sprintf("%s_%s", cfg.ClientID, in.Name)
	return map[string]interface{}{
		keyName:                in.Name,
		keyStateTopic:          stateTopic,
		keyStateClass:          stateClassMeasurement,
		keyValueTemplate:       valueTemplate,
		keyJSONAttributesTopic: stateTopic,
		keyUniqueID:            uid,
		keyDevice: map[string]interface{}{
			"identifiers": []string{cfg.ClientID},
			"name":        cfg.ClientID,
			"model":       "AS7341",
		},
	}
}

// helper: marshal and publish JSON payload
func (m *MQTTOutput) publishJSON(topic string, retained bool, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return m.PublishRaw(topic, b, retained)
}
