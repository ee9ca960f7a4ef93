package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"gopkg.in/yaml.v3"
)

const defaultMQTTTimeout = 10 * time.Second

// DefaultMQTTQoS is at-least-once delivery, used when qos is not configured.
const DefaultMQTTQoS byte = 1

// ErrMQTTTimeout is returned when the broker does not acknowledge in time.
var ErrMQTTTimeout = errors.New("mqtt: timeout")

// Publisher is the subset of the paho client used by the MQTT sink.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos" validate:"lte=2"`
}

// UnmarshalYAML presets QoS to DefaultMQTTQoS so only an explicit qos key
// changes it.
func (c *MQTTConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain MQTTConfig
	p := plain{QoS: DefaultMQTTQoS}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = MQTTConfig(p)
	return nil
}

// MQTT publishes each notification to <topic>/<city>/<source>.
type MQTT struct {
	client  Publisher
	topic   string
	qos     byte
	timeout time.Duration
}

// DialMQTT connects to the broker and returns the sink.
func DialMQTT(cfg MQTTConfig) (*MQTT, error) {
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(defaultMQTTTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultMQTTTimeout) {
		return nil, fmt.Errorf("mqtt: connect %s: %w", cfg.Broker, ErrMQTTTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", cfg.Broker, err)
	}
	return NewMQTT(client, cfg.Topic, cfg.QoS), nil
}

// NewMQTT wraps an existing publisher. An empty topic defaults to "radarlapse".
func NewMQTT(client Publisher, topic string, qos byte) *MQTT {
	if topic == "" {
		topic = "radarlapse"
	}
	return &MQTT{client: client, topic: strings.TrimSuffix(topic, "/"), qos: qos, timeout: defaultMQTTTimeout}
}

// Topic returns the topic a notification is published to.
func (m *MQTT) Topic(n Notification) string {
	return m.topic + "/" + topicLevel(n.Entry.City) + "/" + topicLevel(n.Entry.Source)
}

func (m *MQTT) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(envelope{Type: "artifact", Data: n})
	if err != nil {
		return fmt.Errorf("mqtt: marshal: %w", err)
	}
	token := m.client.Publish(m.Topic(n), m.qos, false, payload)

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return ErrMQTTTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}

// topicLevel strips MQTT wildcard and separator characters.
func topicLevel(s string) string {
	return strings.NewReplacer("/", "-", "+", "_", "#", "_", " ", "_").Replace(s)
}
