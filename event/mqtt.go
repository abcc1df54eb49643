package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const (
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 2 * time.Second
)

// MQTT mirrors presence events to a broker as <topic>/login and
// <topic>/logout messages carrying the same payload as the stdout records.
type MQTT struct {
	Client mqtt.Client
	Topic  string
}

// DialMQTT connects to broker ("host:port" or a full URL). The client keeps
// reconnecting in the background after the initial connection.
func DialMQTT(broker, clientID, topic string) (*MQTT, error) {
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(c mqtt.Client) {
		log.WithField("broker", broker).Infof("MQTT connection established")
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.WithField("broker", broker).Warnf("MQTT connection lost, reconnecting: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		// Connect keeps retrying in the background.
		log.WithField("broker", broker).Warnf("MQTT connection not established within %v", mqttConnectTimeout)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	return &MQTT{Client: client, Topic: strings.TrimSuffix(topic, "/")}, nil
}

func (m *MQTT) Login(user int, confidence *float64) error {
	r := loginRecord{User: user}
	if confidence != nil {
		c := FormatConfidence(*confidence)
		r.Confidence = &c
	}
	return m.publish("login", r)
}

func (m *MQTT) Logout(user int) error {
	return m.publish("logout", logoutRecord{User: user})
}

func (m *MQTT) publish(kind string, v interface{}) error {
	if !m.Client.IsConnectionOpen() {
		return fmt.Errorf("mqtt not connected")
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	topic := m.Topic + "/" + kind
	token := m.Client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("mqtt publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s failed: %w", topic, err)
	}
	log.Debugf("Published %s to %s", payload, topic)
	return nil
}

// Close disconnects, allowing in-flight messages a short grace period.
func (m *MQTT) Close() {
	if m.Client.IsConnected() {
		m.Client.Disconnect(250)
	}
}
