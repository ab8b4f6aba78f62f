package publisher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/jgoulah/gridexporter/internal/collector"
	"github.com/jgoulah/gridexporter/internal/config"
)

const publishTimeout = 10 * time.Second

// mqttPublisher is the subset of mqtt.Client the publisher uses
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher pushes collection results to an MQTT broker as retained messages
type Publisher struct {
	client      mqttPublisher
	conn        mqtt.Client
	topicPrefix string
	now         func() time.Time
	logger      *slog.Logger
}

// UsagePayload is the JSON body of a usage message
type UsagePayload struct {
	Service   string  `json:"service"`
	PremiseID string  `json:"premise_id"`
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
}

// New connects to the broker described by cfg
func New(cfg config.MQTTConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("MQTT publishing is not enabled in config")
	}
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID("gridexporter-" + uuid.NewString()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	p := newPublisher(client, cfg.TopicPrefix)
	p.conn = client
	return p, nil
}

func newPublisher(client mqttPublisher, topicPrefix string) *Publisher {
	if topicPrefix == "" {
		topicPrefix = config.DefaultTopicPrefix
	}
	return &Publisher{
		client:      client,
		topicPrefix: strings.TrimSuffix(topicPrefix, "/"),
		now:         time.Now,
		logger:      slog.Default().With("component", "publisher"),
	}
}

// UsageTopic returns the topic a premise/service reading is published on
func (p *Publisher) UsageTopic(premiseID, service string) string {
	return fmt.Sprintf("%s/%s/%s/usage", p.topicPrefix, premiseID, strings.ToLower(service))
}

// UpTopic returns the topic of the API health flag
func (p *Publisher) UpTopic() string {
	return p.topicPrefix + "/api_up"
}

// Publish sends every snapshot of res and the API health flag. It keeps
// going after a failed message and returns the first error.
func (p *Publisher) Publish(res collector.Result) error {
	timestamp := p.now().UTC().Format(time.RFC3339)
	var firstErr error

	for _, s := range res.Snapshots {
		body, err := json.Marshal(UsagePayload{
			Service:   string(s.Service),
			PremiseID: s.PremiseID,
			Value:     s.Value,
			Timestamp: timestamp,
		})
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}
		if err := p.send(p.UsageTopic(s.PremiseID, string(s.Service)), body); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	up := "0"
	if res.Up {
		up = "1"
	}
	if err := p.send(p.UpTopic(), []byte(up)); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

func (p *Publisher) send(topic string, payload []byte) error {
	token := p.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		p.logger.Warn("publisher: publish failed", "topic", topic, "err", err)
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	p.logger.Debug("publisher: published", "topic", topic, "bytes", len(payload))
	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.conn != nil && p.conn.IsConnected() {
		p.conn.Disconnect(250)
	}
}
