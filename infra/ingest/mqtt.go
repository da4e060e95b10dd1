package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/seoulbike/bikeflow/core/metrics"
	"github.com/seoulbike/bikeflow/core/model"
	"github.com/seoulbike/bikeflow/infra/logger"
)

// MQTTConfig parameterises the broker subscription.
type MQTTConfig struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Topic    string `json:"topic"`
	QoS      byte   `json:"qos"`
}

// SetDefaults applies sane defaults.
func (c *MQTTConfig) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "bikeflow-ingest"
	}
	if c.Topic == "" {
		c.Topic = "bikeflow/stations/status"
	}
}

// mqttClient is the subset of the paho client the source needs. Tests swap
// newMQTTClient for a stub.
type mqttClient interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) mqttClient {
	return paho.NewClient(opts)
}

// MQTTSource subscribes to a station status topic. Each message carries a
// JSON array of raw station records representing one poll cycle.
type MQTTSource struct {
	cfg   MQTTConfig
	store Appender
	sink  metrics.Sink
	cli   mqttClient
	log   logger.Logger
	nowFn func() time.Time
}

// NewMQTTSource builds the subscriber without connecting yet.
func NewMQTTSource(cfg MQTTConfig, store Appender, sink metrics.Sink) (*MQTTSource, error) {
	cfg.SetDefaults()
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt ingest requires a broker address")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true)
	return &MQTTSource{
		cfg:   cfg,
		store: store,
		sink:  sink,
		cli:   newMQTTClient(opts),
		log:   logger.New("ingest-mqtt"),
		nowFn: time.Now,
	}, nil
}

// Start connects, subscribes and blocks until the context is cancelled.
func (s *MQTTSource) Start(ctx context.Context) error {
	if token := s.cli.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	handler := func(_ paho.Client, msg paho.Message) {
		s.handle(ctx, msg.Payload())
	}
	if token := s.cli.Subscribe(s.cfg.Topic, s.cfg.QoS, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", s.cfg.Topic, token.Error())
	}
	s.log.Infof("subscribed to %s", s.cfg.Topic)
	<-ctx.Done()
	s.cli.Disconnect(250)
	return nil
}

func (s *MQTTSource) handle(ctx context.Context, payload []byte) {
	var raws []model.RawStationRecord
	if err := json.Unmarshal(payload, &raws); err != nil {
		s.log.Warnf("discarding malformed status message: %v", err)
		return
	}
	now := s.nowFn()
	obs := make([]model.StationObservation, 0, len(raws))
	for _, raw := range raws {
		obs = append(obs, model.ObservationFromRaw(raw, now))
	}
	if err := s.store.AppendBatch(ctx, obs); err != nil {
		s.log.Errorf("append batch: %v", err)
		return
	}
	if err := s.sink.RecordIngest(metrics.IngestResult{Source: "mqtt", Stations: len(obs), Time: now}); err != nil {
		s.log.Warnf("record ingest: %v", err)
	}
}
