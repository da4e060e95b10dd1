package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/seoulbike/bikeflow/core/model"
)

func TestMQTTSourceRequiresBroker(t *testing.T) {
	if _, err := NewMQTTSource(MQTTConfig{}, &captureAppender{}, nil); err == nil {
		t.Fatalf("expected error without broker address")
	}
}

func TestMQTTConfigDefaults(t *testing.T) {
	var cfg MQTTConfig
	cfg.SetDefaults()
	if cfg.ClientID != "bikeflow-ingest" {
		t.Fatalf("client id = %q", cfg.ClientID)
	}
	if cfg.Topic != "bikeflow/stations/status" {
		t.Fatalf("topic = %q", cfg.Topic)
	}
}

func TestMQTTSourceHandle(t *testing.T) {
	store := &captureAppender{}
	src, err := NewMQTTSource(MQTTConfig{Broker: "tcp://localhost:1883"}, store, nil)
	if err != nil {
		t.Fatalf("NewMQTTSource: %v", err)
	}
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	src.nowFn = func() time.Time { return now }

	payload := []byte(`[{"stationId": "ST-9", "stationName": "Depot", "parkingBikeTotCnt": "4", "rackTotCnt": "10", "stationLatitude": "37.55", "stationLongitude": "127.01"}]`)
	src.handle(context.Background(), payload)

	if len(store.batches) != 1 || len(store.batches[0]) != 1 {
		t.Fatalf("batches = %+v", store.batches)
	}
	obs := store.batches[0][0]
	want := model.StationObservation{
		StationID:   "ST-9",
		StationName: "Depot",
		BikeCount:   4,
		Capacity:    10,
		Lat:         37.55,
		Lng:         127.01,
		CollectedAt: now,
	}
	if obs != want {
		t.Fatalf("observation = %+v, want %+v", obs, want)
	}
}

func TestMQTTSourceHandleMalformed(t *testing.T) {
	store := &captureAppender{}
	src, err := NewMQTTSource(MQTTConfig{Broker: "tcp://localhost:1883"}, store, nil)
	if err != nil {
		t.Fatalf("NewMQTTSource: %v", err)
	}
	src.handle(context.Background(), []byte("not json"))
	if len(store.batches) != 0 {
		t.Fatalf("malformed message was appended: %+v", store.batches)
	}
}

func TestNewSourceModeSelection(t *testing.T) {
	store := &captureAppender{}
	src, err := NewSource(Config{Mode: "http"}, store, nil)
	if err != nil {
		t.Fatalf("NewSource(http): %v", err)
	}
	if _, ok := src.(*HTTPSource); !ok {
		t.Fatalf("mode http produced %T", src)
	}

	src, err = NewSource(Config{Mode: "mqtt", MQTT: MQTTConfig{Broker: "tcp://localhost:1883"}}, store, nil)
	if err != nil {
		t.Fatalf("NewSource(mqtt): %v", err)
	}
	if _, ok := src.(*MQTTSource); !ok {
		t.Fatalf("mode mqtt produced %T", src)
	}

	if _, err := NewSource(Config{Mode: "carrier-pigeon"}, store, nil); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
