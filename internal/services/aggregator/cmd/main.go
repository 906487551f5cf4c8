package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeonardoBeccarini/kelpcoins/internal/config"
	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/aggregator"
	"github.com/LeonardoBeccarini/kelpcoins/pkg/broker"
)

func main() {
	cfg, err := config.Load()
	if err := log.Init(cfg.Debug); err != nil {
		panic(err)
	}
	defer log.Sync()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clientID := "dataAggregator1"
	if v := os.Getenv("MQTT_CLIENT_ID"); v != "" {
		clientID = v
	}
	client, err := broker.Connect(ctx, broker.Config{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.User,
		Password: cfg.MQTT.Password,
		ClientID: clientID,
	})
	if err != nil {
		log.Fatalf("Failed to connect to MQTT broker: %v", err)
	}

	interval := time.Minute
	if v, err := time.ParseDuration(os.Getenv("AGGREGATION_INTERVAL")); err == nil && v > 0 {
		interval = v
	}

	// nil handler: viene iniettato da Start
	consumer := broker.NewConsumer(client, nil, cfg.MQTT.SensorTopic+"/#")
	publishers := func(topic string) broker.IPublisher { return broker.NewPublisher(client, topic) }

	svc := aggregator.NewDataAggregatorService(consumer, publishers, cfg.MQTT.AggregatedTopic, interval)

	log.Infow("data aggregator running", "interval", interval)
	svc.Start(ctx)
}
