package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeonardoBeccarini/kelpcoins/internal/config"
	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
	sensorSimulator "github.com/LeonardoBeccarini/kelpcoins/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/kelpcoins/pkg/broker"
)

func main() {
	buoyID := flag.String("buoy-id", "buoy1", "unique buoy identifier")
	siteID := flag.String("site-id", "casco-bay", "farm site identifier")
	clientID := flag.String("client-id", "buoyPublisher1", "MQTT client ID")
	interval := flag.Duration("interval", 10*time.Second, "publish interval")
	lat := flag.Float64("lat", 43.6591, "latitude")
	lon := flag.Float64("lon", -70.2568, "longitude")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random walk seed")
	telemetryURL := flag.String("telemetry-url", "", "telemetry base URL used to resume the last reading")
	flag.Parse()

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

	client, err := broker.Connect(ctx, broker.Config{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.User,
		Password: cfg.MQTT.Password,
		ClientID: *clientID,
	})
	if err != nil {
		log.Fatalf("mqtt connect failed: %v", err)
	}

	topic := broker.ExpandTopic(cfg.MQTT.SensorTopic+"/{buoy}", map[string]string{"buoy": *buoyID})
	publisher := broker.NewPublisher(client, topic)

	buoy := entities.Buoy{ID: *buoyID, SiteID: *siteID, Latitude: *lat, Longitude: *lon}
	generator := sensorSimulator.NewDataGenerator(*seed)
	generator.SeedFromTelemetry(ctx, *telemetryURL, buoy.ID)

	log.Infow("buoy simulator running", "buoy", buoy.ID, "topic", topic, "interval", *interval)
	sensorSimulator.NewBuoySimulator(publisher, generator, &buoy).Start(ctx, *interval)
}
