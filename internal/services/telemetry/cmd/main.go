package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeonardoBeccarini/kelpcoins/internal/config"
	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
	"github.com/LeonardoBeccarini/kelpcoins/internal/metrics"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/telemetry"
	"github.com/LeonardoBeccarini/kelpcoins/pkg/broker"
	"github.com/LeonardoBeccarini/kelpcoins/pkg/dedup"
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

	// --- MQTT ---
	clientID := cfg.MQTT.ClientID
	if v := os.Getenv("MQTT_CLIENT_ID"); v == "" {
		clientID = "telemetry-service"
	}
	mqClient, err := broker.Connect(ctx, broker.Config{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.User,
		Password: cfg.MQTT.Password,
		ClientID: clientID,
	})
	if err != nil {
		log.Fatalf("mqtt connect failed: %v", err)
	}

	// --- InfluxDB (opzionale) ---
	archive := telemetry.NewArchive(cfg.Influx, 500, time.Second)
	if archive == nil {
		log.Warnw("influx disabled, readings kept in memory only")
	}
	defer archive.Close()

	m := metrics.New()
	feed := telemetry.NewFeed(0)
	ingestor := telemetry.NewIngestor(feed, archive, dedup.New(10*time.Minute, 20000), m)
	consumer := broker.NewConsumer(mqClient, nil,
		cfg.MQTT.SensorTopic+"/#",
		cfg.MQTT.AggregatedTopic+"/#",
		"event/harvest/#",
	)
	svc := telemetry.NewService(consumer, ingestor, feed, archive)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           telemetry.NewRouter(svc, mqClient, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("telemetry HTTP listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	go svc.Start(ctx)

	<-ctx.Done()
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	log.Info("telemetry: shutdown complete")
}
