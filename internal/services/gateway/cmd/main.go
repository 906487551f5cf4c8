package main

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/kelpcoins/internal/config"
	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
	"github.com/LeonardoBeccarini/kelpcoins/internal/metrics"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/gateway/app"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/harvest"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/ledger"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/persistence"
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

	m := metrics.New()
	hs := app.NewHealthServer()

	// --- Storage & ledger ---
	store, err := persistence.Open(cfg.StoreBackend, cfg.StorePath)
	if err != nil {
		log.Fatalf("open %s store at %s: %v", cfg.StoreBackend, cfg.StorePath, err)
	}
	defer store.Close()

	chain, err := ledger.NewMemoryLedger(cfg.LedgerOwner, cfg.SwapRate)
	if err != nil {
		log.Fatalf("ledger: %v", err)
	}

	// --- Upstreams (un breaker ciascuno) ---
	predictionUp, ocrUp := upstreams(cfg, app.BreakerHook(hs, m, "prediction"))
	validator, err := buildValidator(cfg, predictionUp, m)
	if err != nil {
		log.Fatalf("validator: %v", err)
	}
	verifier := harvest.NewPhotoVerifier(store, buildRecognizer(ocrUp), cfg.CodeTTL)

	// --- MQTT: feed sensori + eventi (opzionale) ---
	feed := telemetry.NewFeed(30 * time.Minute)
	var events harvest.EventSink = harvest.NopSink{}
	mqttUp := func() bool { return false }

	mqClient, err := broker.Connect(ctx, broker.Config{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.User,
		Password: cfg.MQTT.Password,
		ClientID: cfg.MQTT.ClientID,
	})
	if err != nil {
		log.Warnw("mqtt unavailable: reference sensors, no events", "err", err)
	} else {
		events = harvest.NewBrokerSink(func(topic string) broker.IPublisher {
			return broker.NewPublisher(mqClient, topic)
		}, cfg.MQTT.EventTopic)
		mqttUp = mqClient.IsConnectionOpen

		ingestor := telemetry.NewIngestor(feed, nil, dedup.New(10*time.Minute, 20000), m)
		consumer := broker.NewConsumer(mqClient, ingestor.Handle,
			cfg.MQTT.SensorTopic+"/#",
			cfg.MQTT.AggregatedTopic+"/#",
		)
		go consumer.ConsumeMessage(ctx)
	}

	// --- Influx: solo query per lo storico ---
	archive := telemetry.NewArchive(cfg.Influx, 0, 0)
	defer archive.Close()

	svc, err := harvest.NewService(harvest.Deps{
		Store:     store,
		Verifier:  verifier,
		Validator: validator,
		Ledger:    chain,
		Sensors:   feed,
		Events:    events,
		Metrics:   m,
	})
	if err != nil {
		log.Fatalf("harvest service: %v", err)
	}

	gw := app.NewGateway(app.Config{
		HTTPTimeout:    cfg.HTTPTimeout,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		TrustedProxies: cfg.TrustedProxies,
	}, app.Deps{
		Harvests: svc,
		Ledger:   chain,
		Market:   ledger.NewMarket(chain),
		Archive:  archive,
		Metrics:  m,
		Probes: map[string]app.Probe{
			"mqtt":       mqttUp,
			"prediction": func() bool { return cfg.ValidationMode == config.ModeDemo || !predictionUp.Open() },
		},
	})

	// --- gRPC health ---
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatalf("grpc listen: %v", err)
	}
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	go func() {
		log.Infow("gRPC health listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Errorw("grpc server stopped", "err", err)
		}
	}()

	// --- HTTP ---
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           gw.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("gateway listening", "port", cfg.HTTPPort,
			"mode", cfg.ValidationMode, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	hs.Shutdown()
	grpcServer.GracefulStop()
	log.Info("gateway: shutdown complete")
}
