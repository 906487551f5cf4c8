// Package config loads service settings from defaults, an optional YAML file
// and the environment, in that order of precedence (env wins).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ModeModel = "model"
	ModeDemo  = "demo"

	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

type MQTTConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	ClientID        string `yaml:"client_id"`
	SensorTopic     string `yaml:"sensor_topic"`
	AggregatedTopic string `yaml:"aggregated_topic"`
	EventTopic      string `yaml:"event_topic"` // template: event/harvest/{type}/{harvest}
}

type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Enabled reports whether enough settings are present to talk to InfluxDB.
func (c InfluxConfig) Enabled() bool {
	return c.URL != "" && c.Token != "" && c.Org != "" && c.Bucket != ""
}

type Config struct {
	Debug    bool   `yaml:"debug"`
	HTTPPort string `yaml:"http_port"`
	GRPCPort string `yaml:"grpc_port"`

	ValidationMode  string        `yaml:"validation_mode"`
	PredictionURL   string        `yaml:"prediction_url"`
	OCRURL          string        `yaml:"ocr_url"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerOpenFor  time.Duration `yaml:"breaker_open_for"`

	StoreBackend string        `yaml:"store_backend"`
	StorePath    string        `yaml:"store_path"`
	CodeTTL      time.Duration `yaml:"code_ttl"`

	RateLimitRPS   int      `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
	TrustedProxies []string `yaml:"trusted_proxies"`

	LedgerOwner string  `yaml:"ledger_owner"`
	SwapRate    float64 `yaml:"swap_rate"` // PHYC per ETH

	MQTT   MQTTConfig   `yaml:"mqtt"`
	Influx InfluxConfig `yaml:"influx"`
}

func Default() Config {
	return Config{
		HTTPPort:        "8080",
		GRPCPort:        "50051",
		ValidationMode:  ModeModel,
		PredictionURL:   "http://localhost:9000/predict",
		HTTPTimeout:     10 * time.Second,
		BreakerFailures: 5,
		BreakerOpenFor:  30 * time.Second,
		StoreBackend:    BackendFile,
		StorePath:       "data/harvests.json",
		CodeTTL:         15 * time.Minute,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
		LedgerOwner:     "0x0000000000000000000000000000000000000001",
		SwapRate:        1000,
		MQTT: MQTTConfig{
			Host:            "localhost",
			Port:            1883,
			User:            "guest",
			Password:        "guest",
			ClientID:        "kelpcoins-gateway",
			SensorTopic:     "sensor/data",
			AggregatedTopic: "sensor/aggregated",
			EventTopic:      "event/harvest/{type}/{harvest}",
		},
		Influx: InfluxConfig{
			URL:    "http://localhost:8086",
			Org:    "kelpcoins",
			Bucket: "telemetry",
		},
	}
}

// Load reads .env (if present), the YAML file named by CONFIG_FILE (if set)
// and finally the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.ValidationMode {
	case ModeModel, ModeDemo:
	default:
		return fmt.Errorf("invalid VALIDATION_MODE %q (want %s|%s)", c.ValidationMode, ModeModel, ModeDemo)
	}
	switch c.StoreBackend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q (want %s|%s)", c.StoreBackend, BackendFile, BackendSQLite)
	}
	if c.ValidationMode == ModeModel && c.PredictionURL == "" {
		return fmt.Errorf("PREDICTION_URL is required in %s mode", ModeModel)
	}
	if c.StorePath == "" {
		return fmt.Errorf("STORE_PATH is required")
	}
	return nil
}

func applyEnv(c *Config) {
	c.Debug = getenvBool("DEBUG", c.Debug)
	c.HTTPPort = getenv("PORT", c.HTTPPort)
	c.GRPCPort = getenv("GRPC_PORT", c.GRPCPort)

	c.ValidationMode = strings.ToLower(getenv("VALIDATION_MODE", c.ValidationMode))
	c.PredictionURL = getenv("PREDICTION_URL", c.PredictionURL)
	c.OCRURL = getenv("OCR_URL", c.OCRURL)
	c.HTTPTimeout = getenvDuration("HTTP_TIMEOUT", c.HTTPTimeout)
	c.BreakerFailures = getenvInt("BREAKER_FAILURES", c.BreakerFailures)
	c.BreakerOpenFor = getenvDuration("BREAKER_OPEN_FOR", c.BreakerOpenFor)

	c.StoreBackend = strings.ToLower(getenv("STORE_BACKEND", c.StoreBackend))
	c.StorePath = getenv("STORE_PATH", c.StorePath)
	c.CodeTTL = getenvDuration("CODE_TTL", c.CodeTTL)

	c.RateLimitRPS = getenvInt("RATE_LIMIT_RPS", c.RateLimitRPS)
	c.RateLimitBurst = getenvInt("RATE_LIMIT_BURST", c.RateLimitBurst)
	c.TrustedProxies = getenvList("TRUSTED_PROXIES", c.TrustedProxies)

	c.LedgerOwner = getenv("LEDGER_OWNER", c.LedgerOwner)
	c.SwapRate = getenvFloat("SWAP_RATE", c.SwapRate)

	c.MQTT.Host = getenv("MQTT_HOST", c.MQTT.Host)
	c.MQTT.Port = getenvInt("MQTT_PORT", c.MQTT.Port)
	c.MQTT.User = getenv("MQTT_USER", c.MQTT.User)
	c.MQTT.Password = getenv("MQTT_PASSWORD", c.MQTT.Password)
	c.MQTT.ClientID = getenv("MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.SensorTopic = getenv("SENSOR_TOPIC", c.MQTT.SensorTopic)
	c.MQTT.AggregatedTopic = getenv("AGGREGATED_TOPIC", c.MQTT.AggregatedTopic)
	c.MQTT.EventTopic = getenv("EVENT_TOPIC_TEMPLATE", c.MQTT.EventTopic)

	c.Influx.URL = getenv("INFLUX_URL", c.Influx.URL)
	c.Influx.Token = getenv("INFLUX_TOKEN", c.Influx.Token)
	c.Influx.Org = getenv("INFLUX_ORG", c.Influx.Org)
	c.Influx.Bucket = getenv("INFLUX_BUCKET", c.Influx.Bucket)
}

func getenv(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func getenvList(k string, d []string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvInt(k string, d int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvFloat(k string, d float64) float64 {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return d
}

func getenvBool(k string, d bool) bool {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

// getenvDuration accetta sia "15m" sia millisecondi interi ("1500").
func getenvDuration(k string, d time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return d
}
