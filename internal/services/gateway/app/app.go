package app

import (
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/LeonardoBeccarini/kelpcoins/internal/metrics"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/harvest"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/ledger"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/telemetry"
)

type Config struct {
	// HTTPTimeout bounds each API request, upstream calls included.
	HTTPTimeout time.Duration

	RateLimitRPS   int
	RateLimitBurst int
	// TrustedProxies may set X-Forwarded-For (CIDRs or IPs).
	TrustedProxies []string

	// MaxUploadBytes caps a harvest photo (default 10MB).
	MaxUploadBytes int64
}

// Probe reports whether a dependency is usable.
type Probe func() bool

type Deps struct {
	Harvests *harvest.Service
	Ledger   ledger.Ledger
	Market   *ledger.Market
	// Archive serves /api/sensors/history; nil answers an empty list.
	Archive *telemetry.Archive
	Metrics *metrics.Metrics
	// Probes are checked by /readyz.
	Probes map[string]Probe
}

type Gateway struct {
	cfg      Config
	harvests *harvest.Service
	ledger   ledger.Ledger
	market   *ledger.Market
	archive  *telemetry.Archive
	metrics  *metrics.Metrics
	probes   map[string]Probe
	limiter  *ipLimiter
	proxies  []*net.IPNet
}

func NewGateway(cfg Config, d Deps) *Gateway {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if d.Market == nil {
		d.Market = ledger.NewMarket(d.Ledger)
	}
	return &Gateway{
		cfg:      cfg,
		harvests: d.Harvests,
		ledger:   d.Ledger,
		market:   d.Market,
		archive:  d.Archive,
		metrics:  d.Metrics,
		probes:   d.Probes,
		limiter:  newIPLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		proxies:  parseProxies(cfg.TrustedProxies),
	}
}

// Router wires every route. Rate limiting applies to /api only.
func (g *Gateway) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(g.instrument)

	r.HandleFunc("/healthz", g.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", g.HandleReady).Methods(http.MethodGet)
	r.Handle("/metrics", g.metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(g.rateLimit, g.deadline)

	api.HandleFunc("/fetchSensors", g.HandleFetchSensors).Methods(http.MethodPost)
	api.Handle("/sensors/history", telemetry.NewHistoryHandler(g.archive)).Methods(http.MethodGet)

	api.HandleFunc("/generateHarvestCode", g.HandleGenerateCode).Methods(http.MethodPost)
	api.HandleFunc("/validateHarvest", g.HandleValidateDemo).Methods(http.MethodPost)
	api.HandleFunc("/harvests/validate", g.HandleValidate).Methods(http.MethodPost)
	api.HandleFunc("/submitHarvestPhoto", g.HandleSubmitPhoto).Methods(http.MethodPost)
	api.HandleFunc("/submit-harvest", g.HandleSubmit).Methods(http.MethodPost)
	api.HandleFunc("/harvests", g.HandleListHarvests).Methods(http.MethodGet)
	api.HandleFunc("/mintCoins", g.HandleMint).Methods(http.MethodPost)

	api.HandleFunc("/listForSale", g.HandleListForSale).Methods(http.MethodPost)
	api.HandleFunc("/executeTrade", g.HandleExecuteTrade).Methods(http.MethodPost)
	api.HandleFunc("/listings", g.HandleListings).Methods(http.MethodGet)
	api.HandleFunc("/trades", g.HandleTrades).Methods(http.MethodGet)
	api.HandleFunc("/wallets/{address}/balance", g.HandleBalance).Methods(http.MethodGet)
	api.HandleFunc("/swap", g.HandleSwap).Methods(http.MethodPost)

	return r
}
