package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/harvest"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/ledger"
)

// Session headers set by the wallet-aware frontend.
const (
	HeaderWallet  = "X-Wallet-Address"
	HeaderChainID = "X-Chain-Id"
)

// SessionFrom reads the caller's wallet context from the request headers.
func SessionFrom(r *http.Request) entities.Session {
	wallet := strings.TrimSpace(r.Header.Get(HeaderWallet))
	return entities.Session{
		WalletAddress: wallet,
		ChainID:       strings.TrimSpace(r.Header.Get(HeaderChainID)),
		Connected:     wallet != "",
	}
}

func (g *Gateway) HandleFetchSensors(w http.ResponseWriter, r *http.Request) {
	reading, fallback := g.harvests.FetchSensors(r.Context())
	src := "feed"
	if fallback {
		src = "reference"
	}
	w.Header().Set("X-Data-Source", src)
	writeJSON(w, http.StatusOK, reading)
}

func (g *Gateway) HandleGenerateCode(w http.ResponseWriter, r *http.Request) {
	var req harvestIDRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.HarvestID) == "" {
		writeError(w, fmt.Errorf("%w: harvestId required", harvest.ErrInvalidInput))
		return
	}
	code, err := g.harvests.GenerateCode(r.Context(), req.HarvestID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, codeResponse{Code: code})
}

func (g *Gateway) HandleValidateDemo(w http.ResponseWriter, r *http.Request) {
	var req demoRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := g.harvests.ValidateDemo(req.HarvestID, req.WKg, req.SensorData)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var form harvest.RawHarvestForm
	if !decode(w, r, &form) {
		return
	}
	if form.WalletAddress == "" {
		form.WalletAddress = SessionFrom(r).WalletAddress
	}
	rec, err := g.harvests.Validate(r.Context(), form)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		HarvestID:           rec.HarvestID,
		DefaultLocationUsed: rec.DefaultLocationUsed,
		Location:            rec.Location(),
		Sensors:             rec.Sensors,
		PhotoVerified:       rec.PhotoVerified,
		Validation:          rec.Validation,
	})
}

func (g *Gateway) HandleSubmitPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, g.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(g.cfg.MaxUploadBytes); err != nil {
		writeError(w, fmt.Errorf("%w: multipart form: %v", harvest.ErrInvalidInput, err))
		return
	}
	harvestID := strings.TrimSpace(r.FormValue("harvestId"))
	if harvestID == "" {
		writeError(w, fmt.Errorf("%w: harvestId required", harvest.ErrInvalidInput))
		return
	}
	file, hdr, err := r.FormFile("photo")
	if err != nil {
		writeError(w, fmt.Errorf("%w: photo required", harvest.ErrInvalidInput))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, fmt.Errorf("%w: read photo: %v", harvest.ErrInvalidInput, err))
		return
	}
	photo := harvest.Photo{
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Data:        data,
	}
	ok, err := g.harvests.VerifyPhoto(r.Context(), harvestID, photo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, photoResponse{Verified: ok, HarvestID: harvestID})
}

func (g *Gateway) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decode(w, r, &req) {
		return
	}
	if req.HarvestData == nil {
		writeError(w, fmt.Errorf("%w: missing harvest data", harvest.ErrInvalidInput))
		return
	}
	rec, err := g.harvests.Submit(r.Context(), SessionFrom(r), req.HarvestData.HarvestID, req.HarvestData.WalletAddress)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{
		Success:     true,
		Message:     "Harvest submitted successfully",
		HarvestData: rec,
	})
}

func (g *Gateway) HandleListHarvests(w http.ResponseWriter, r *http.Request) {
	list, err := g.harvests.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []entities.HarvestRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (g *Gateway) HandleMint(w http.ResponseWriter, r *http.Request) {
	var req harvestIDRequest
	if !decode(w, r, &req) {
		return
	}
	receipt, err := g.harvests.Mint(r.Context(), SessionFrom(r), req.HarvestID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (g *Gateway) HandleListForSale(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := g.market.ListForSale(r.Context(), SessionFrom(r).WalletAddress, req.HarvestID, req.Coins, req.PricePerCoin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (g *Gateway) HandleExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := g.market.ExecuteTrade(r.Context(), SessionFrom(r).WalletAddress, req.BatchID, req.Coins, req.PricePerCoin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (g *Gateway) HandleListings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.market.Listings())
}

func (g *Gateway) HandleTrades(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.market.Trades())
}

func (g *Gateway) HandleBalance(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	bal, err := g.ledger.BalanceOf(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: addr, Balance: ledger.FormatUnits(bal)})
}

func (g *Gateway) HandleSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if !decode(w, r, &req) {
		return
	}
	wei, ok := new(big.Int).SetString(strings.TrimSpace(req.Wei), 10)
	if !ok || wei.Sign() <= 0 {
		writeError(w, fmt.Errorf("%w: wei must be a positive integer", ledger.ErrInvalidAmount))
		return
	}
	to := req.Address
	if to == "" {
		to = SessionFrom(r).WalletAddress
	}
	receipt, err := g.ledger.SwapETHForPhycoCoins(r.Context(), to, wei)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Infow("swap executed", "to", receipt.To, "wei", receipt.WeiPaid, "received", receipt.Received)
	writeJSON(w, http.StatusOK, receipt)
}

// ---------- helpers ----------

// decode reads a JSON body; on failure it answers 400 and returns false.
func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		writeError(w, fmt.Errorf("%w: %v", harvest.ErrInvalidInput, err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
