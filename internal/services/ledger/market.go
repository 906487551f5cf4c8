package ledger

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
)

// Market holds open listings and executes trades against the ledger.
type Market struct {
	mu       sync.Mutex
	ledger   Ledger
	listings map[string]*entities.Listing
	trades   []entities.Trade
	seq      int64
	now      func() time.Time
}

func NewMarket(l Ledger) *Market {
	return &Market{
		ledger:   l,
		listings: make(map[string]*entities.Listing),
		now:      time.Now,
	}
}

// ListResult is what ListForSale reports back to the UI.
type ListResult struct {
	Success   bool   `json:"success"`
	ListingID string `json:"listingId"`
	Message   string `json:"message"`
}

// TradeResult is what ExecuteTrade reports back to the UI.
type TradeResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	Message       string `json:"message"`
}

// ListForSale opens a listing of coins at pricePerCoin on behalf of farmer.
// The farmer must hold the coins when a ledger is attached.
func (m *Market) ListForSale(ctx context.Context, farmer, harvestID string, coins, pricePerCoin float64) (ListResult, error) {
	if coins <= 0 || pricePerCoin <= 0 {
		return ListResult{}, fmt.Errorf("%w: coins and price must be positive", ErrInvalidAmount)
	}
	if m.ledger != nil && farmer != "" {
		want, err := FloatUnits(coins)
		if err != nil {
			return ListResult{}, err
		}
		have, err := m.ledger.BalanceOf(ctx, farmer)
		if err != nil {
			return ListResult{}, err
		}
		if have.Cmp(want) < 0 {
			return ListResult{}, fmt.Errorf("%w: listing %v coins with balance %s", ErrInsufficientBalance, coins, FormatUnits(have))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	m.seq++
	id := "listing_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + strconv.FormatInt(m.seq, 10)
	m.listings[id] = &entities.Listing{
		ID:             id,
		Farmer:         normalize(farmer),
		HarvestID:      harvestID,
		CoinsAvailable: coins,
		PricePerCoin:   pricePerCoin,
		CreatedAt:      now,
		Seq:            m.seq,
	}
	return ListResult{
		Success:   true,
		ListingID: id,
		Message:   fmt.Sprintf("Successfully listed %v KelpCoins for sale at $%v each", coins, pricePerCoin),
	}, nil
}

// ExecuteTrade buys coins from the listing batchID. Unknown batches are
// rejected with ErrListingNotFound.
func (m *Market) ExecuteTrade(ctx context.Context, buyer, batchID string, coins, pricePerCoin float64) (TradeResult, error) {
	if coins <= 0 || pricePerCoin <= 0 {
		return TradeResult{}, fmt.Errorf("%w: coins and price must be positive", ErrInvalidAmount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[batchID]
	if !ok {
		return TradeResult{}, fmt.Errorf("%w: %s", ErrListingNotFound, batchID)
	}
	if coins > l.CoinsAvailable {
		return TradeResult{}, fmt.Errorf("%w: %s has %v coins left", ErrInsufficientBalance, batchID, l.CoinsAvailable)
	}

	now := m.now().UTC()
	m.seq++
	txID := "tx_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + strconv.FormatInt(m.seq, 10)

	if m.ledger != nil && l.Farmer != "" && buyer != "" {
		amount, err := FloatUnits(coins)
		if err != nil {
			return TradeResult{}, err
		}
		hash, err := m.ledger.Transfer(ctx, l.Farmer, buyer, amount)
		if err != nil {
			return TradeResult{}, err
		}
		txID = hash
	}

	l.CoinsAvailable -= coins
	if l.CoinsAvailable <= 0 {
		delete(m.listings, batchID)
	}
	total := coins * pricePerCoin
	m.trades = append(m.trades, entities.Trade{
		TransactionID: txID,
		BatchID:       batchID,
		Buyer:         normalize(buyer),
		Coins:         coins,
		PricePerCoin:  pricePerCoin,
		TotalUSD:      total,
		ExecutedAt:    now,
	})
	return TradeResult{
		Success:       true,
		TransactionID: txID,
		Message:       fmt.Sprintf("Successfully purchased %v KelpCoins for $%.2f", coins, total),
	}, nil
}

// Listings returns open listings, oldest first.
func (m *Market) Listings() []entities.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.Listing, 0, len(m.listings))
	for _, l := range m.listings {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Trades returns executed trades in order.
func (m *Market) Trades() []entities.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.Trade(nil), m.trades...)
}
