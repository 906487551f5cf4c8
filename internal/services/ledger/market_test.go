package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListAndTrade(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	_, err := l.Mint(ctx, owner, farmer, units(t, "10"), "h1")
	require.NoError(t, err)
	m := NewMarket(l)

	res, err := m.ListForSale(ctx, farmer, "h1", 6, 1.5)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.ListingID, "listing_")
	assert.Equal(t, "Successfully listed 6 KelpCoins for sale at $1.5 each", res.Message)
	require.Len(t, m.Listings(), 1)

	tr, err := m.ExecuteTrade(ctx, buyer, res.ListingID, 4, 1.5)
	require.NoError(t, err)
	assert.Equal(t, "Successfully purchased 4 KelpCoins for $6.00", tr.Message)

	bb, _ := l.BalanceOf(ctx, buyer)
	assert.Equal(t, "4", FormatUnits(bb))
	assert.InDelta(t, 2, m.Listings()[0].CoinsAvailable, 1e-9)

	_, err = m.ExecuteTrade(ctx, buyer, res.ListingID, 3, 1.5)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = m.ExecuteTrade(ctx, buyer, res.ListingID, 2, 1.5)
	require.NoError(t, err)
	assert.Empty(t, m.Listings())
	assert.Len(t, m.Trades(), 2)
}

func TestListForSaleNeedsBalance(t *testing.T) {
	m := NewMarket(newLedger(t))
	_, err := m.ListForSale(context.Background(), farmer, "h1", 1, 1)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = m.ListForSale(context.Background(), farmer, "h1", 0, 1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestExecuteTradeUnknownListing(t *testing.T) {
	m := NewMarket(nil)
	_, err := m.ExecuteTrade(context.Background(), buyer, "listing_missing", 1, 1)
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestListingsKeepCreationOrder(t *testing.T) {
	m := NewMarket(nil)
	same := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return same }

	for i := 1; i <= 12; i++ {
		_, err := m.ListForSale(context.Background(), "", fmt.Sprintf("h%d", i), 1, 1)
		require.NoError(t, err)
	}
	got := m.Listings()
	require.Len(t, got, 12)
	for i, l := range got {
		assert.Equal(t, fmt.Sprintf("h%d", i+1), l.HarvestID)
	}
}
