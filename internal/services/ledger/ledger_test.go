package ledger

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	owner  = "0x0000000000000000000000000000000000000001"
	farmer = "0x00000000000000000000000000000000000000Aa"
	buyer  = "0x00000000000000000000000000000000000000bB"
)

func units(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := ParseUnits(s)
	require.NoError(t, err)
	return v
}

func newLedger(t *testing.T) *MemoryLedger {
	t.Helper()
	l, err := NewMemoryLedger(owner, 1000)
	require.NoError(t, err)
	return l
}

func TestParseAndFormatUnits(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1"},
		{"12.5", "12.5"},
		{"0.000000000000000001", "0.000000000000000001"},
		{".25", "0.25"},
		{"3.1000", "3.1"},
		{"1.0000000000000000019", "1.000000000000000001"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUnits(units(t, tt.in)))
		})
	}

	assert.Equal(t, "1000000000000000000", units(t, "1").String())

	for _, bad := range []string{"", "-1", "abc", "1.2.3"} {
		_, err := ParseUnits(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func TestFloatUnits(t *testing.T) {
	v, err := FloatUnits(2.25)
	require.NoError(t, err)
	assert.Equal(t, "2.25", FormatUnits(v))

	_, err = FloatUnits(-1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMintIsOwnerGated(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	_, err := l.Mint(ctx, farmer, farmer, units(t, "5"), "h1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	tx, err := l.Mint(ctx, strings.ToUpper(owner[:2])+owner[2:], farmer, units(t, "5"), "h1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tx, "0x"))

	bal, err := l.BalanceOf(ctx, farmer)
	require.NoError(t, err)
	assert.Equal(t, "5", FormatUnits(bal))
}

func TestMintIsIdempotentPerRef(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	first, err := l.Mint(ctx, owner, farmer, units(t, "5"), "h1")
	require.NoError(t, err)

	again, err := l.Mint(ctx, owner, farmer, units(t, "5"), "h1")
	assert.ErrorIs(t, err, ErrAlreadyMinted)
	assert.Equal(t, first, again)

	bal, err := l.BalanceOf(ctx, farmer)
	require.NoError(t, err)
	assert.Equal(t, "5", FormatUnits(bal))
	assert.Equal(t, "5", FormatUnits(l.TotalSupply()))
}

func TestMintRejectsBadInput(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	_, err := l.Mint(ctx, owner, "not-an-address", units(t, "1"), "")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = l.Mint(ctx, owner, farmer, big.NewInt(0), "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestTransfer(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	_, err := l.Mint(ctx, owner, farmer, units(t, "10"), "h1")
	require.NoError(t, err)

	_, err = l.Transfer(ctx, farmer, buyer, units(t, "4"))
	require.NoError(t, err)

	fb, _ := l.BalanceOf(ctx, farmer)
	bb, _ := l.BalanceOf(ctx, buyer)
	assert.Equal(t, "6", FormatUnits(fb))
	assert.Equal(t, "4", FormatUnits(bb))

	_, err = l.Transfer(ctx, buyer, farmer, units(t, "5"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestSwap(t *testing.T) {
	l := newLedger(t)

	r, err := l.SwapETHForPhycoCoins(context.Background(), buyer, units(t, "0.5"))
	require.NoError(t, err)
	assert.Equal(t, "500", r.Received)
	assert.Equal(t, "500000000000000000", r.WeiPaid)

	bal, _ := l.BalanceOf(context.Background(), buyer)
	assert.Equal(t, "500", FormatUnits(bal))

	_, err = l.SwapETHForPhycoCoins(context.Background(), buyer, big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestNewMemoryLedgerValidatesOwner(t *testing.T) {
	_, err := NewMemoryLedger("0x1", 1)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}
