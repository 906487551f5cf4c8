package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
)

// Ledger is the PhycoCoin token contract as seen by the backend.
type Ledger interface {
	Owner() string
	Mint(ctx context.Context, caller, to string, amount *big.Int, ref string) (string, error)
	BalanceOf(ctx context.Context, addr string) (*big.Int, error)
	Transfer(ctx context.Context, from, to string, amount *big.Int) (string, error)
	SwapETHForPhycoCoins(ctx context.Context, to string, weiPaid *big.Int) (entities.SwapReceipt, error)
}

var addressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidAddress reports whether s looks like a 20-byte hex account.
func ValidAddress(s string) bool {
	return addressRe.MatchString(strings.TrimSpace(s))
}

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// MemoryLedger keeps balances in memory. Only the owner may mint and every
// mint reference is credited at most once.
type MemoryLedger struct {
	mu       sync.Mutex
	owner    string
	rate     *big.Float // PHYC per ETH
	balances map[string]*big.Int
	minted   map[string]string // ref -> tx hash
	supply   *big.Int
	nonce    uint64
	now      func() time.Time
}

// NewMemoryLedger creates a ledger owned by owner. swapRate is how many
// PhycoCoins one ETH buys.
func NewMemoryLedger(owner string, swapRate float64) (*MemoryLedger, error) {
	if !ValidAddress(owner) {
		return nil, fmt.Errorf("%w: owner %q", ErrInvalidAddress, owner)
	}
	if swapRate <= 0 {
		return nil, fmt.Errorf("%w: swap rate %v", ErrInvalidAmount, swapRate)
	}
	return &MemoryLedger{
		owner:    normalize(owner),
		rate:     big.NewFloat(swapRate),
		balances: make(map[string]*big.Int),
		minted:   make(map[string]string),
		supply:   new(big.Int),
		now:      time.Now,
	}, nil
}

func (l *MemoryLedger) Owner() string { return l.owner }

func (l *MemoryLedger) Mint(ctx context.Context, caller, to string, amount *big.Int, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if normalize(caller) != l.owner {
		return "", fmt.Errorf("%w: %s is not the token owner", ErrUnauthorized, caller)
	}
	if !ValidAddress(to) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, to)
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", fmt.Errorf("%w: mint amount must be positive", ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if ref != "" {
		if tx, ok := l.minted[ref]; ok {
			return tx, fmt.Errorf("%w: %s (tx %s)", ErrAlreadyMinted, ref, tx)
		}
	}
	l.credit(normalize(to), amount)
	l.supply.Add(l.supply, amount)

	tx := l.txHash("mint", ref, to, amount)
	if ref != "" {
		l.minted[ref] = tx
	}
	return tx, nil
}

func (l *MemoryLedger) BalanceOf(ctx context.Context, addr string) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidAddress(addr) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[normalize(addr)]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (l *MemoryLedger) Transfer(ctx context.Context, from, to string, amount *big.Int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !ValidAddress(from) || !ValidAddress(to) {
		return "", fmt.Errorf("%w: %q -> %q", ErrInvalidAddress, from, to)
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", fmt.Errorf("%w: transfer amount must be positive", ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	src := l.balances[normalize(from)]
	if src == nil || src.Cmp(amount) < 0 {
		return "", fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, FormatUnits(src), FormatUnits(amount))
	}
	src.Sub(src, amount)
	l.credit(normalize(to), amount)
	return l.txHash("transfer", from, to, amount), nil
}

// SwapETHForPhycoCoins credits to with weiPaid * rate base units.
// Wei and PHYC share 18 decimals, so the rate applies directly.
func (l *MemoryLedger) SwapETHForPhycoCoins(ctx context.Context, to string, weiPaid *big.Int) (entities.SwapReceipt, error) {
	if err := ctx.Err(); err != nil {
		return entities.SwapReceipt{}, err
	}
	if !ValidAddress(to) {
		return entities.SwapReceipt{}, fmt.Errorf("%w: %q", ErrInvalidAddress, to)
	}
	if weiPaid == nil || weiPaid.Sign() <= 0 {
		return entities.SwapReceipt{}, fmt.Errorf("%w: no ETH sent", ErrInvalidAmount)
	}

	received, _ := new(big.Float).SetPrec(256).Mul(new(big.Float).SetInt(weiPaid), l.rate).Int(nil)
	if received.Sign() <= 0 {
		return entities.SwapReceipt{}, fmt.Errorf("%w: swap yields nothing", ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.credit(normalize(to), received)
	l.supply.Add(l.supply, received)
	return entities.SwapReceipt{
		To:        normalize(to),
		WeiPaid:   weiPaid.String(),
		Received:  FormatUnits(received),
		TxHash:    l.txHash("swap", "", to, received),
		SwappedAt: l.now().UTC(),
	}, nil
}

// TotalSupply returns all base units ever minted or swapped in.
func (l *MemoryLedger) TotalSupply() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.supply)
}

func (l *MemoryLedger) credit(addr string, amount *big.Int) {
	b, ok := l.balances[addr]
	if !ok {
		b = new(big.Int)
		l.balances[addr] = b
	}
	b.Add(b, amount)
}

// txHash must be called with mu held.
func (l *MemoryLedger) txHash(kind, a, b string, amount *big.Int) string {
	l.nonce++
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s|%d", kind, a, b, amount.String(), l.nonce)))
	return "0x" + hex.EncodeToString(h[:])
}
