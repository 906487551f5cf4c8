package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
)

var (
	// ErrNotFound is returned when a harvest or code does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a harvest id is already stored.
	ErrDuplicate = errors.New("duplicate harvest id")
)

// Store is the append-only log of submitted harvests.
// Appends from concurrent requests are serialised; none may be lost.
type Store interface {
	AppendHarvest(ctx context.Context, rec entities.HarvestRecord) error
	ListHarvests(ctx context.Context) ([]entities.HarvestRecord, error)
	GetHarvest(ctx context.Context, harvestID string) (entities.HarvestRecord, error)
	// UpdateHarvest replaces a stored record with the same id.
	UpdateHarvest(ctx context.Context, rec entities.HarvestRecord) error
	Close() error
}

// Code is a one-time verification code bound to a harvest.
type Code struct {
	HarvestID string    `json:"harvestId"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the code is no longer usable at now.
func (c Code) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// CodeStore keeps the latest one-time code per harvest.
type CodeStore interface {
	SaveCode(ctx context.Context, c Code) error
	LookupCode(ctx context.Context, harvestID string) (Code, error)
	DeleteCode(ctx context.Context, harvestID string) error
}

// Backend is a store that also keeps codes.
type Backend interface {
	Store
	CodeStore
}
