package harvest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/messages"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/ledger"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/persistence"
)

const (
	testOwner  = "0x0000000000000000000000000000000000000001"
	testFarmer = "0x1111111111111111111111111111111111111111"
	testOther  = "0x2222222222222222222222222222222222222222"
)

type fixedValidator struct {
	res entities.ValidationResult
	err error
}

func (f fixedValidator) Validate(context.Context, entities.SensorReading, float64, bool) (entities.ValidationResult, error) {
	return f.res, f.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []messages.HarvestEvent
}

func (r *recordingSink) Publish(_ context.Context, ev messages.HarvestEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc    *Service
	store  *persistence.FileStore
	ledger *ledger.MemoryLedger
	sink   *recordingSink
}

func newFixture(t *testing.T, v Validator) fixture {
	t.Helper()
	store := newCodeStore(t)
	l, err := ledger.NewMemoryLedger(testOwner, 1000)
	require.NoError(t, err)
	sink := &recordingSink{}
	svc, err := NewService(Deps{
		Store:     store,
		Verifier:  NewPhotoVerifier(store, echoOCR, time.Minute),
		Validator: v,
		Ledger:    l,
		Sensors:   stubSensors{reading: goodReading()},
		Events:    sink,
	})
	require.NoError(t, err)
	svc.now = func() time.Time { return fixedNow }
	return fixture{svc: svc, store: store, ledger: l, sink: sink}
}

func feasible(total float64) fixedValidator {
	return fixedValidator{res: entities.ValidationResult{
		Feasible:  true,
		Ratio:     0.5,
		ValueCUSD: total * 0.2,
		ValueNUSD: total * 0.5,
		ValuePUSD: total * 0.3,
		TotalUSD:  total,
		Source:    entities.SourceModel,
	}}
}

func connected(addr string) entities.Session {
	return entities.Session{WalletAddress: addr, Connected: true}
}

// proveHarvest runs code generation and photo verification for id.
func (f fixture) proveHarvest(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	code, err := f.svc.GenerateCode(ctx, id)
	require.NoError(t, err)
	ok, err := f.svc.VerifyPhoto(ctx, id, Photo{Data: []byte("label " + code)})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestValidateAcquiresMissingSensors(t *testing.T) {
	f := newFixture(t, feasible(10))
	rec, err := f.svc.Validate(context.Background(), RawHarvestForm{HarvestID: "h1", Biomass: "100"})
	require.NoError(t, err)

	assert.Equal(t, goodReading(), rec.Sensors)
	assert.True(t, rec.DefaultLocationUsed)
	require.NotNil(t, rec.Validation)
	assert.True(t, rec.Validation.Feasible)
	assert.Equal(t, []string{messages.HarvestValidated}, f.sink.types())
}

func TestFullPipeline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, feasible(12.5))

	_, err := f.svc.Validate(ctx, fullForm())
	require.NoError(t, err)
	f.proveHarvest(t, "h-1")

	rec, err := f.svc.Submit(ctx, connected(testFarmer), "h-1", "")
	require.NoError(t, err)
	assert.Equal(t, testFarmer, rec.WalletAddress)
	assert.True(t, rec.PhotoVerified)
	assert.Equal(t, fixedNow, rec.SubmittedAt)
	assert.Equal(t, entities.HarvestPending, rec.Status)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	receipt, err := f.svc.Mint(ctx, connected(testFarmer), "h-1")
	require.NoError(t, err)
	assert.Equal(t, 12.5, receipt.TotalCoins)
	assert.Equal(t, "12.5", receipt.Balance)
	assert.InDelta(t, 6.25, receipt.Breakdown.Nitrogen, 1e-9)
	assert.NotEmpty(t, receipt.TxHash)

	_, err = f.svc.Mint(ctx, connected(testFarmer), "h-1")
	assert.ErrorIs(t, err, ErrAlreadyMinted)

	assert.Equal(t, []string{
		messages.HarvestValidated, messages.PhotoVerified, messages.HarvestSubmitted, messages.CoinsMinted,
	}, f.sink.types())
}

func TestPhotoBeforeValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, feasible(3))

	f.proveHarvest(t, "h-1")
	rec, err := f.svc.Validate(ctx, fullForm())
	require.NoError(t, err)
	assert.True(t, rec.PhotoVerified)

	rec, err = f.svc.Submit(ctx, connected(testFarmer), "h-1", "")
	require.NoError(t, err)
	assert.True(t, rec.PhotoVerified)
}

func TestPhotoAfterSubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, feasible(3))

	_, err := f.svc.Validate(ctx, fullForm())
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, connected(testFarmer), "h-1", "")
	require.NoError(t, err)

	_, err = f.svc.Mint(ctx, connected(testFarmer), "h-1")
	assert.ErrorIs(t, err, ErrNotEligible)

	f.proveHarvest(t, "h-1")
	stored, err := f.store.GetHarvest(ctx, "h-1")
	require.NoError(t, err)
	assert.True(t, stored.PhotoVerified)

	_, err = f.svc.Mint(ctx, connected(testFarmer), "h-1")
	assert.NoError(t, err)
}

func TestSubmitRejectsInfeasible(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixedValidator{res: entities.ValidationResult{Feasible: false, Ratio: 1.4, TotalUSD: 50}})

	rec, err := f.svc.Validate(ctx, fullForm())
	require.NoError(t, err)
	assert.False(t, rec.Validation.Feasible)

	_, err = f.svc.Submit(ctx, connected(testFarmer), "h-1", "")
	assert.ErrorIs(t, err, ErrNotEligible)

	list, err := f.store.ListHarvests(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSubmitRequiresValidation(t *testing.T) {
	f := newFixture(t, feasible(3))
	_, err := f.svc.Submit(context.Background(), connected(testFarmer), "never-validated", "")
	assert.ErrorIs(t, err, ErrNotEligible)

	_, err = f.svc.Submit(context.Background(), connected(testFarmer), "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSubmitRejectsBadWallet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, feasible(3))
	_, err := f.svc.Validate(ctx, fullForm())
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, entities.Session{}, "h-1", "not-a-wallet")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMintGates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, feasible(4))
	_, err := f.svc.Validate(ctx, fullForm())
	require.NoError(t, err)
	f.proveHarvest(t, "h-1")
	_, err = f.svc.Submit(ctx, connected(testFarmer), "h-1", "")
	require.NoError(t, err)

	_, err = f.svc.Mint(ctx, entities.Session{WalletAddress: testFarmer}, "h-1")
	assert.ErrorIs(t, err, ErrUnauthorized, "disconnected session")

	_, err = f.svc.Mint(ctx, connected(testOther), "h-1")
	assert.ErrorIs(t, err, ErrUnauthorized, "wallet mismatch")

	_, err = f.svc.Mint(ctx, connected(testFarmer), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	bal, err := f.ledger.BalanceOf(ctx, testFarmer)
	require.NoError(t, err)
	assert.Zero(t, bal.Sign())
}

func TestMintRejectsInfeasibleStoredRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, feasible(4))

	// a record that reached the store without a feasible verdict
	rec := entities.HarvestRecord{
		HarvestID:     "legacy",
		WalletAddress: testFarmer,
		Validation:    &entities.ValidationResult{Feasible: false, TotalUSD: 100},
		PhotoVerified: true,
		Status:        entities.HarvestPending,
	}
	require.NoError(t, f.store.AppendHarvest(ctx, rec))

	_, err := f.svc.Mint(ctx, connected(testFarmer), "legacy")
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestValidateDemo(t *testing.T) {
	f := newFixture(t, feasible(1))
	resp, err := f.svc.ValidateDemo("h1", 1500, goodReading())
	require.NoError(t, err)
	assert.True(t, resp.IsValid)
	assert.InDelta(t, 150, resp.NutrientRemovals.CKg, 1e-9)

	_, err = f.svc.ValidateDemo("h1", 0, goodReading())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFetchSensorsFallback(t *testing.T) {
	f := newFixture(t, feasible(1))
	r, defaulted := f.svc.FetchSensors(context.Background())
	assert.False(t, defaulted)
	assert.Equal(t, goodReading(), r)

	f.svc.sensors = nil
	r, defaulted = f.svc.FetchSensors(context.Background())
	assert.True(t, defaulted)
	assert.Equal(t, entities.ReferenceReading(), r)
}

func TestValidateKeepsFlaggedFallbackLocation(t *testing.T) {
	ctx := context.Background()
	form := RawHarvestForm{HarvestID: "h1", Biomass: "100"}
	fallback := entities.FallbackLocation()

	// a buoy position is not the farmer's location
	f := newFixture(t, feasible(10))
	f.svc.locator = stubLocator{loc: entities.Location{Latitude: 44.1, Longitude: -68.9, Fallback: true}}
	rec, err := f.svc.Validate(ctx, form)
	require.NoError(t, err)
	assert.True(t, rec.DefaultLocationUsed)
	assert.Equal(t, fallback.Latitude, rec.Latitude)
	assert.Equal(t, fallback.Longitude, rec.Longitude)

	f.svc.locator = stubLocator{err: errors.New("permission denied")}
	rec, err = f.svc.Validate(ctx, form)
	require.NoError(t, err)
	assert.True(t, rec.DefaultLocationUsed)
	assert.Equal(t, fallback.Latitude, rec.Latitude)

	f.svc.locator = stubLocator{loc: entities.Location{Latitude: 43.6, Longitude: -70.2}}
	rec, err = f.svc.Validate(ctx, form)
	require.NoError(t, err)
	assert.False(t, rec.DefaultLocationUsed)
	assert.Equal(t, 43.6, rec.Latitude)
}

func TestSubmitRequiresPayoutWallet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, feasible(7))
	_, err := f.svc.Validate(ctx, fullForm())
	require.NoError(t, err)
	f.proveHarvest(t, "h-1")

	_, err = f.svc.Submit(ctx, entities.Session{}, "h-1", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	list, err := f.store.ListHarvests(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMintRejectsStrangerOnUnboundHarvest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, feasible(7))

	// record stored before the payout wallet was bound at submission
	require.NoError(t, f.store.AppendHarvest(ctx, entities.HarvestRecord{
		HarvestID:     "h-x",
		Validation:    &entities.ValidationResult{Feasible: true, TotalUSD: 7},
		PhotoVerified: true,
		Status:        entities.HarvestPending,
	}))

	_, err := f.svc.Mint(ctx, connected(testOther), "h-x")
	assert.ErrorIs(t, err, ErrUnauthorized)

	bal, err := f.ledger.BalanceOf(ctx, testOther)
	require.NoError(t, err)
	assert.Zero(t, bal.Sign())
}

func TestMintIsRecordedInStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, feasible(5))
	_, err := f.svc.Validate(ctx, fullForm())
	require.NoError(t, err)
	f.proveHarvest(t, "h-1")
	_, err = f.svc.Submit(ctx, connected(testFarmer), "h-1", "")
	require.NoError(t, err)

	receipt, err := f.svc.Mint(ctx, connected(testFarmer), "h-1")
	require.NoError(t, err)

	stored, err := f.store.GetHarvest(ctx, "h-1")
	require.NoError(t, err)
	assert.True(t, stored.Minted())
	assert.Equal(t, receipt.TxHash, stored.MintTx)
	require.NotNil(t, stored.MintedAt)
	assert.Equal(t, fixedNow, *stored.MintedAt)

	// a restarted gateway: same store, fresh ledger
	l2, err := ledger.NewMemoryLedger(testOwner, 1000)
	require.NoError(t, err)
	svc2, err := NewService(Deps{
		Store:     f.store,
		Verifier:  NewPhotoVerifier(f.store, echoOCR, time.Minute),
		Validator: feasible(5),
		Ledger:    l2,
	})
	require.NoError(t, err)

	_, err = svc2.Mint(ctx, connected(testFarmer), "h-1")
	assert.ErrorIs(t, err, ErrAlreadyMinted)
	bal, err := l2.BalanceOf(ctx, testFarmer)
	require.NoError(t, err)
	assert.Zero(t, bal.Sign())
}
