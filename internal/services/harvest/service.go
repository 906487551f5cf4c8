package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
	"github.com/LeonardoBeccarini/kelpcoins/internal/metrics"
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/messages"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/ledger"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/persistence"
)

// Deps wires a Service. Store, Verifier, Validator and Ledger are required.
type Deps struct {
	Store     persistence.Store
	Verifier  *PhotoVerifier
	Validator Validator
	Demo      *DemoValidator
	Ledger    ledger.Ledger
	Sensors   SensorSource
	Locator   Locator
	Events    EventSink
	Metrics   *metrics.Metrics
}

// Service runs the harvest-to-credit pipeline: acquisition, feasibility,
// photo proof, persistence and token issuance.
type Service struct {
	store     persistence.Store
	verifier  *PhotoVerifier
	validator Validator
	demo      *DemoValidator
	ledger    ledger.Ledger
	sensors   SensorSource
	locator   Locator
	events    EventSink
	metrics   *metrics.Metrics
	drafts    *Tracker
	now       func() time.Time
}

func NewService(d Deps) (*Service, error) {
	if d.Store == nil || d.Verifier == nil || d.Validator == nil || d.Ledger == nil {
		return nil, errors.New("harvest service: store, verifier, validator and ledger are required")
	}
	if d.Events == nil {
		d.Events = NopSink{}
	}
	if d.Demo == nil {
		d.Demo = NewDemoValidator()
	}
	return &Service{
		store:     d.Store,
		verifier:  d.Verifier,
		validator: d.Validator,
		demo:      d.Demo,
		ledger:    d.Ledger,
		sensors:   d.Sensors,
		locator:   d.Locator,
		events:    d.Events,
		metrics:   d.Metrics,
		drafts:    NewTracker(),
		now:       time.Now,
	}, nil
}

// FetchSensors returns the latest reading, or the reference reading when
// none is available. The flag reports the fallback.
func (s *Service) FetchSensors(ctx context.Context) (entities.SensorReading, bool) {
	if s.sensors != nil {
		if r, err := s.sensors.Latest(ctx); err == nil {
			return r, false
		}
	}
	return entities.ReferenceReading(), true
}

// Prepare normalises the form and fills what the farmer left out.
func (s *Service) Prepare(ctx context.Context, form RawHarvestForm) (entities.HarvestRecord, error) {
	n, err := Normalize(form, s.now())
	if err != nil {
		return entities.HarvestRecord{}, err
	}
	rec := n.Record
	if n.SensorsProvided && !rec.DefaultLocationUsed {
		return rec, nil
	}

	acq := Acquire(ctx, s.locator, s.sensors)
	if !n.SensorsProvided {
		rec.Sensors = acq.Reading
	}
	// solo una posizione vera del farmer sostituisce il default
	if rec.DefaultLocationUsed && !acq.DefaultLocationUsed && !acq.Location.Fallback {
		rec.Latitude = acq.Location.Latitude
		rec.Longitude = acq.Location.Longitude
		rec.DefaultLocationUsed = false
	}
	return rec, nil
}

// Validate prepares the draft and runs the feasibility computation on it.
// The verdict is kept server side for the later submission.
func (s *Service) Validate(ctx context.Context, form RawHarvestForm) (entities.HarvestRecord, error) {
	rec, err := s.Prepare(ctx, form)
	if err != nil {
		return entities.HarvestRecord{}, err
	}

	res, err := s.validator.Validate(ctx, rec.Sensors, rec.Biomass, rec.IsDryInput)
	s.metrics.ObserveValidation(sourceOf(s.validator), res.Feasible, err)
	if err != nil {
		log.Warnw("harvest validation failed", "harvest", rec.HarvestID, "err", err)
		return entities.HarvestRecord{}, err
	}
	rec.Validation = &res
	s.drafts.Put(rec)
	if stored, _ := s.drafts.Get(rec.HarvestID); stored.PhotoVerified {
		rec.PhotoVerified = true
	}

	log.Infow("harvest validated",
		"harvest", rec.HarvestID, "feasible", res.Feasible, "ratio", res.Ratio,
		"total_usd", res.TotalUSD, "source", res.Source)
	s.emit(ctx, messages.HarvestValidated, rec, "")
	return rec, nil
}

// ValidateDemo is the sensor-range check on a wet weight in kilograms.
func (s *Service) ValidateDemo(harvestID string, wKg float64, reading entities.SensorReading) (DemoResponse, error) {
	if wKg <= 0 {
		return DemoResponse{}, fmt.Errorf("%w: W_kg must be positive", ErrInvalidInput)
	}
	resp := s.demo.Check(reading, wKg)
	s.metrics.ObserveValidation(entities.SourceDemo, resp.IsValid, nil)
	log.Debugw("demo validation", "harvest", harvestID, "valid", resp.IsValid)
	return resp, nil
}

// GenerateCode issues a one-time code the farmer must photograph.
func (s *Service) GenerateCode(ctx context.Context, harvestID string) (string, error) {
	code, err := s.verifier.Issue(ctx, harvestID)
	if err != nil {
		return "", err
	}
	log.Infow("harvest code issued", "harvest", harvestID)
	return code, nil
}

// VerifyPhoto checks the photo against the stored code. A miss is not an
// error; the farmer may retake the picture.
func (s *Service) VerifyPhoto(ctx context.Context, harvestID string, photo Photo) (bool, error) {
	ok, err := s.verifier.VerifyPhoto(ctx, harvestID, photo)
	s.metrics.ObserveVerification(ok, err)
	if err != nil && !ok {
		return false, err
	}
	if err != nil {
		log.Warnw("photo verified but code not consumed", "harvest", harvestID, "err", err)
	}
	if !ok {
		log.Infow("photo did not show the harvest code", "harvest", harvestID)
		return false, nil
	}

	s.drafts.MarkVerified(harvestID)
	// verifica arrivata dopo il submit: aggiorna il record salvato
	if rec, gerr := s.store.GetHarvest(ctx, harvestID); gerr == nil && !rec.PhotoVerified {
		rec.PhotoVerified = true
		if uerr := s.store.UpdateHarvest(ctx, rec); uerr != nil {
			log.Errorw("failed to flag stored harvest as verified", "harvest", harvestID, "err", uerr)
		}
	}
	s.emit(ctx, messages.PhotoVerified, entities.HarvestRecord{HarvestID: harvestID}, "")
	return true, nil
}

// Submit persists the validated draft. Only feasible harvests are accepted.
// The payout wallet is bound here: explicit wallet, then the form wallet,
// then the connected session. A harvest without one is rejected.
func (s *Service) Submit(ctx context.Context, sess entities.Session, harvestID, wallet string) (entities.HarvestRecord, error) {
	harvestID = strings.TrimSpace(harvestID)
	if harvestID == "" {
		return entities.HarvestRecord{}, fmt.Errorf("%w: harvestId required", ErrInvalidInput)
	}
	rec, ok := s.drafts.Get(harvestID)
	if !ok {
		return entities.HarvestRecord{}, fmt.Errorf("%w: harvest %s has not been validated", ErrNotEligible, harvestID)
	}
	if !rec.Feasible() {
		return entities.HarvestRecord{}, fmt.Errorf("%w: harvest %s is not feasible", ErrNotEligible, harvestID)
	}

	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		wallet = rec.WalletAddress
	}
	if wallet == "" && sess.Connected {
		wallet = sess.WalletAddress
	}
	if wallet == "" {
		return entities.HarvestRecord{}, fmt.Errorf("%w: no payout wallet for harvest %s", ErrInvalidInput, harvestID)
	}
	if !ledger.ValidAddress(wallet) {
		return entities.HarvestRecord{}, fmt.Errorf("%w: wallet %q", ErrInvalidInput, wallet)
	}
	rec.WalletAddress = wallet
	rec.PhotoVerified = rec.PhotoVerified || s.drafts.Verified(harvestID)
	rec.SubmittedAt = s.now().UTC()
	rec.Status = entities.HarvestPending

	if err := s.store.AppendHarvest(ctx, rec); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return entities.HarvestRecord{}, fmt.Errorf("%w: %v", ErrNotEligible, err)
		}
		return entities.HarvestRecord{}, fmt.Errorf("persist harvest %s: %w", harvestID, err)
	}
	s.drafts.Remove(harvestID)
	s.metrics.ObserveSubmission()

	log.Infow("harvest submitted", "harvest", harvestID, "wallet", wallet, "photo_verified", rec.PhotoVerified)
	s.emit(ctx, messages.HarvestSubmitted, rec, "")
	return rec, nil
}

// List returns every stored harvest in submission order.
func (s *Service) List(ctx context.Context) ([]entities.HarvestRecord, error) {
	return s.store.ListHarvests(ctx)
}

// Mint credits total_usd PhycoCoins to the harvest wallet. The connected
// wallet must own the harvest, and both the feasibility and photo gates
// must hold. The ledger call is made as the token owner.
func (s *Service) Mint(ctx context.Context, sess entities.Session, harvestID string) (entities.MintReceipt, error) {
	if !sess.Connected || strings.TrimSpace(sess.WalletAddress) == "" {
		return entities.MintReceipt{}, fmt.Errorf("%w: wallet not connected", ErrUnauthorized)
	}
	rec, err := s.store.GetHarvest(ctx, harvestID)
	if err != nil {
		return entities.MintReceipt{}, err
	}

	to := rec.WalletAddress
	if to == "" || !sess.Owns(to) {
		return entities.MintReceipt{}, fmt.Errorf("%w: connected wallet %s does not own harvest %s", ErrUnauthorized, sess.WalletAddress, harvestID)
	}
	if rec.Minted() {
		return entities.MintReceipt{}, fmt.Errorf("%w: %s (tx %s)", ErrAlreadyMinted, harvestID, rec.MintTx)
	}
	if !rec.Feasible() {
		return entities.MintReceipt{}, fmt.Errorf("%w: harvest %s is not feasible", ErrNotEligible, harvestID)
	}
	if !rec.PhotoVerified && !s.drafts.Verified(harvestID) {
		return entities.MintReceipt{}, fmt.Errorf("%w: harvest %s has no verified photo", ErrNotEligible, harvestID)
	}

	v := rec.Validation
	amount, err := ledger.FloatUnits(v.TotalUSD)
	if err != nil || amount.Sign() <= 0 {
		return entities.MintReceipt{}, fmt.Errorf("%w: harvest %s has no value to mint", ErrNotEligible, harvestID)
	}

	tx, err := s.ledger.Mint(ctx, s.ledger.Owner(), to, amount, harvestID)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidAddress) {
			return entities.MintReceipt{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return entities.MintReceipt{}, err
	}
	mintedAt := s.now().UTC()
	rec.MintTx = tx
	rec.MintedAt = &mintedAt
	if err := s.store.UpdateHarvest(ctx, rec); err != nil {
		// i coin sono gia' accreditati: il ledger resta idempotente sul ref
		log.Errorw("failed to record mint on stored harvest", "harvest", harvestID, "tx", tx, "err", err)
	}
	bal, err := s.ledger.BalanceOf(ctx, to)
	if err != nil {
		return entities.MintReceipt{}, err
	}

	receipt := entities.MintReceipt{
		HarvestID:  harvestID,
		To:         to,
		TotalCoins: v.TotalUSD,
		Breakdown: entities.CoinBreakdown{
			Nitrogen:   v.ValueNUSD,
			Phosphorus: v.ValuePUSD,
			Carbon:     v.ValueCUSD,
		},
		TxHash:   tx,
		Balance:  ledger.FormatUnits(bal),
		MintedAt: mintedAt,
	}
	s.metrics.ObserveMint(v.TotalUSD)
	log.Infow("coins minted", "harvest", harvestID, "to", to, "coins", v.TotalUSD, "tx", tx)
	s.emit(ctx, messages.CoinsMinted, rec, tx)
	return receipt, nil
}

func (s *Service) emit(ctx context.Context, typ string, rec entities.HarvestRecord, detail string) {
	ev := messages.HarvestEvent{
		Type:          typ,
		HarvestID:     rec.HarvestID,
		WalletAddress: rec.WalletAddress,
		Detail:        detail,
		Timestamp:     s.now().UTC(),
	}
	if v := rec.Validation; v != nil {
		ev.Feasible = v.Feasible
		ev.Ratio = v.Ratio
		ev.TotalUSD = v.TotalUSD
		ev.Source = v.Source
	}
	s.events.Publish(ctx, ev)
}

func sourceOf(v Validator) string {
	if _, ok := v.(*DemoValidator); ok {
		return entities.SourceDemo
	}
	return entities.SourceModel
}
