package harvest

import (
	"sync"
	"time"

	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
)

// draftTTL bounds how long an unsubmitted draft is kept.
const draftTTL = 24 * time.Hour

type draft struct {
	rec       entities.HarvestRecord
	validated bool
	verified  bool
	touched   time.Time
}

// Tracker holds validated drafts and photo verifications until submission.
// Validation and photo proof may arrive in either order.
type Tracker struct {
	mu     sync.Mutex
	drafts map[string]*draft
	now    func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{drafts: make(map[string]*draft), now: time.Now}
}

// Put stores a validated draft, keeping any photo verification already seen.
func (t *Tracker) Put(rec entities.HarvestRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune()

	d, ok := t.drafts[rec.HarvestID]
	if !ok {
		d = &draft{}
		t.drafts[rec.HarvestID] = d
	}
	rec.PhotoVerified = rec.PhotoVerified || d.verified
	d.rec = rec
	d.validated = true
	d.verified = rec.PhotoVerified
	d.touched = t.now()
}

// MarkVerified records a successful photo check for harvestID.
func (t *Tracker) MarkVerified(harvestID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune()

	d, ok := t.drafts[harvestID]
	if !ok {
		d = &draft{rec: entities.HarvestRecord{HarvestID: harvestID}}
		t.drafts[harvestID] = d
	}
	d.verified = true
	d.rec.PhotoVerified = true
	d.touched = t.now()
}

// Get returns the validated draft for harvestID.
func (t *Tracker) Get(harvestID string) (entities.HarvestRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.drafts[harvestID]
	if !ok || !d.validated {
		return entities.HarvestRecord{}, false
	}
	return d.rec, true
}

// Verified reports whether a photo check succeeded for harvestID.
func (t *Tracker) Verified(harvestID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.drafts[harvestID]
	return ok && d.verified
}

func (t *Tracker) Remove(harvestID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.drafts, harvestID)
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.drafts)
}

func (t *Tracker) prune() {
	cutoff := t.now().Add(-draftTTL)
	for id, d := range t.drafts {
		if d.touched.Before(cutoff) {
			delete(t.drafts, id)
		}
	}
}
