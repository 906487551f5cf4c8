package harvest

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/kelpcoins/internal/services/persistence"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// GenerateCode returns a uniformly random six digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}

// Verify reports whether the recognised text contains the code verbatim.
func Verify(text, code string) bool {
	return code != "" && strings.Contains(text, code)
}

// Photo is an uploaded image.
type Photo struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PhotoVerifier binds code generation and photo verification to the same
// stored value.
type PhotoVerifier struct {
	codes persistence.CodeStore
	ocr   Recognizer
	ttl   time.Duration
	now   func() time.Time
}

func NewPhotoVerifier(codes persistence.CodeStore, ocr Recognizer, ttl time.Duration) *PhotoVerifier {
	return &PhotoVerifier{codes: codes, ocr: ocr, ttl: ttl, now: time.Now}
}

// Issue creates and stores a fresh code for harvestID, replacing any older one.
func (v *PhotoVerifier) Issue(ctx context.Context, harvestID string) (string, error) {
	if strings.TrimSpace(harvestID) == "" {
		return "", fmt.Errorf("%w: harvestId required", ErrInvalidInput)
	}
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}
	c := persistence.Code{HarvestID: harvestID, Code: code}
	if v.ttl > 0 {
		c.ExpiresAt = v.now().Add(v.ttl)
	}
	if err := v.codes.SaveCode(ctx, c); err != nil {
		return "", fmt.Errorf("store code for %s: %w", harvestID, err)
	}
	return code, nil
}

// VerifyPhoto recognises the photo text and looks for the stored code.
// A match consumes the code; a miss leaves it in place for another capture.
func (v *PhotoVerifier) VerifyPhoto(ctx context.Context, harvestID string, photo Photo) (bool, error) {
	c, err := v.codes.LookupCode(ctx, harvestID)
	if errors.Is(err, persistence.ErrNotFound) {
		return false, fmt.Errorf("%w: %s", ErrCodeNotFound, harvestID)
	}
	if err != nil {
		return false, err
	}
	if c.Expired(v.now()) {
		_ = v.codes.DeleteCode(ctx, harvestID)
		return false, fmt.Errorf("%w: %s", ErrCodeNotFound, harvestID)
	}
	if len(photo.Data) == 0 {
		return false, fmt.Errorf("%w: empty photo", ErrInvalidInput)
	}

	text, err := v.ocr.Recognize(ctx, photo)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrOCRFailure, err)
	}
	if !Verify(text, c.Code) {
		return false, nil
	}
	if err := v.codes.DeleteCode(ctx, harvestID); err != nil {
		return true, fmt.Errorf("consume code for %s: %w", harvestID, err)
	}
	return true, nil
}
