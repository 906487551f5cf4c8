package main

import (
	"context"
	"errors"

	"github.com/LeonardoBeccarini/kelpcoins/internal/config"
	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
	"github.com/LeonardoBeccarini/kelpcoins/internal/metrics"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/harvest"
)

// errOCRDisabled is returned for every photo when OCR_URL is unset.
var errOCRDisabled = errors.New("ocr service not configured")

// upstreams builds the prediction and OCR clients, one breaker each.
func upstreams(cfg config.Config, onState func(string, bool)) (prediction, ocr *harvest.Upstream) {
	bs := harvest.BreakerSettings{
		Failures:      cfg.BreakerFailures,
		OpenFor:       cfg.BreakerOpenFor,
		OnStateChange: onState,
	}
	prediction = harvest.NewUpstream("prediction", cfg.PredictionURL, cfg.HTTPTimeout, bs)
	ocr = harvest.NewUpstream("ocr", cfg.OCRURL, cfg.HTTPTimeout, bs)
	return prediction, ocr
}

// buildValidator picks the feasibility check from VALIDATION_MODE.
func buildValidator(cfg config.Config, up *harvest.Upstream, m *metrics.Metrics) (harvest.Validator, error) {
	if cfg.ValidationMode == config.ModeDemo {
		log.Warnw("demo validation mode: sensor ranges only, no prediction model")
		return harvest.NewDemoValidator(), nil
	}
	return harvest.NewPredictionClient(up, m.ObservePrediction)
}

func buildRecognizer(up *harvest.Upstream) harvest.Recognizer {
	if !up.Configured() {
		log.Warnw("OCR_URL not set: photo verification will fail")
		return harvest.RecognizerFunc(func(context.Context, harvest.Photo) (string, error) {
			return "", errOCRDisabled
		})
	}
	return harvest.NewHTTPRecognizer(up)
}
