package harvest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// maxBody caps what we read from an upstream reply.
const maxBody = 1 << 20

// BreakerSettings tunes the circuit breaker in front of an upstream.
type BreakerSettings struct {
	Failures int
	OpenFor  time.Duration
	// OnStateChange is told whether the breaker is now open.
	OnStateChange func(name string, open bool)
}

// Upstream wraps HTTP calls to one external service behind a circuit breaker.
// There is no retry: a failed call is reported to the caller as is.
type Upstream struct {
	name    string
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// StatusError is a non-2xx reply.
type StatusError struct {
	Upstream string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s upstream status %d: %s", e.Upstream, e.Code, e.Body)
}

// NewUpstream builds a client for url. A zero timeout falls back to 10s.
func NewUpstream(name, url string, timeout time.Duration, bs BreakerSettings) *Upstream {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	fails := bs.Failures
	if fails < 1 {
		fails = 1
	}
	st := gobreaker.Settings{
		Name:    name,
		Timeout: bs.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
		// 4xx: il servizio risponde, non conta come guasto
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < 500
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	if bs.OnStateChange != nil {
		st.OnStateChange = func(name string, _, to gobreaker.State) {
			bs.OnStateChange(name, to == gobreaker.StateOpen)
		}
	}
	return &Upstream{
		name:    name,
		url:     strings.TrimSpace(url),
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

func (u *Upstream) Name() string { return u.name }

// Configured reports whether a URL was set.
func (u *Upstream) Configured() bool { return u != nil && u.url != "" }

// Open reports whether the breaker currently rejects calls.
func (u *Upstream) Open() bool { return u.breaker.State() == gobreaker.StateOpen }

// PostJSON marshals body and posts it, returning the raw reply body.
func (u *Upstream) PostJSON(ctx context.Context, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s encode request: %w", u.name, err)
	}
	return u.Post(ctx, "application/json", b)
}

// Post sends payload with the given content type.
// Transport failures, non-2xx replies and an open breaker all wrap ErrNetworkFailure.
func (u *Upstream) Post(ctx context.Context, contentType string, payload []byte) ([]byte, error) {
	if !u.Configured() {
		return nil, fmt.Errorf("%w: %s url not configured", ErrNetworkFailure, u.name)
	}
	res, err := u.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")

		resp, err := u.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s request error: %w", u.name, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return nil, fmt.Errorf("%s read error: %w", u.name, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{Upstream: u.name, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		return body, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	return res.([]byte), nil
}
