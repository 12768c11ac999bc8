package gmo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"
)

// Signer builds the API-KEY / API-TIMESTAMP / API-SIGN header triple for
// private requests. The signed message is
//
//	timestamp_ms || method || path || body
//
// where path starts at /v1 (the /private prefix is never signed) and body
// is the literal JSON for writes, empty for reads. The secret never leaves
// this type and is never logged.
type Signer struct {
	apiKey string
	secret []byte

	// Clock-skew guard: the signer refuses to sign when the local clock
	// has drifted more than maxSkew from the last observed server time.
	maxSkew time.Duration

	mu         sync.Mutex
	serverTime time.Time // last responsetime seen from the broker
	observedAt time.Time // local time of that observation

	// now is the clock; tests may replace it.
	now func() time.Time
}

// NewSigner creates a signer. maxSkew <= 0 disables the skew check.
func NewSigner(apiKey, secret string, maxSkew time.Duration) *Signer {
	return &Signer{
		apiKey:  apiKey,
		secret:  []byte(secret),
		maxSkew: maxSkew,
		now:     time.Now,
	}
}

// Configured reports whether credentials are present. Without them the
// gateway runs public-only.
func (s *Signer) Configured() bool { return s.apiKey != "" && len(s.secret) > 0 }

// ObserveServerTime records a broker responsetime for skew tracking.
func (s *Signer) ObserveServerTime(t time.Time) {
	if t.IsZero() {
		return
	}
	s.mu.Lock()
	s.serverTime = t
	s.observedAt = s.now()
	s.mu.Unlock()
}

// skew returns the current estimated local-vs-server clock offset.
// Zero until a server time has been observed.
func (s *Signer) skew() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.serverTime.IsZero() {
		return 0
	}
	// Server time advanced by the same wall-clock interval since observation.
	expected := s.serverTime.Add(s.now().Sub(s.observedAt))
	d := s.now().Sub(expected)
	if d < 0 {
		d = -d
	}
	return d
}

// Skew exposes the current estimated offset for monitoring.
func (s *Signer) Skew() time.Duration { return s.skew() }

// Headers signs one request. method is the HTTP verb, path begins with
// /v1/..., body is the exact JSON bytes to be transmitted (nil for reads).
func (s *Signer) Headers(method, path string, body []byte) (map[string]string, error) {
	if !s.Configured() {
		return nil, &APIError{Category: CatAuth, Message: "api key/secret not configured"}
	}
	if s.maxSkew > 0 {
		if d := s.skew(); d > s.maxSkew {
			return nil, &APIError{
				Category: CatClockSkew,
				Message:  "local clock differs from server by " + d.String(),
			}
		}
	}

	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(ts))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)

	return map[string]string{
		"API-KEY":       s.apiKey,
		"API-TIMESTAMP": ts,
		"API-SIGN":      hex.EncodeToString(mac.Sum(nil)),
	}, nil
}
