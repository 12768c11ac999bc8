package gmo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSigner_Headers(t *testing.T) {
	now := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	s := NewSigner("my-key", "my-secret", 0)
	s.now = fixedClock(now)

	body := []byte(`{"symbol":"USD_JPY"}`)
	h, err := s.Headers("POST", "/v1/speedOrder", body)
	if err != nil {
		t.Fatalf("Headers: %v", err)
	}
	if h["API-KEY"] != "my-key" {
		t.Errorf("API-KEY = %q", h["API-KEY"])
	}
	wantTS := strconv.FormatInt(now.UnixMilli(), 10)
	if h["API-TIMESTAMP"] != wantTS {
		t.Errorf("API-TIMESTAMP = %q, want %q", h["API-TIMESTAMP"], wantTS)
	}

	mac := hmac.New(sha256.New, []byte("my-secret"))
	mac.Write([]byte(wantTS + "POST" + "/v1/speedOrder"))
	mac.Write(body)
	if want := hex.EncodeToString(mac.Sum(nil)); h["API-SIGN"] != want {
		t.Errorf("API-SIGN = %q, want %q", h["API-SIGN"], want)
	}
}

func TestSigner_NilBodySignsSameAsEmpty(t *testing.T) {
	now := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	a := NewSigner("k", "s", 0)
	a.now = fixedClock(now)
	b := NewSigner("k", "s", 0)
	b.now = fixedClock(now)

	ha, err := a.Headers("GET", "/v1/account/assets", nil)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := b.Headers("GET", "/v1/account/assets", []byte{})
	if err != nil {
		t.Fatal(err)
	}
	if ha["API-SIGN"] != hb["API-SIGN"] {
		t.Errorf("nil body and empty body signed differently")
	}
}

func TestSigner_Unconfigured(t *testing.T) {
	s := NewSigner("", "", 0)
	if s.Configured() {
		t.Error("Configured() = true without credentials")
	}
	if _, err := s.Headers("GET", "/v1/account/assets", nil); !IsCategory(err, CatAuth) {
		t.Errorf("expected AUTH error, got %v", err)
	}
}

func TestSigner_RefusesOnClockSkew(t *testing.T) {
	now := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	s := NewSigner("k", "s", 5*time.Second)
	s.now = fixedClock(now)

	// Server reports a time 30 seconds behind the local clock.
	s.ObserveServerTime(now.Add(-30 * time.Second))
	if _, err := s.Headers("GET", "/v1/account/assets", nil); !IsCategory(err, CatClockSkew) {
		t.Fatalf("expected CLOCK_SKEW error, got %v", err)
	}

	// Within tolerance signs fine.
	s.ObserveServerTime(now.Add(-2 * time.Second))
	if _, err := s.Headers("GET", "/v1/account/assets", nil); err != nil {
		t.Fatalf("expected success within tolerance, got %v", err)
	}
}

func TestSigner_SkewTracksObservation(t *testing.T) {
	now := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	s := NewSigner("k", "s", time.Minute)
	s.now = fixedClock(now)

	if d := s.Skew(); d != 0 {
		t.Errorf("skew before any observation = %v, want 0", d)
	}
	s.ObserveServerTime(now.Add(-7 * time.Second))
	if d := s.Skew(); d != 7*time.Second {
		t.Errorf("skew = %v, want 7s", d)
	}

	// An hour later the same offset should still be reported: both clocks
	// advance together.
	s.now = fixedClock(now.Add(time.Hour))
	if d := s.Skew(); d != 7*time.Second {
		t.Errorf("skew after an hour = %v, want 7s", d)
	}
}
