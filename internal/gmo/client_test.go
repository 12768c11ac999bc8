package gmo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(t *testing.T, srv *httptest.Server, trading bool) *Client {
	t.Helper()
	limiter := NewLimiter(Limits{PrivateGetPerSec: 100, PrivatePostPerSec: 100, WSSubPerSec: 100, PublicGetPerSec: 100})
	signer := NewSigner("test-key", "test-secret", 0)
	return NewClient(ClientConfig{
		PublicBase:     srv.URL,
		PrivateBase:    srv.URL,
		Timeout:        5 * time.Second,
		TradingEnabled: trading,
	}, limiter, signer)
}

func okEnvelope(data string) string {
	return `{"status":0,"data":` + data + `,"responsetime":"` +
		time.Now().UTC().Format("2006-01-02T15:04:05.000Z") + `"}`
}

func TestClient_DecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/status" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(okEnvelope(`{"status":"OPEN"}`)))
	}))
	defer srv.Close()

	c := testClient(t, srv, false)
	st, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Status != "OPEN" {
		t.Errorf("status = %q, want OPEN", st.Status)
	}
}

func TestClient_MapsBrokerCodes(t *testing.T) {
	cases := []struct {
		code string
		want Category
	}{
		{"ERR-5003", CatRateLimited},
		{"ERR-5008", CatClockSkew},
		{"ERR-5012", CatAuth},
		{"ERR-5201", CatMaintenance},
		{"ERR-5218", CatMarketClose},
		{"ERR-9999", CatValidation},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := `{"status":1,"messages":[{"message_code":"` + tc.code +
				`","message_string":"rejected"}],"responsetime":"2026-03-16T10:00:00.000Z"}`
			w.Write([]byte(resp))
		}))
		c := testClient(t, srv, false)
		_, err := c.Status(context.Background())
		if !IsCategory(err, tc.want) {
			t.Errorf("%s: got %v, want category %s", tc.code, err, tc.want)
		}
		var ae *APIError
		if asAPIError(err, &ae) && ae.Code != tc.code {
			t.Errorf("%s: code = %q", tc.code, ae.Code)
		}
		srv.Close()
	}
}

func TestClient_RetriesTransientOnly(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, srv, false)
	_, err := c.Status(context.Background())
	if !IsCategory(err, CatTransport) {
		t.Fatalf("expected TRANSPORT, got %v", err)
	}
	if n := calls.Load(); n != maxRetries {
		t.Errorf("attempts = %d, want %d", n, maxRetries)
	}
}

func TestClient_NoRetryOnPermanentRejection(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		resp := `{"status":1,"messages":[{"message_code":"ERR-5106","message_string":"invalid parameter"}],"responsetime":"2026-03-16T10:00:00.000Z"}`
		w.Write([]byte(resp))
	}))
	defer srv.Close()

	c := testClient(t, srv, false)
	_, err := c.Status(context.Background())
	if !IsCategory(err, CatValidation) {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("attempts = %d, want 1 (validation is not retryable)", n)
	}
}

func TestClient_Maps429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(t, srv, false)
	_, err := c.Status(context.Background())
	if !IsCategory(err, CatRateLimited) {
		t.Fatalf("expected RATE_LIMITED, got %v", err)
	}
}

func TestClient_PrivateCallsAreSigned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, h := range []string{"API-KEY", "API-TIMESTAMP", "API-SIGN"} {
			if r.Header.Get(h) == "" {
				t.Errorf("missing header %s", h)
			}
		}
		w.Write([]byte(okEnvelope(`[]`)))
	}))
	defer srv.Close()

	c := testClient(t, srv, false)
	if _, err := c.Assets(context.Background()); err != nil {
		t.Fatalf("Assets: %v", err)
	}
}

func TestClient_TradingGate(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(okEnvelope(`[]`)))
	}))
	defer srv.Close()

	c := testClient(t, srv, false)
	req := SpeedOrderRequest{Symbol: "USD_JPY", Side: "BUY", Size: "10000"}
	if _, err := c.SpeedOrder(context.Background(), req); !IsCategory(err, CatConfig) {
		t.Fatalf("expected CONFIG gate, got %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("gate leaked %d requests to the broker", n)
	}

	// With the flag on the same order goes through.
	c = testClient(t, srv, true)
	if _, err := c.SpeedOrder(context.Background(), req); err != nil {
		t.Fatalf("SpeedOrder enabled: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

func TestClient_ObservesServerTime(t *testing.T) {
	// The broker reports a clock one minute behind ours; once observed, a
	// signer with a tight skew ceiling must refuse to sign.
	skewed := time.Now().UTC().Add(-time.Minute).Format("2006-01-02T15:04:05.000Z")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":0,"data":{"status":"OPEN"},"responsetime":"` + skewed + `"}`))
	}))
	defer srv.Close()

	limiter := NewLimiter(DefaultLimits())
	signer := NewSigner("k", "s", 5*time.Second)
	c := NewClient(ClientConfig{PublicBase: srv.URL, PrivateBase: srv.URL}, limiter, signer)

	if _, err := c.Status(context.Background()); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if _, err := c.Assets(context.Background()); !IsCategory(err, CatClockSkew) {
		t.Fatalf("expected CLOCK_SKEW after skewed responsetime, got %v", err)
	}
}

func TestClient_CreateWSToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/ws-auth" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(okEnvelope(`"tok-abc123"`)))
	}))
	defer srv.Close()

	c := testClient(t, srv, false)
	tok, err := c.CreateWSToken(context.Background())
	if err != nil {
		t.Fatalf("CreateWSToken: %v", err)
	}
	if tok != "tok-abc123" {
		t.Errorf("token = %q", tok)
	}
}

func TestClient_ListUnwrapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := `{"list":[{"positionId":1,"symbol":"USD_JPY","side":"BUY","size":"10000","price":"150.120"}]}`
		w.Write([]byte(okEnvelope(data)))
	}))
	defer srv.Close()

	c := testClient(t, srv, false)
	got, err := c.OpenPositions(context.Background(), "USD_JPY")
	if err != nil {
		t.Fatalf("OpenPositions: %v", err)
	}
	if len(got) != 1 || got[0].PositionID != 1 || got[0].Price != "150.120" {
		b, _ := json.Marshal(got)
		t.Errorf("unexpected positions: %s", b)
	}
}
