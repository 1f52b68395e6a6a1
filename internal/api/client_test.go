package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/polydata/esports-collector/internal/ratelimit"
)

func testLimiter() *ratelimit.Limiter {
	cfg := ratelimit.DefaultConfig()
	cfg.PenaltyMin = time.Millisecond
	cfg.PenaltyMax = 5 * time.Millisecond
	return ratelimit.New(cfg, nil)
}

func testClient(srv *httptest.Server, opts ...ClientOption) *Client {
	opts = append([]ClientOption{
		WithBaseURLs(srv.URL, srv.URL, srv.URL),
		WithRetries(3, time.Millisecond),
	}, opts...)
	return NewClient(testLimiter(), opts...)
}

func TestDoWithRetry_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"events":[]}`))
	}))
	defer srv.Close()

	c := testClient(srv)
	if _, err := c.PublicSearch(context.Background(), "cdl", 1); err != nil {
		t.Fatalf("PublicSearch = %v, want nil after retries", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
}

func TestDoWithRetry_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(srv)
	_, err := c.PriceHistory(context.Background(), "tok", 0, 100, "1h")
	if err == nil {
		t.Fatal("PriceHistory = nil error, want APIError")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d calls, want 1 (no retry on 400)", got)
	}
}

func TestDoWithRetry_RateLimitArmsLimiterPenalty(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := testClient(srv)
	if _, err := c.TradePage(context.Background(), "cond", 0, 100); err != nil {
		t.Fatalf("TradePage = %v, want nil (429 absorbed)", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server saw %d calls, want 2", got)
	}
}

func TestDoWithRetry_ExhaustionReturnsLastError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv, WithRetries(2, time.Millisecond))
	_, err := c.Orderbook(context.Background(), "tok")
	if err == nil {
		t.Fatal("Orderbook = nil error, want retry exhaustion")
	}
}

func TestPublicSearch_QueryParams(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"events":[{"id":"e1","title":"CDL Major","markets":[]}]}`))
	}))
	defer srv.Close()

	c := testClient(srv)
	resp, err := c.PublicSearch(context.Background(), "optic texas", 2)
	if err != nil {
		t.Fatalf("PublicSearch = %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].ID != "e1" {
		t.Errorf("events = %+v, want one event e1", resp.Events)
	}
	for _, want := range []string{"q=optic+texas", "page=2", "_limit=100"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestPriceHistory_WrappedAndFiltered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"history":[
			{"t":100,"p":0.40},
			{"t":200,"p":1.5},
			{"p":0.5},
			{"timestamp":"300","price":"0.50"}
		]}`))
	}))
	defer srv.Close()

	c := testClient(srv)
	points, err := c.PriceHistory(context.Background(), "tok", 0, 400, "1h")
	if err != nil {
		t.Fatalf("PriceHistory = %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2 (out-of-range and timeless dropped)", len(points))
	}
	if points[0].Time() != 100 || points[0].Value() != 0.40 {
		t.Errorf("point[0] = (%d, %v), want (100, 0.40)", points[0].Time(), points[0].Value())
	}
	if points[1].Time() != 300 || points[1].Value() != 0.50 {
		t.Errorf("point[1] = (%d, %v), want (300, 0.50)", points[1].Time(), points[1].Value())
	}
}

func TestPriceHistory_BareList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"t":100,"p":0.42}]`))
	}))
	defer srv.Close()

	c := testClient(srv)
	points, err := c.PriceHistory(context.Background(), "tok", 0, 200, "1h")
	if err != nil {
		t.Fatalf("PriceHistory = %v", err)
	}
	if len(points) != 1 || points[0].Value() != 0.42 {
		t.Errorf("points = %+v, want one point at 0.42", points)
	}
}

func TestTradePage_WrappedForms(t *testing.T) {
	bodies := []string{
		`[{"id":"a","timestamp":100,"price":0.4,"size":10,"side":"buy"}]`,
		`{"data":[{"id":"b","timestamp":200,"price":0.5,"size":5,"side":"SELL"}]}`,
		`{"trades":[{"id":"c","timestamp":300,"price":0.6,"amount":2}]}`,
	}
	var idx atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(bodies[idx.Add(1)-1]))
	}))
	defer srv.Close()

	c := testClient(srv)
	for i, wantID := range []string{"a", "b", "c"} {
		trades, err := c.TradePage(context.Background(), "cond", 0, 100)
		if err != nil {
			t.Fatalf("page %d: TradePage = %v", i, err)
		}
		if len(trades) != 1 || trades[0].ID != wantID {
			t.Errorf("page %d: trades = %+v, want id %s", i, trades, wantID)
		}
	}
}

func TestOpenInterest_Forms(t *testing.T) {
	bodies := []string{`12345.5`, `{"openInterest":99}`, `{"value":"7.5"}`, `{}`}
	wants := []struct {
		v  float64
		ok bool
	}{{12345.5, true}, {99, true}, {7.5, true}, {0, false}}

	var idx atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(bodies[idx.Add(1)-1]))
	}))
	defer srv.Close()

	c := testClient(srv)
	for i, want := range wants {
		v, ok, err := c.OpenInterest(context.Background(), "cond")
		if err != nil {
			t.Fatalf("case %d: OpenInterest = %v", i, err)
		}
		if v != want.v || ok != want.ok {
			t.Errorf("case %d: = (%v, %v), want (%v, %v)", i, v, ok, want.v, want.ok)
		}
	}
}
