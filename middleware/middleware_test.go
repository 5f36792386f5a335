package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/nijaru/ytdl-web/config"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(okHandler), mark("a"), nil, mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "a,b" {
		t.Errorf("expected a,b got %v", order)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rr.Header().Get(RequestIDHeader) != seen {
		t.Errorf("expected generated id in context and header, got %q / %q", seen, rr.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc-123" {
		t.Errorf("expected incoming id to be kept, got %q", seen)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	logger, hook := test.NewNullLogger()

	var entry *logrus.Entry
	h := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entry = GetLogger(r.Context())
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("nope"))
		}),
		RequestID(),
		Logging(logger),
	)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if entry == nil || entry.Data["path"] != "/api/health" {
		t.Fatalf("expected request logger in context, got %v", entry)
	}
	last := hook.LastEntry()
	if last == nil || last.Level != logrus.WarnLevel {
		t.Fatalf("expected warn level completion log, got %v", last)
	}
	if last.Data["status"] != http.StatusBadRequest || last.Data["size"] != int64(4) {
		t.Errorf("unexpected fields %v", last.Data)
	}
	if last.Data["request_id"] == "" {
		t.Errorf("expected request id field")
	}
}

func TestLoggingResponseWriterFlush(t *testing.T) {
	rr := httptest.NewRecorder()
	lrw := newLoggingResponseWriter(rr)

	var w http.ResponseWriter = lrw
	f, ok := w.(http.Flusher)
	if !ok {
		t.Fatal("expected writer to implement http.Flusher")
	}
	lrw.Write([]byte("x"))
	f.Flush()

	if !rr.Flushed || !lrw.wroteHeader {
		t.Errorf("expected flush to reach underlying recorder")
	}
}

func TestGetLoggerDefault(t *testing.T) {
	if GetLogger(context.Background()) == nil {
		t.Error("expected fallback logger")
	}
}

func TestRecovery(t *testing.T) {
	logger, hook := test.NewNullLogger()

	h := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"error":"Internal server error"`) {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
	if hook.LastEntry() == nil || hook.LastEntry().Message != "Panic recovered" {
		t.Errorf("expected panic to be logged")
	}
}

func TestRecoveryAfterBodyStarted(t *testing.T) {
	logger, _ := test.NewNullLogger()

	tests := []struct {
		name string
		mws  []func(http.Handler) http.Handler
	}{
		{"recovery alone", []func(http.Handler) http.Handler{Recovery(logger)}},
		{"inside logging", []func(http.Handler) http.Handler{Logging(logger), Recovery(logger)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Chain(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Write([]byte("BYTES"))
					panic("late")
				}),
				tt.mws...,
			)

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

			if rr.Body.String() != "BYTES" {
				t.Errorf("expected no JSON appended, got %q", rr.Body.String())
			}
		})
	}
}

func TestRecoveryWriterFlush(t *testing.T) {
	logger, _ := test.NewNullLogger()

	h := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("expected writer to implement http.Flusher")
		}
		f.Flush()
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if !rr.Flushed {
		t.Error("expected flush to reach underlying recorder")
	}
}

func TestCORS(t *testing.T) {
	cfg := config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://a.example"},
		AllowedMethods: []string{"GET", "POST"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         60,
	}
	h := CORS(cfg)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://a.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://a.example" {
		t.Errorf("expected origin echoed, got %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
	if rr.Header().Get("Access-Control-Expose-Headers") != "Content-Disposition" {
		t.Errorf("expected exposed headers")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("unexpected allow origin for unknown origin")
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/", nil))
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected preflight 204, got %d", rr.Code)
	}
}

func TestCORSWildcard(t *testing.T) {
	h := CORS(config.CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}})(http.HandlerFunc(okHandler))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("expected wildcard origin")
	}
}

func TestTimeoutSetsDeadline(t *testing.T) {
	var hasDeadline bool
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !hasDeadline {
		t.Error("expected deadline on request context")
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(60, 2, nil)
	h := rl.Middleware(http.HandlerFunc(okHandler))

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if do("10.0.0.1") != http.StatusOK || do("10.0.0.1") != http.StatusOK {
		t.Fatal("expected burst to be allowed")
	}
	if code := do("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", code)
	}
	if code := do("10.0.0.2"); code != http.StatusOK {
		t.Errorf("expected other client unaffected, got %d", code)
	}
}

func TestRateLimiterSweepsStaleClients(t *testing.T) {
	rl := NewRateLimiter(60, 1, nil)
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(staleClientAfter + time.Minute)
	rl.Allow("b")

	if _, ok := rl.clients["a"]; ok {
		t.Errorf("expected stale client to be removed")
	}
}

func TestRateLimiterIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	h := rl.Middleware(http.HandlerFunc(okHandler))

	allowed := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code == http.StatusOK {
			allowed++
		}
	}

	if allowed != 1 {
		t.Errorf("expected only the burst to pass, %d requests allowed", allowed)
	}
}

func TestRateLimiterTrustedProxy(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatal(err)
	}
	rl := NewRateLimiter(1, 1, trusted)
	h := rl.Middleware(http.HandlerFunc(okHandler))

	do := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:4000"
		req.Header.Set("X-Forwarded-For", forwarded)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if do("203.0.113.1") != http.StatusOK || do("203.0.113.2") != http.StatusOK {
		t.Fatal("expected distinct clients behind the proxy to get their own bucket")
	}
	if code := do("203.0.113.1"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for repeated client, got %d", code)
	}
}

func TestParseTrustedProxies(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.7 ", ""})
	if err != nil {
		t.Fatalf("ParseTrustedProxies() error = %v", err)
	}
	if len(proxies) != 2 {
		t.Fatalf("expected 2 entries, got %v", proxies)
	}
	if !proxies.contains("192.0.2.7") || proxies.contains("192.0.2.8") {
		t.Errorf("unexpected single address match")
	}

	if _, err := ParseTrustedProxies([]string{"proxy.local"}); err == nil {
		t.Error("expected error for hostname")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")

	var none TrustedProxies
	if got := none.ClientIP(req); got != "192.0.2.1" {
		t.Errorf("expected peer address without trusted proxies, got %q", got)
	}

	trusted, _ := ParseTrustedProxies([]string{"192.0.2.0/24", "10.0.0.0/8"})
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 203.0.113.9, 10.0.0.5")
	if got := trusted.ClientIP(req); got != "203.0.113.9" {
		t.Errorf("expected nearest untrusted hop, got %q", got)
	}

	req.Header.Del("X-Forwarded-For")
	if got := trusted.ClientIP(req); got != "192.0.2.1" {
		t.Errorf("expected peer address without header, got %q", got)
	}
}
