package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/reviewcraft/pkg/observability"
	"github.com/matzehuels/reviewcraft/pkg/proxy"
	"github.com/matzehuels/reviewcraft/pkg/review"
)

func testReview() *review.Review {
	rv := &review.Review{Platform: review.Reddit, Name: "Jane Doe", Content: "Nice."}
	rv.SetDefaults(time.Now())
	return rv
}

func quietLogger() *log.Logger { return log.New(io.Discard) }

func TestRoutes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png"))
	}))
	defer upstream.Close()

	reg := prometheus.NewRegistry()
	s := New(Config{
		Review:   testReview(),
		Metrics:  observability.NewMetrics(reg),
		Gatherer: reg,
		Logger:   quietLogger(),
	})

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/", http.StatusOK, `id="review-preview"`},
		{"/preview", http.StatusOK, "Jane Doe"},
		{"/healthz", http.StatusOK, "ok"},
		{proxy.Path + "?url=" + url.QueryEscape(upstream.URL), http.StatusOK, "png"},
		{proxy.Path, http.StatusBadRequest, "Missing url parameter"},
		{"/metrics", http.StatusOK, "reviewcraft_http_requests_total"},
		{"/nope", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body missing %q", tt.wantBody)
			}
		})
	}
}

func TestTrustForwarded(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png"))
	}))
	defer upstream.Close()

	tests := []struct {
		name  string
		trust bool
		want  []int
	}{
		{"untrusted", false, []int{http.StatusOK, http.StatusTooManyRequests}},
		{"trusted", true, []int{http.StatusOK, http.StatusOK}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Config{
				Proxy:          proxy.New(proxy.Config{RateLimit: 0.001, Burst: 1, Logger: quietLogger()}),
				TrustForwarded: tt.trust,
				Logger:         quietLogger(),
			})
			for i, want := range tt.want {
				req := httptest.NewRequest(http.MethodGet, proxy.Path+"?url="+url.QueryEscape(upstream.URL), nil)
				req.Header.Set("X-Forwarded-For", []string{"198.51.100.1", "198.51.100.2"}[i])
				rec := httptest.NewRecorder()
				s.Handler().ServeHTTP(rec, req)
				if rec.Code != want {
					t.Errorf("request %d status = %d, want %d", i, rec.Code, want)
				}
			}
		})
	}
}

func TestPreviewWithoutReview(t *testing.T) {
	s := New(Config{Logger: quietLogger()})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	s.SetReview(testReview())
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status after SetReview = %d", rec.Code)
	}
}

func TestStartShutdown(t *testing.T) {
	s := New(Config{Review: testReview(), Logger: quietLogger()})
	ctx := context.Background()

	base, err := s.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !strings.HasPrefix(base, "http://127.0.0.1:") {
		t.Errorf("base = %q", base)
	}
	if _, err := s.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}

	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Shutdown(sctx); err != nil {
		t.Errorf("Shutdown() error: %v", err)
	}
	if _, err := http.Get(base + "/healthz"); err == nil {
		t.Error("server still answering after Shutdown()")
	}
}
