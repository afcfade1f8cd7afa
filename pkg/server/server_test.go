package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/haivivi/identag/pkg/classifier"
	"github.com/haivivi/identag/pkg/features"
	"github.com/haivivi/identag/pkg/tagcache"
	"github.com/haivivi/identag/pkg/tagger"
)

type nounPredictor struct{}

func (nounPredictor) Predict(features.Vector) (classifier.Prediction, error) {
	return classifier.Prediction{Label: "N", Confidence: 1}, nil
}

func newTestServer(t *testing.T, svc Tagger) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	if s, ok := svc.(*tagger.Service); ok {
		m, err := tagger.NewMetrics(reg, nil)
		if err != nil {
			t.Fatal(err)
		}
		s.Metrics = m
	}
	ts := httptest.NewServer(New(":0", svc, Options{Gatherer: reg, Version: "test"}).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newService(t *testing.T) *tagger.Service {
	t.Helper()
	cache := tagcache.NewMemory(nil)
	t.Cleanup(func() { cache.Close() })
	return &tagger.Service{Extractor: &features.Extractor{}, Predictor: nounPredictor{}, Cache: cache}
}

func get(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestTagRoutes(t *testing.T) {
	ts := newTestServer(t, newService(t))

	var res tagger.Result
	if code := get(t, ts.URL+"/tag/numberArray/DECLARATION", &res); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(res.Tags) != 2 || res.Cached {
		t.Fatalf("result = %+v", res)
	}

	var probe ProbeBody
	get(t, ts.URL+"/probe/proj", &probe)
	if probe.Exists {
		t.Fatal("namespace exists before first tag")
	}

	get(t, ts.URL+"/tag/numberArray/DECLARATION/proj", &res)
	if res.Cached {
		t.Fatal("first namespaced call should compute")
	}
	get(t, ts.URL+"/tag/numberArray/DECLARATION/proj", &res)
	if !res.Cached {
		t.Fatal("second namespaced call should hit the cache")
	}

	get(t, ts.URL+"/probe/proj", &probe)
	if !probe.Exists || probe.Namespace != "proj" {
		t.Fatalf("probe = %+v", probe)
	}
}

func TestEscapedIdentifier(t *testing.T) {
	ts := newTestServer(t, newService(t))
	var res tagger.Result
	if code := get(t, ts.URL+"/tag/max%20value/ATTRIBUTE", &res); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if res.Identifier != "max value" || len(res.Tags) != 2 {
		t.Fatalf("result = %+v", res)
	}
}

func TestErrorResponses(t *testing.T) {
	ts := newTestServer(t, newService(t))
	tests := []struct {
		path   string
		status int
	}{
		{"/tag/getName/function", http.StatusBadRequest},
		{"/tag/getName/FUNCTION/.hidden", http.StatusBadRequest},
		{"/probe/bad%20name", http.StatusBadRequest},
	}
	for _, tt := range tests {
		var body ErrorBody
		if code := get(t, ts.URL+tt.path, &body); code != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.path, code, tt.status)
		}
		if body.Tags == nil || len(body.Tags) != 0 || body.Error == "" {
			t.Errorf("%s: body = %+v", tt.path, body)
		}
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", tagger.ErrInvalidContext), http.StatusBadRequest},
		{tagcache.ErrInvalidName, http.StatusBadRequest},
		{fmt.Errorf("%w: disk", tagcache.ErrUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusOf(tt.err); got != tt.want {
			t.Errorf("StatusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

type panicTagger struct{}

func (panicTagger) Tag(context.Context, tagger.Request) (*tagger.Result, error) { panic("bad model") }
func (panicTagger) Probe(context.Context, string) (bool, error)                 { return true, nil }

func TestRecoversFromPanic(t *testing.T) {
	ts := newTestServer(t, panicTagger{})
	if code := get(t, ts.URL+"/tag/x/FUNCTION", nil); code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", code)
	}
	var probe ProbeBody
	if code := get(t, ts.URL+"/probe/ns", &probe); code != http.StatusOK || !probe.Exists {
		t.Fatalf("server unusable after panic: %d %+v", code, probe)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, newService(t))
	var health map[string]string
	if code := get(t, ts.URL+"/healthz", &health); code != http.StatusOK || health["version"] != "test" {
		t.Fatalf("healthz = %d %v", code, health)
	}

	get(t, ts.URL+"/tag/getName/FUNCTION", nil)
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `identag_tagger_requests_total{outcome="computed"} 1`) {
		t.Fatalf("metrics missing request counter:\n%s", body)
	}
}

func TestServeShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(ln.Addr().String(), newService(t), Options{Gatherer: prometheus.NewRegistry()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	var health map[string]string
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err == nil {
			json.NewDecoder(resp.Body).Decode(&health)
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if health["status"] != "ok" {
		t.Fatalf("health = %v", health)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
