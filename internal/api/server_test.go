package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/cfnotifier/cfnotifier/internal/logbuffer"
	"github.com/cfnotifier/cfnotifier/internal/metrics"
	"github.com/cfnotifier/cfnotifier/internal/poller"
	"github.com/cfnotifier/cfnotifier/internal/types"
)

type staticStatus poller.Status

func (s staticStatus) Status() poller.Status { return poller.Status(s) }

func newTestServer(t *testing.T) (*httptest.Server, *logbuffer.Buffer) {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Notification("webhook", nil)

	st := staticStatus{
		Cycles:   3,
		Interval: "1m0s",
		Zones: []poller.ZoneStatus{
			{Zone: types.Zone{ID: "z1", Name: "example.com"}, Cursor: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), Delivered: 2},
		},
	}

	lb := logbuffer.New(50)
	s := NewServer(":0", st, reg, zerolog.Nop())
	s.SetLogBuffer(lb)
	s.SetChannels([]string{"webhook"})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, lb
}

func getJSON(t *testing.T, url string, out interface{}) int {
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

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	if code := getJSON(t, srv.URL+"/health", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestStatusIncludesPollerSnapshot(t *testing.T) {
	srv, _ := newTestServer(t)

	var body struct {
		Version  string        `json:"version"`
		Channels []string      `json:"channels"`
		Poller   poller.Status `json:"poller"`
	}
	if code := getJSON(t, srv.URL+"/status", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Version == "" {
		t.Error("version missing")
	}
	if len(body.Channels) != 1 || body.Channels[0] != "webhook" {
		t.Errorf("channels = %v", body.Channels)
	}
	if body.Poller.Cycles != 3 || len(body.Poller.Zones) != 1 || body.Poller.Zones[0].Name != "example.com" {
		t.Errorf("poller = %+v", body.Poller)
	}
}

func TestLogsEndpoint(t *testing.T) {
	srv, lb := newTestServer(t)
	logger := zerolog.New(lb)
	logger.Info().Str("zone", "z1").Msg("New security events")
	logger.Info().Str("zone", "z2").Msg("New security events")
	logger.Error().Str("zone", "z1").Msg("Failed to fetch security events")

	var body struct {
		Entries []logbuffer.Entry `json:"entries"`
		Count   int               `json:"count"`
	}
	getJSON(t, srv.URL+"/api/logs?zone=z1&limit=10", &body)
	if body.Count != 2 || body.Entries[1].Level != "error" {
		t.Fatalf("body = %+v", body)
	}

	getJSON(t, srv.URL+"/api/logs?limit=1", &body)
	if body.Count != 1 || body.Entries[0].Message != "Failed to fetch security events" {
		t.Fatalf("body = %+v", body)
	}

	if code := getJSON(t, srv.URL+"/api/logs?limit=zero", nil); code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", code)
	}
}

func TestStatusPage(t *testing.T) {
	srv, lb := newTestServer(t)
	logger := zerolog.New(lb)
	logger.Warn().Str("zone", "z1").Msg("<b>webhook returned 500</b>")

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	for _, want := range []string{
		"example.com",
		"2024-05-01 10:00:00Z",
		"webhook",
		`class="log-warn"`,
		"&lt;b&gt;webhook returned 500&lt;/b&gt;",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}

	nf, err := http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	nf.Body.Close()
	if nf.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path status = %d", nf.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(data), `cfnotifier_notifications_total{channel="webhook",result="ok"} 1`) {
		t.Fatalf("metrics output missing counter:\n%s", data)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", staticStatus{}, prometheus.NewRegistry(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
