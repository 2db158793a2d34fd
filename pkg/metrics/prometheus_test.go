package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestPrometheusHandlerServesRegisteredMetrics(t *testing.T) {
	collector := NewCollector()
	collector.LinkOpened("DEXTRA")
	collector.APRSQueueDepth.Set(7)

	handler := promhttp.HandlerFor(collector.registry, promhttp.HandlerOpts{})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	for _, metric := range []string{
		"dstargw_links_active",
		"dstargw_aprs_outbound_queue_depth",
	} {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("expected metric %s in output", metric)
		}
	}
}

func TestPrometheusServer(t *testing.T) {
	collector := NewCollector()
	config := PrometheusConfig{
		Enabled: true,
		Port:    0,
		Path:    "/metrics",
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := NewPrometheusServer(config, collector, nil)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		if err != nil && err != context.Canceled && err != http.ErrServerClosed {
			t.Errorf("Unexpected error from server: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Server did not stop in time")
	}
}

func TestPrometheusServer_Disabled(t *testing.T) {
	collector := NewCollector()
	config := PrometheusConfig{Enabled: false}

	server := NewPrometheusServer(config, collector, nil)
	if err := server.Start(context.Background()); err != nil {
		t.Errorf("Expected no error when disabled, got %v", err)
	}
}
