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
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordStreamEvent(t *testing.T) {
	streamEventsTotal.Reset()

	RecordStreamEvent("answer", "delta")
	RecordStreamEvent("answer", "delta")
	RecordStreamEvent("reasoning", "done")

	answerCount := testutil.ToFloat64(streamEventsTotal.WithLabelValues("answer", "delta"))
	reasoningCount := testutil.ToFloat64(streamEventsTotal.WithLabelValues("reasoning", "done"))

	if answerCount != 2 {
		t.Errorf("Expected 2 answer deltas, got %f", answerCount)
	}
	if reasoningCount != 1 {
		t.Errorf("Expected 1 reasoning done, got %f", reasoningCount)
	}
}

func TestRecordRequestStartEnd(t *testing.T) {
	requestsActive.Set(0)
	requestDuration.Reset()

	RecordRequestStart()
	RecordRequestStart()
	active := testutil.ToFloat64(requestsActive)
	if active != 2 {
		t.Errorf("Expected 2 active requests, got %f", active)
	}

	RecordRequestEnd("success", 1.5)
	RecordRequestEnd("canceled", 0.2)
	active = testutil.ToFloat64(requestsActive)
	if active != 0 {
		t.Errorf("Expected 0 active requests after end, got %f", active)
	}
}

func TestRecordBatchFlush(t *testing.T) {
	RecordBatchFlush(4096)
	RecordBatchFlush(32768)

	count := testutil.CollectAndCount(audioBatchBytes)
	if count == 0 {
		t.Error("Expected non-zero batch size observations")
	}
}

func TestExporterServesMetrics(t *testing.T) {
	exporter := NewExporter(":0")

	RecordAudioChunk()
	RecordStaleSuppressed()

	server := httptest.NewServer(promhttp.HandlerFor(exporter.Registry(), promhttp.HandlerOpts{}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body failed: %v", err)
	}

	text := string(body)
	if !strings.Contains(text, "specter_audio_chunks_total") {
		t.Error("Expected specter_audio_chunks_total in metrics output")
	}
	if !strings.Contains(text, "specter_stale_events_suppressed_total") {
		t.Error("Expected specter_stale_events_suppressed_total in metrics output")
	}
}

func TestExporterShutdown(t *testing.T) {
	exporter := NewExporterWithRegistry(":0", NewExporter(":0").Registry())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := exporter.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown of unstarted exporter should be nil, got %v", err)
	}
}
