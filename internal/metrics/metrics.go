// Package metrics provides Prometheus metrics for drive access and folder browsing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels
const (
	OutcomeOK              = "ok"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeError           = "error"
	OutcomeNotFound        = "not_found"
	OutcomeIgnored         = "ignored"
	OutcomeSuperseded      = "superseded"
	OutcomeBranch          = "branch_selected"
)

var (
	driveRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opting_drive_requests_total",
			Help: "Total number of drive listing requests",
		},
		[]string{"backend", "action", "outcome"},
	)

	driveRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opting_drive_request_duration_seconds",
			Help:    "Drive listing request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "action"},
	)

	driveEntriesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opting_drive_entries_dropped_total",
			Help: "Drive entries dropped for violating the folder/file invariant",
		},
		[]string{"backend", "action"},
	)

	driveCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opting_drive_cache_hits_total",
			Help: "Drive listings served from the response cache",
		},
		[]string{"backend", "action"},
	)

	browserFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opting_browser_fetches_total",
			Help: "Folder browser operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opting_db_query_duration_seconds",
			Help:    "Record store query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "opting_db_connections_open",
			Help: "Open record store connections",
		},
	)

	downloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "opting_download_bytes_total",
			Help: "Total bytes of documents downloaded",
		},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opting_downloads_total",
			Help: "Total number of document downloads",
		},
		[]string{"status"},
	)
)

// RecordDriveRequest records one drive listing call.
func RecordDriveRequest(backend, action, outcome string, duration time.Duration) {
	driveRequestsTotal.WithLabelValues(backend, action, outcome).Inc()
	driveRequestDuration.WithLabelValues(backend, action).Observe(duration.Seconds())
}

// RecordDroppedEntries records entries discarded during validation.
func RecordDroppedEntries(backend, action string, n int) {
	if n <= 0 {
		return
	}
	driveEntriesDropped.WithLabelValues(backend, action).Add(float64(n))
}

// RecordCacheHit records a listing served from cache.
func RecordCacheHit(backend, action string) {
	driveCacheHits.WithLabelValues(backend, action).Inc()
}

// RecordBrowserFetch records the outcome of a browser operation.
func RecordBrowserFetch(operation, outcome string) {
	browserFetchesTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordDBQuery records one record store query.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// SetDBConnectionsOpen sets the open connection gauge.
func SetDBConnectionsOpen(n int) {
	dbConnectionsOpen.Set(float64(n))
}

// RecordDownload records a finished download.
func RecordDownload(bytes int64, ok bool) {
	if ok {
		downloadsTotal.WithLabelValues("success").Inc()
		downloadBytesTotal.Add(float64(bytes))
		return
	}
	downloadsTotal.WithLabelValues("error").Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
