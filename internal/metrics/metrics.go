package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds the Prometheus collectors for the query engine.
type Metrics struct {
	QueriesTotal    *prometheus.CounterVec
	QueryErrors     *prometheus.CounterVec
	RowsRendered    prometheus.Counter
	ResponseBytes   prometheus.Counter
	QueryDuration   prometheus.Histogram
	ConnectionsOpen prometheus.Gauge
	BridgeFailures  prometheus.Counter
	ArchiveFailures prometheus.Counter
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the singleton metrics instance, registering the collectors
// on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "livequery_queries_total",
				Help: "Queries answered, by table",
			}, []string{"table"}),
			QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "livequery_query_errors_total",
				Help: "Queries that failed, by response code",
			}, []string{"code"}),
			RowsRendered: promauto.NewCounter(prometheus.CounterOpts{
				Name: "livequery_rows_rendered_total",
				Help: "Result rows written to clients",
			}),
			ResponseBytes: promauto.NewCounter(prometheus.CounterOpts{
				Name: "livequery_response_bytes_total",
				Help: "Response body bytes written to clients",
			}),
			QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "livequery_query_duration_seconds",
				Help:    "Wall time per query",
				Buckets: prometheus.DefBuckets,
			}),
			ConnectionsOpen: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "livequery_connections_open",
				Help: "Client connections currently open",
			}),
			BridgeFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "livequery_bridge_failures_total",
				Help: "Failed forwards to the event daemon",
			}),
			ArchiveFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "livequery_archive_failures_total",
				Help: "Failed time-series archive exports",
			}),
		}
	})
	return instance
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
