package stats

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "isupipe"

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
}

var (
	// Registry holds every collector exported on /metrics.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"method", "route"})

	enrichedRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "enrich",
		Name:      "rows_total",
		Help:      "Rows expanded into responses, by kind.",
	}, []string{"kind"})

	enrichCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "enrich",
		Name:      "calls_total",
		Help:      "Batch enrichment calls, by kind.",
	}, []string{"kind"})

	reservations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reservation",
		Name:      "attempts_total",
		Help:      "Livestream reservation attempts, by outcome.",
	}, []string{"outcome"})

	gauges = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "gauge",
		Help:      "Named application gauges.",
	}, []string{"name"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		enrichedRows,
		enrichCalls,
		reservations,
		gauges,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request count, latency and in-flight requests.
// Requests are labelled with the matched ServeMux pattern rather than the raw
// path so ids in the URL do not explode label cardinality.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}

		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func RecordEnrichment(kind string, rows int) {
	enrichCalls.WithLabelValues(kind).Inc()
	enrichedRows.WithLabelValues(kind).Add(float64(rows))
}

// Reservation outcomes.
const (
	ReservationAccepted  = "accepted"
	ReservationRejected  = "rejected"
	ReservationExhausted = "exhausted"
	ReservationFailed    = "failed"
)

func RecordReservation(outcome string) {
	reservations.WithLabelValues(outcome).Inc()
}

// StatsUpdater maintains named gauges, such as the number of connected feed
// viewers.
type StatsUpdater struct {
	vec *prometheus.GaugeVec
}

func NewStatsUpdater() *StatsUpdater {
	return &StatsUpdater{vec: gauges}
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.vec.WithLabelValues(name).Set(0)
}

func (su *StatsUpdater) Incr(name string) {
	su.vec.WithLabelValues(name).Inc()
}

func (su *StatsUpdater) Decr(name string) {
	su.vec.WithLabelValues(name).Dec()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is required by the websocket upgrade on the feed route.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
