// Package metrics collects HTTP and engine metrics and serves them in the
// Prometheus text exposition format.
package metrics

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics is safe for concurrent use. All recording methods accept a nil
// receiver so components can run without a collector.
type Metrics struct {
	requestsTotal   sync.Map // "method:status" -> *int64
	requestDuration sync.Map // "method:path" -> *durationSummary
	activeRequests  int64

	evaluationCycles  int64
	devicesEvaluated  int64
	devicesUpdated    int64
	devicesFailed     int64
	devicesSkipped    int64
	stockServed       sync.Map // tier -> *int64
	feedDisconnects   sync.Map // feed -> *int64
	stockSubscribers  int64
	lastEvaluationUTC int64
}

type durationSummary struct {
	mu    sync.Mutex
	sum   float64
	count int64
}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			atomic.AddInt64(&m.activeRequests, 1)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			atomic.AddInt64(&m.activeRequests, -1)
			m.observeRequest(r.Method, r.URL.Path, rec.status, time.Since(start))
		})
	}
}

func (m *Metrics) observeRequest(method, path string, status int, d time.Duration) {
	incr(&m.requestsTotal, fmt.Sprintf("%s:%d", method, status))

	key := fmt.Sprintf("%s:%s", method, normalizePath(path))
	v, _ := m.requestDuration.LoadOrStore(key, &durationSummary{})
	ds := v.(*durationSummary)
	ds.mu.Lock()
	ds.sum += d.Seconds()
	ds.count++
	ds.mu.Unlock()
}

// ObserveEvaluation records the outcome of one evaluator cycle.
func (m *Metrics) ObserveEvaluation(evaluated, updated, failed, skipped int) {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.evaluationCycles, 1)
	atomic.AddInt64(&m.devicesEvaluated, int64(evaluated))
	atomic.AddInt64(&m.devicesUpdated, int64(updated))
	atomic.AddInt64(&m.devicesFailed, int64(failed))
	atomic.AddInt64(&m.devicesSkipped, int64(skipped))
	atomic.StoreInt64(&m.lastEvaluationUTC, time.Now().Unix())
}

// ObserveStockServed counts which cache tier answered a stock read.
func (m *Metrics) ObserveStockServed(tier string) {
	if m == nil {
		return
	}
	incr(&m.stockServed, tier)
}

func (m *Metrics) ObserveFeedDisconnect(feed string) {
	if m == nil {
		return
	}
	incr(&m.feedDisconnects, feed)
}

func (m *Metrics) AddStockSubscribers(delta int) {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.stockSubscribers, int64(delta))
}

func incr(counters *sync.Map, key string) {
	v, _ := counters.LoadOrStore(key, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		m.write(w)
	}
}

func (m *Metrics) write(w io.Writer) {
	gauge(w, "arcade_http_active_requests", "Number of active HTTP requests.", atomic.LoadInt64(&m.activeRequests))

	fmt.Fprintf(w, "# HELP arcade_http_requests_total Total number of HTTP requests.\n")
	fmt.Fprintf(w, "# TYPE arcade_http_requests_total counter\n")
	for _, key := range sortedKeys(&m.requestsTotal) {
		val, _ := m.requestsTotal.Load(key)
		method, status := splitKey(key)
		fmt.Fprintf(w, "arcade_http_requests_total{method=%q,status=%q} %d\n",
			method, status, atomic.LoadInt64(val.(*int64)))
	}

	fmt.Fprintf(w, "\n# HELP arcade_http_request_duration_seconds HTTP request duration in seconds.\n")
	fmt.Fprintf(w, "# TYPE arcade_http_request_duration_seconds summary\n")
	for _, key := range sortedKeys(&m.requestDuration) {
		val, _ := m.requestDuration.Load(key)
		ds := val.(*durationSummary)
		ds.mu.Lock()
		sum, count := ds.sum, ds.count
		ds.mu.Unlock()
		method, path := splitKey(key)
		fmt.Fprintf(w, "arcade_http_request_duration_seconds_sum{method=%q,path=%q} %.6f\n", method, path, sum)
		fmt.Fprintf(w, "arcade_http_request_duration_seconds_count{method=%q,path=%q} %d\n", method, path, count)
	}
	fmt.Fprintln(w)

	counter(w, "arcade_evaluation_cycles_total", "Completed maintenance evaluation cycles.", atomic.LoadInt64(&m.evaluationCycles))
	counter(w, "arcade_evaluation_devices_evaluated_total", "Devices evaluated by the maintenance evaluator.", atomic.LoadInt64(&m.devicesEvaluated))
	counter(w, "arcade_evaluation_devices_updated_total", "Maintenance status changes written.", atomic.LoadInt64(&m.devicesUpdated))
	counter(w, "arcade_evaluation_devices_failed_total", "Maintenance status writes that failed.", atomic.LoadInt64(&m.devicesFailed))
	counter(w, "arcade_evaluation_devices_skipped_total", "Maintenance status writes skipped after a concurrent change.", atomic.LoadInt64(&m.devicesSkipped))
	gauge(w, "arcade_evaluation_last_run_timestamp_seconds", "Unix time of the last evaluation cycle.", atomic.LoadInt64(&m.lastEvaluationUTC))
	gauge(w, "arcade_stock_subscribers", "Active stock stream subscribers.", atomic.LoadInt64(&m.stockSubscribers))

	labelled(w, "arcade_stock_reads_total", "Stock reads by serving tier.", "tier", &m.stockServed)
	labelled(w, "arcade_feed_disconnects_total", "Change feed disconnects by feed.", "feed", &m.feedDisconnects)
}

func counter(w io.Writer, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
}

func gauge(w io.Writer, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", name, help, name, name, v)
}

func labelled(w io.Writer, name, help, label string, values *sync.Map) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n", name, help, name)
	for _, key := range sortedKeys(values) {
		val, _ := values.Load(key)
		fmt.Fprintf(w, "%s{%s=%q} %d\n", name, label, key, atomic.LoadInt64(val.(*int64)))
	}
	fmt.Fprintln(w)
}

func sortedKeys(m *sync.Map) []string {
	var keys []string
	m.Range(func(key, _ any) bool {
		keys = append(keys, key.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

func splitKey(key string) (string, string) {
	before, after, _ := strings.Cut(key, ":")
	return before, after
}

// normalizePath replaces UUIDs and numeric IDs with {id} to group metrics.
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if isIDSegment(s) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

func isIDSegment(s string) bool {
	if len(s) == 0 {
		return false
	}
	// UUID pattern: 8-4-4-4-12 hex chars
	if len(s) == 36 && s[8] == '-' && s[13] == '-' && s[18] == '-' && s[23] == '-' {
		return true
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
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

// Hijack is required by the websocket upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
