// Package telemetry records request and scheduling metrics and serves them in
// Prometheus text exposition format.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/events"
)

// Config holds the telemetry settings.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	MetricsEnabled *bool // nil means enabled
}

func (c *Config) metricsOn() bool {
	return c.MetricsEnabled == nil || *c.MetricsEnabled
}

func (c *Config) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "clinic-scheduler"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

// BoolPtr is a helper to create a *bool for Config fields.
func BoolPtr(b bool) *bool {
	return &b
}

// durationBuckets are the request duration histogram bounds in seconds.
var durationBuckets = []float64{
	0.005, 0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0,
}

// histogram keeps non-cumulative bucket counts; cumulative counts are computed
// at export time.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

// Observe records a single value.
func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
}

func (h *histogram) Count() int64 {
	return atomic.LoadInt64(&h.count)
}

func (h *histogram) Sum() float64 {
	return math.Float64frombits(atomic.LoadUint64(&h.sum))
}

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	cum := make([]int64, len(h.bucketCounts))
	var running int64
	for i, c := range h.bucketCounts {
		running += c
		cum[i] = running
	}
	return cum
}

func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		next := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(addr, old, math.Float64bits(next)) {
			return
		}
	}
}

// LabelsKey builds the key of a request duration series.
func LabelsKey(method, route, statusCode string) string {
	return method + "|" + route + "|" + statusCode
}

type gaugeFunc struct {
	help string
	fn   func() int64
}

// Provider owns all metric state. It implements events.Publisher so it can
// sit beside the other event sinks.
type Provider struct {
	cfg Config

	histMu   sync.RWMutex
	requests map[string]*histogram // LabelsKey -> duration

	active int64

	eventMu sync.Mutex
	events  map[string]int64 // event type -> count

	gaugeMu sync.RWMutex
	gauges  map[string]gaugeFunc
}

// NewProvider creates a provider with defaults applied.
func NewProvider(cfg Config) *Provider {
	cfg.applyDefaults()
	return &Provider{
		cfg:      cfg,
		requests: make(map[string]*histogram),
		events:   make(map[string]int64),
		gauges:   make(map[string]gaugeFunc),
	}
}

// RequestHistogram returns the duration histogram for a label key, or nil.
func (p *Provider) RequestHistogram(key string) *histogram {
	p.histMu.RLock()
	defer p.histMu.RUnlock()
	return p.requests[key]
}

func (p *Provider) requestHistogram(key string) *histogram {
	p.histMu.RLock()
	h, ok := p.requests[key]
	p.histMu.RUnlock()
	if ok {
		return h
	}
	p.histMu.Lock()
	defer p.histMu.Unlock()
	if h, ok = p.requests[key]; !ok {
		h = newHistogram(durationBuckets)
		p.requests[key] = h
	}
	return h
}

// ActiveRequests returns the number of requests in flight.
func (p *Provider) ActiveRequests() int64 {
	return atomic.LoadInt64(&p.active)
}

// EventCount returns how many events of the given type were published.
func (p *Provider) EventCount(eventType string) int64 {
	p.eventMu.Lock()
	defer p.eventMu.Unlock()
	return p.events[eventType]
}

// Publish counts e by type.
func (p *Provider) Publish(_ context.Context, e events.Event) error {
	if !p.cfg.metricsOn() {
		return nil
	}
	p.eventMu.Lock()
	p.events[e.Type]++
	p.eventMu.Unlock()
	return nil
}

// RegisterGauge exposes the value of fn under name on every scrape.
func (p *Provider) RegisterGauge(name, help string, fn func() int64) {
	p.gaugeMu.Lock()
	p.gauges[name] = gaugeFunc{help: help, fn: fn}
	p.gaugeMu.Unlock()
}

// Middleware records the duration of every request labelled by method,
// route pattern and status code.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !p.cfg.metricsOn() {
				return next(c)
			}
			atomic.AddInt64(&p.active, 1)
			start := time.Now()

			err := next(c)

			atomic.AddInt64(&p.active, -1)
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			status := statusOf(c, err)
			p.requestHistogram(LabelsKey(c.Request().Method, route, strconv.Itoa(status))).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// statusOf reports the status the error handler will write when the handler
// returned an error before committing a response.
func statusOf(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

// Handler serves every metric in Prometheus text exposition format.
func (p *Provider) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		fmt.Fprintf(&b, "# HELP clinic_scheduler_info Build and environment of the running service.\n")
		fmt.Fprintf(&b, "# TYPE clinic_scheduler_info gauge\n")
		fmt.Fprintf(&b, "clinic_scheduler_info{service=%q,version=%q,environment=%q} 1\n\n",
			p.cfg.ServiceName, p.cfg.ServiceVersion, p.cfg.Environment)

		p.writeRequests(&b)

		b.WriteString("# HELP http_server_active_requests Number of active HTTP requests.\n")
		b.WriteString("# TYPE http_server_active_requests gauge\n")
		fmt.Fprintf(&b, "http_server_active_requests %d\n\n", p.ActiveRequests())

		p.writeEvents(&b)
		p.writeGauges(&b)

		return c.Blob(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
	}
}

func (p *Provider) writeRequests(b *strings.Builder) {
	const name = "http_server_request_duration_seconds"
	p.histMu.RLock()
	keys := make([]string, 0, len(p.requests))
	for k := range p.requests {
		keys = append(keys, k)
	}
	p.histMu.RUnlock()
	sort.Strings(keys)

	fmt.Fprintf(b, "# HELP %s Duration of HTTP requests in seconds.\n", name)
	fmt.Fprintf(b, "# TYPE %s histogram\n", name)
	for _, key := range keys {
		parts := strings.SplitN(key, "|", 3)
		if len(parts) != 3 {
			continue
		}
		labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", parts[0], parts[1], parts[2])
		writeHistogram(b, name, labels, p.RequestHistogram(key))
	}
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum := h.cumulativeBuckets()
	total := h.Count()
	for i, boundary := range h.boundaries {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, boundary, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, total)
	fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, h.Sum())
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, total)
}

func (p *Provider) writeEvents(b *strings.Builder) {
	p.eventMu.Lock()
	types := make([]string, 0, len(p.events))
	counts := make(map[string]int64, len(p.events))
	for t, n := range p.events {
		types = append(types, t)
		counts[t] = n
	}
	p.eventMu.Unlock()
	sort.Strings(types)

	b.WriteString("# HELP scheduling_events_total Appointment events published by type.\n")
	b.WriteString("# TYPE scheduling_events_total counter\n")
	for _, t := range types {
		fmt.Fprintf(b, "scheduling_events_total{type=%q} %d\n", t, counts[t])
	}
	b.WriteByte('\n')
}

func (p *Provider) writeGauges(b *strings.Builder) {
	p.gaugeMu.RLock()
	names := make([]string, 0, len(p.gauges))
	for n := range p.gauges {
		names = append(names, n)
	}
	sort.Strings(names)
	gauges := make([]gaugeFunc, len(names))
	for i, n := range names {
		gauges[i] = p.gauges[n]
	}
	p.gaugeMu.RUnlock()

	for i, n := range names {
		fmt.Fprintf(b, "# HELP %s %s\n", n, gauges[i].help)
		fmt.Fprintf(b, "# TYPE %s gauge\n", n)
		fmt.Fprintf(b, "%s %d\n\n", n, gauges[i].fn())
	}
}
