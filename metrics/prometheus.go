package metrics

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Prometheus exposes published values as gauges on a registry. Gauges are
// created lazily on first publish so the orchestrator does not need to
// predeclare its metric names.
type Prometheus struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	gauges   map[string]prometheus.Gauge
	log      *zap.Logger
}

func NewPrometheus(log *zap.Logger) *Prometheus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Prometheus{
		registry: prometheus.NewRegistry(),
		gauges:   make(map[string]prometheus.Gauge),
		log:      log,
	}
}

func (p *Prometheus) Publish(name string, value float64, unit string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.gauges[name]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mt5bot",
			Name:      gaugeName(name),
			Help:      name + " (" + unit + ")",
		})
		if err := p.registry.Register(g); err != nil {
			p.log.Warn("register gauge failed", zap.String("name", name), zap.Error(err))
			return false
		}
		p.gauges[name] = g
	}

	g.Set(value)
	return true
}

// Serve exposes /metrics on addr in a background goroutine. Listener errors
// are logged, not fatal: metrics stay best-effort.
func (p *Prometheus) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			p.log.Warn("metrics listener stopped", zap.Error(err))
		}
	}()
}

// gaugeName converts "DailyPnL" style names to prometheus snake case.
func gaugeName(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && name[i-1] >= 'a' && name[i-1] <= 'z' {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
