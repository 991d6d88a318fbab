package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ligun0805/wethcycle/internal/swap"
)

const namespace = "wethcycle"

// Recorder is a swap.Sink that turns run events into Prometheus series.
type Recorder struct {
	reg *prometheus.Registry

	operations *prometheus.CounterVec
	volume     *prometheus.CounterVec
	confirm    *prometheus.HistogramVec
	runs       *prometheus.CounterVec
	lastRun    prometheus.Gauge

	mu        sync.Mutex
	submitted map[common.Hash]time.Time
}

func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Wrap/unwrap operation outcomes by operation and result",
		}, []string{"op", "outcome"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmed_eth_total",
			Help:      "ETH moved by confirmed operations",
		}, []string{"op"}),
		confirm: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confirmation_seconds",
			Help:      "Time from submission to a terminal outcome",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30, 60, 120, 300},
		}, []string{"op"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by result",
		}, []string{"result"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the most recent run",
		}),
		submitted: make(map[common.Hash]time.Time),
	}
	r.reg.MustRegister(r.operations, r.volume, r.confirm, r.runs, r.lastRun)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) Emit(ev swap.Event) {
	if s := ev.Summary; s != nil {
		result := "completed"
		if s.Cancelled {
			result = "stopped"
		}
		r.runs.WithLabelValues(result).Inc()
		r.lastRun.Set(s.Finished.Sub(s.Started).Seconds())
		return
	}
	o := ev.Outcome
	if o == nil {
		return
	}
	op := string(o.Op)
	r.operations.WithLabelValues(op, o.Kind.String()).Inc()

	r.mu.Lock()
	defer r.mu.Unlock()
	if o.Kind == swap.Submitted {
		r.submitted[o.TxHash] = ev.Time
		return
	}
	if t0, ok := r.submitted[o.TxHash]; ok && o.TxHash != (common.Hash{}) {
		delete(r.submitted, o.TxHash)
		r.confirm.WithLabelValues(op).Observe(ev.Time.Sub(t0).Seconds())
	}
	if o.Kind == swap.Confirmed && o.Amount != nil {
		v, _ := decimal.NewFromBigInt(o.Amount, -18).Float64()
		r.volume.WithLabelValues(op).Add(v)
	}
}

// Handler exposes the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Serve runs the /metrics endpoint on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
