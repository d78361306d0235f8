package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SniperMetrics holds the counters and gauges exported on /metrics. A nil
// *SniperMetrics is valid and records nothing.
type SniperMetrics struct {
	PendingSeen        prometheus.Counter
	PendingFetchErrors prometheus.Counter
	Verdicts           *prometheus.CounterVec
	Submissions        *prometheus.CounterVec
	Reconnects         prometheus.Counter
	CurrentBlock       prometheus.Gauge
	Stage              *prometheus.GaugeVec
	GainBps            prometheus.Gauge
}

// NewSniperMetrics creates unregistered collectors.
func NewSniperMetrics() *SniperMetrics {
	return &SniperMetrics{
		PendingSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sniper_pending_transactions_total",
			Help: "Total number of pending transaction hashes received",
		}),
		PendingFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sniper_pending_fetch_errors_total",
			Help: "Total number of failed pending transaction lookups",
		}),
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_verdicts_total",
			Help: "Total number of accepted detector verdicts per trigger kind",
		}, []string{"kind"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_submissions_total",
			Help: "Total number of submitted transactions per side and outcome",
		}, []string{"side", "status"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sniper_rpc_reconnects_total",
			Help: "Total number of websocket reconnects",
		}),
		CurrentBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sniper_current_block",
			Help: "Latest block number announced by the node",
		}),
		Stage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sniper_stage",
			Help: "Current scheduler stage (1=active, 0=inactive)",
		}, []string{"stage"}),
		GainBps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sniper_gain_bps",
			Help: "Last observed gain over the buy price in basis points",
		}),
	}
}

// Register registers every collector with reg.
func (m *SniperMetrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.PendingSeen, m.PendingFetchErrors, m.Verdicts, m.Submissions,
		m.Reconnects, m.CurrentBlock, m.Stage, m.GainBps,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *SniperMetrics) PendingSeenInc() {
	if m != nil {
		m.PendingSeen.Inc()
	}
}

func (m *SniperMetrics) PendingFetchErrorInc() {
	if m != nil {
		m.PendingFetchErrors.Inc()
	}
}

func (m *SniperMetrics) VerdictInc(kind string) {
	if m != nil {
		m.Verdicts.WithLabelValues(kind).Inc()
	}
}

func (m *SniperMetrics) SubmissionInc(side, status string) {
	if m != nil {
		m.Submissions.WithLabelValues(side, status).Inc()
	}
}

func (m *SniperMetrics) ReconnectInc() {
	if m != nil {
		m.Reconnects.Inc()
	}
}

func (m *SniperMetrics) SetBlock(n uint64) {
	if m != nil {
		m.CurrentBlock.Set(float64(n))
	}
}

// SetStage marks stage active and prev inactive.
func (m *SniperMetrics) SetStage(prev, stage string) {
	if m == nil {
		return
	}
	if prev != "" {
		m.Stage.WithLabelValues(prev).Set(0)
	}
	m.Stage.WithLabelValues(stage).Set(1)
}

func (m *SniperMetrics) SetGainBps(bps int64) {
	if m != nil {
		m.GainBps.Set(float64(bps))
	}
}

// Serve exposes gatherer on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
