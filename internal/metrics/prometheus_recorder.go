package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "cadence"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	ticks          *prom.CounterVec
	commits        *prom.CounterVec
	retries        prom.Counter
	commitDuration prom.Histogram
	quotaRemaining prom.Gauge
}

// NewPrometheusRecorder constructs and registers the metrics on reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		ticks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Scheduler ticks by outcome and skip reason",
		}, []string{"outcome", "reason"}),
		commits: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Commit cycles by result",
		}, []string{"result"}),
		retries: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "commit_retries_total",
			Help:      "Commit cycle retries after transient failures",
		}),
		commitDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Duration of a full commit cycle including retries",
			Buckets:   prom.DefBuckets,
		}),
		quotaRemaining: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_remaining",
			Help:      "Commits still allowed today",
		}),
	}
	reg.MustRegister(pr.ticks, pr.commits, pr.retries, pr.commitDuration, pr.quotaRemaining)
	return pr
}

func (p *PrometheusRecorder) IncTick(outcome TickOutcome, reason string) {
	if p == nil {
		return
	}
	p.ticks.WithLabelValues(string(outcome), reason).Inc()
}

func (p *PrometheusRecorder) IncCommit(result ResultLabel) {
	if p == nil {
		return
	}
	p.commits.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncCommitRetry() {
	if p == nil {
		return
	}
	p.retries.Inc()
}

func (p *PrometheusRecorder) ObserveCommitDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.commitDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetQuotaRemaining(n int) {
	if p == nil {
		return
	}
	p.quotaRemaining.Set(float64(n))
}
