package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Job run results.
const (
	JobOK     = "ok"
	JobFailed = "failed"
)

// CronJobMetrics counts maintenance job runs and their latency.
type CronJobMetrics struct {
	runs    *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cron_job_runs_total",
			Help: "Maintenance job runs, by job and result.",
		}, []string{"job", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_cron_job_seconds",
			Help:    "Maintenance job wall time.",
			Buckets: []float64{0.05, 0.25, 1, 5, 30, 120},
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.latency)
	return m
}

// ObserveRun records one finished run; a non-nil err counts as failed.
func (c *CronJobMetrics) ObserveRun(job string, took time.Duration, err error) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	result := JobOK
	if err != nil {
		result = JobFailed
	}
	c.runs.WithLabelValues(job, result).Inc()
	c.latency.WithLabelValues(job).Observe(took.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
