package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/hupe1980/anneal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusObserver implements anneal.MetricsObserver.
type PrometheusObserver struct {
	buildSeconds *prometheus.HistogramVec
	pairs        prometheus.Gauge
	steps        *prometheus.CounterVec
	energy       prometheus.Gauge
	temperature  prometheus.Gauge
	runs         *prometheus.CounterVec
	runSeconds   prometheus.Histogram
}

var _ anneal.MetricsObserver = (*PrometheusObserver)(nil)

// NewPrometheusObserver creates the collectors and registers them with reg.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	o := &PrometheusObserver{
		buildSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "anneal_distance_build_seconds",
			Help:    "Time to compute or load the pairwise distances",
			Buckets: prometheus.DefBuckets,
		}, []string{"source", "status"}),
		pairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "anneal_distance_pairs",
			Help: "Number of stored row pairs",
		}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anneal_steps_total",
			Help: "Annealing steps by outcome",
		}, []string{"outcome"}),
		energy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "anneal_energy",
			Help: "Mean within-cluster distance after the last step",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "anneal_temperature",
			Help: "Temperature after the last step",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anneal_runs_total",
			Help: "Completed runs by status",
		}, []string{"status"}),
		runSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "anneal_run_seconds",
			Help:    "Duration of the annealing chain",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}

	reg.MustRegister(o.buildSeconds)
	reg.MustRegister(o.pairs)
	reg.MustRegister(o.steps)
	reg.MustRegister(o.energy)
	reg.MustRegister(o.temperature)
	reg.MustRegister(o.runs)
	reg.MustRegister(o.runSeconds)
	return o
}

func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case anneal.Interrupted(err):
		return "interrupted"
	default:
		return "error"
	}
}

func (o *PrometheusObserver) OnBuild(_, pairs int, cached bool, d time.Duration, err error) {
	source := "computed"
	if cached {
		source = "cache"
	}
	o.buildSeconds.WithLabelValues(source, status(err)).Observe(d.Seconds())
	if err == nil {
		o.pairs.Set(float64(pairs))
	}
}

func (o *PrometheusObserver) OnStep(accepted bool, total, temperature float64) {
	o.steps.WithLabelValues(outcome(accepted)).Inc()
	o.energy.Set(total)
	o.temperature.Set(temperature)
}

func outcome(accepted bool) string {
	if accepted {
		return "accepted"
	}
	return "rejected"
}

func (o *PrometheusObserver) OnRun(_, _, _ uint64, energy float64, d time.Duration, err error) {
	o.runs.WithLabelValues(status(err)).Inc()
	o.runSeconds.Observe(d.Seconds())
	o.energy.Set(energy)
}

// metricsServer serves /metrics for the lifetime of a run.
type metricsServer struct {
	srv  *http.Server
	addr string
	done chan error
}

func startMetricsServer(addr string, g prometheus.Gatherer) (*metricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	m := &metricsServer{
		srv:  &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		addr: ln.Addr().String(),
		done: make(chan error, 1),
	}
	go func() {
		err := m.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		m.done <- err
	}()
	return m, nil
}

func (m *metricsServer) Addr() string { return m.addr }

func (m *metricsServer) Shutdown(ctx context.Context) error {
	if err := m.srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-m.done
}
