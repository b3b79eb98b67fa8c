// Copyright 2025 The Skiff Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics records per-request Prometheus metrics labeled by
// method, route pattern and status. Unmatched requests share a single
// label so high-cardinality paths cannot blow up the series count.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skiff-dev/skiff"
)

// Option defines functional options for metrics middleware configuration.
type Option func(*config)

type config struct {
	namespace    string
	registry     *prometheus.Registry
	buckets      []float64
	excludePaths map[string]struct{}
}

func defaultConfig() *config {
	return &config{
		namespace:    "skiff",
		registry:     prometheus.NewRegistry(),
		buckets:      prometheus.DefBuckets,
		excludePaths: make(map[string]struct{}),
	}
}

// WithNamespace sets the metric name prefix.
func WithNamespace(ns string) Option {
	return func(c *config) { c.namespace = ns }
}

// WithRegistry sets the Prometheus registry to register collectors on.
// Defaults to a fresh registry owned by the recorder.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithBuckets sets the duration histogram buckets in seconds.
func WithBuckets(buckets ...float64) Option {
	return func(c *config) { c.buckets = buckets }
}

// WithExcludePaths excludes specific paths from collection. Useful for
// health checks and the metrics endpoint itself.
func WithExcludePaths(paths ...string) Option {
	return func(c *config) {
		for _, p := range paths {
			c.excludePaths[p] = struct{}{}
		}
	}
}

// Recorder owns the collectors and exposes both the middleware unit and
// the exposition handler.
type Recorder struct {
	cfg      *config
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// New creates a Recorder and registers its collectors.
//
//	rec := metrics.New(metrics.WithNamespace("myapi"))
//	app.Use(rec.Middleware())
//	mux.Handle("/metrics", rec.Handler())
func New(opts ...Option) *Recorder {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	r := &Recorder{
		cfg: cfg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "requests_total",
			Help:      "Total requests processed, labeled by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.namespace,
			Name:      "request_duration_seconds",
			Help:      "Request handling duration in seconds.",
			Buckets:   cfg.buckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.namespace,
			Name:      "requests_in_flight",
			Help:      "Requests currently being handled.",
		}),
	}
	cfg.registry.MustRegister(r.requests, r.duration, r.inFlight)
	return r
}

// Middleware returns the recording middleware unit.
func (r *Recorder) Middleware() skiff.Middleware {
	return skiff.MiddlewareFunc(func(ctx context.Context, req *skiff.Request, next skiff.Next) (skiff.Response, error) {
		if _, skip := r.cfg.excludePaths[req.Path()]; skip {
			return next(ctx, req)
		}

		route := req.RoutePattern()
		if route == "" {
			route = "unmatched"
		}

		r.inFlight.Inc()
		start := time.Now()
		resp, err := next(ctx, req)
		elapsed := time.Since(start).Seconds()
		r.inFlight.Dec()

		status := statusOf(resp, err)
		r.requests.WithLabelValues(req.Method(), route, strconv.Itoa(status)).Inc()
		r.duration.WithLabelValues(req.Method(), route).Observe(elapsed)

		return resp, err
	})
}

// Handler returns the Prometheus exposition handler for the recorder's
// registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.cfg.registry, promhttp.HandlerOpts{})
}

func statusOf(resp skiff.Response, err error) int {
	if err != nil {
		if httpErr, ok := err.(*skiff.HTTPError); ok {
			return httpErr.Status
		}
		return http.StatusInternalServerError
	}
	if sr, ok := resp.(skiff.StatusReporter); ok {
		return sr.Status()
	}
	return http.StatusOK
}
