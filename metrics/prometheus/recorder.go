// Package prometheus exports onboarding operation metrics through
// client_golang.
package prometheus

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-onboarding/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultLabels are the tag keys exported as labels. Other tags, such as
// action ids, are dropped to keep cardinality bounded.
var DefaultLabels = []string{"operation", "status", "step", "status_code"}

type Option func(*Recorder)

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Recorder) {
		if reg != nil {
			r.registerer = reg
		}
	}
}

func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		r.namespace = sanitize(namespace)
	}
}

func WithLabels(labels ...string) Option {
	return func(r *Recorder) {
		out := make([]string, 0, len(labels))
		seen := map[string]struct{}{}
		for _, label := range labels {
			label = sanitize(label)
			if label == "" {
				continue
			}
			if _, ok := seen[label]; ok {
				continue
			}
			seen[label] = struct{}{}
			out = append(out, label)
		}
		r.labels = out
	}
}

func WithBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

// Recorder implements core.MetricsRecorder. Vectors are created on first use
// of a metric name.
type Recorder struct {
	registerer prometheus.Registerer
	namespace  string
	labels     []string
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		registerer: prometheus.DefaultRegisterer,
		labels:     append([]string(nil), DefaultLabels...),
		buckets:    prometheus.ExponentialBuckets(5, 2, 10),
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	vec := r.counter(name)
	if vec == nil {
		return
	}
	vec.WithLabelValues(r.labelValues(tags)...).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	vec := r.histogram(name)
	if vec == nil {
		return
	}
	vec.WithLabelValues(r.labelValues(tags)...).Observe(value)
}

func (r *Recorder) counter(name string) *prometheus.CounterVec {
	metric := sanitize(strings.TrimSuffix(name, ".total"))
	if metric == "" {
		return nil
	}
	metric += "_total"
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.counters[metric]; ok {
		return vec
	}
	vec := promauto.With(r.registerer).NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      metric,
		Help:      "Count of " + strings.TrimSpace(name) + " events",
	}, r.labels)
	r.counters[metric] = vec
	return vec
}

func (r *Recorder) histogram(name string) *prometheus.HistogramVec {
	metric := sanitize(name)
	if metric == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.histograms[metric]; ok {
		return vec
	}
	vec := promauto.With(r.registerer).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      metric,
		Help:      "Distribution of " + strings.TrimSpace(name),
		Buckets:   r.buckets,
	}, r.labels)
	r.histograms[metric] = vec
	return vec
}

func (r *Recorder) labelValues(tags map[string]string) []string {
	values := make([]string, len(r.labels))
	for i, label := range r.labels {
		values[i] = strings.TrimSpace(tags[label])
	}
	return values
}

// sanitize maps a dotted metric name onto the prometheus name alphabet.
func sanitize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

var _ core.MetricsRecorder = (*Recorder)(nil)
