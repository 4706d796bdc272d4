package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second
)

// PushRegistry implements Registry for push-based metrics collection.
// Values are buffered in memory and sent to a VictoriaMetrics/Prometheus
// remote write endpoint by Flush, so recording a value never blocks on the network.
type PushRegistry struct {
	pusher *pusher
}

// PushConfig configures a PushRegistry.
type PushConfig struct {
	// URL is the base URL of the remote write endpoint (e.g., "http://localhost:8428").
	URL string
	// Prefix is the metric name prefix. All metric names will be prefixed with this value
	// followed by an underscore.
	Prefix string
	// Job is the job label for all metrics.
	Job string
	// Instance is the instance label for all metrics.
	Instance string
	// Timeout is the HTTP client timeout. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Logger receives flush failures from Start. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewPushRegistry creates a new PushRegistry that pushes metrics to the given URL.
func NewPushRegistry(cfg PushConfig) *PushRegistry {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &pusher{
		url:        strings.TrimSuffix(cfg.URL, "/") + "/api/v1/write",
		httpClient: &http.Client{Timeout: timeout},
		prefix:     cfg.Prefix,
		job:        cfg.Job,
		instance:   cfg.Instance,
		logger:     logger,
		series:     make(map[string]*series),
		now:        time.Now,
	}
	return &PushRegistry{pusher: p}
}

// Flush sends the current value of every recorded series in a single write request.
// It is a no-op if nothing has been recorded.
func (r *PushRegistry) Flush(ctx context.Context) error {
	return r.pusher.flush(ctx)
}

// Start flushes every interval until ctx is done, then flushes one last time.
// Errors are logged, not returned.
func (r *PushRegistry) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.pusher.flush(ctx); err != nil {
				r.pusher.logger.Warn("metrics push failed", "error", err)
			}
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.pusher.httpClient.Timeout)
			if err := r.pusher.flush(final); err != nil {
				r.pusher.logger.Warn("final metrics push failed", "error", err)
			}
			cancel()
			return
		}
	}
}

// NewGauge creates a new push-based Gauge.
func (r *PushRegistry) NewGauge(opts prometheus.GaugeOpts) (Gauge, error) {
	return &pushGauge{series: r.pusher.lookup(opts.Name, nil)}, nil
}

// NewGaugeVec creates a new push-based GaugeVec.
func (r *PushRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error) {
	return &pushGaugeVec{
		pusher: r.pusher,
		name:   opts.Name,
		labels: labels,
	}, nil
}

// NewCounter creates a new push-based Counter.
func (r *PushRegistry) NewCounter(opts prometheus.CounterOpts) (Counter, error) {
	return &pushCounter{series: r.pusher.lookup(opts.Name, nil)}, nil
}

// NewCounterVec creates a new push-based CounterVec.
func (r *PushRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error) {
	return &pushCounterVec{
		pusher: r.pusher,
		name:   opts.Name,
		labels: labels,
	}, nil
}

// series is one named, labelled value awaiting the next flush.
type series struct {
	mu     sync.Mutex
	name   string
	labels map[string]string
	value  float64
	set    bool
}

func (s *series) store(v float64) {
	s.mu.Lock()
	s.value = v
	s.set = true
	s.mu.Unlock()
}

func (s *series) add(v float64) {
	if v < 0 {
		panic("counter cannot decrease in value")
	}
	s.mu.Lock()
	s.value += v
	s.set = true
	s.mu.Unlock()
}

func (s *series) load() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.set
}

// pusher handles remote write to VictoriaMetrics/Prometheus.
type pusher struct {
	url        string
	httpClient *http.Client
	prefix     string
	job        string
	instance   string
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.Mutex
	series map[string]*series
}

// lookup returns the series for name and labels, creating it on first use.
func (p *pusher) lookup(name string, labels map[string]string) *series {
	key := name + "{" + labelsToKey(labels) + "}"

	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.series[key]; ok {
		return s
	}
	s := &series{name: name, labels: labels}
	p.series[key] = s
	return s
}

// drop forgets every series recorded under name.
func (p *pusher) drop(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, s := range p.series {
		if s.name == name {
			delete(p.series, key)
		}
	}
}

func (p *pusher) snapshot() []prompb.TimeSeries {
	p.mu.Lock()
	keys := make([]string, 0, len(p.series))
	for k := range p.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	all := make([]*series, 0, len(keys))
	for _, k := range keys {
		all = append(all, p.series[k])
	}
	p.mu.Unlock()

	ts := p.now().UnixMilli()
	result := make([]prompb.TimeSeries, 0, len(all))
	for _, s := range all {
		value, ok := s.load()
		if !ok {
			continue
		}
		result = append(result, p.metricToTimeSeries(s.name, value, s.labels, ts))
	}
	return result
}

// flush sends all recorded series to the remote write endpoint.
func (p *pusher) flush(ctx context.Context) error {
	timeseries := p.snapshot()
	if len(timeseries) == 0 {
		return nil
	}

	data, err := proto.Marshal(&prompb.WriteRequest{Timeseries: timeseries})
	if err != nil {
		return fmt.Errorf("marshaling write request: %w", err)
	}

	compressed := snappy.Encode(nil, data)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// metricToTimeSeries converts a metric to Prometheus TimeSeries format.
// Labels are sorted by name as remote write requires.
func (p *pusher) metricToTimeSeries(name string, value float64, labels map[string]string, timestamp int64) prompb.TimeSeries {
	metricName := name
	if p.prefix != "" {
		metricName = p.prefix + "_" + name
	}

	promLabels := make([]prompb.Label, 0, len(labels)+3)
	promLabels = append(promLabels, prompb.Label{Name: "__name__", Value: metricName})
	if p.job != "" {
		promLabels = append(promLabels, prompb.Label{Name: "job", Value: p.job})
	}
	if p.instance != "" {
		promLabels = append(promLabels, prompb.Label{Name: "instance", Value: p.instance})
	}
	for k, v := range labels {
		promLabels = append(promLabels, prompb.Label{Name: k, Value: v})
	}
	slices.SortFunc(promLabels, func(a, b prompb.Label) int {
		return strings.Compare(a.Name, b.Name)
	})

	return prompb.TimeSeries{
		Labels:  promLabels,
		Samples: []prompb.Sample{{Value: value, Timestamp: timestamp}},
	}
}

type pushGauge struct {
	series *series
}

func (g *pushGauge) Set(v float64) {
	g.series.store(v)
}

type pushGaugeVec struct {
	pusher *pusher
	name   string
	labels []string
}

func (g *pushGaugeVec) With(labels prometheus.Labels) Gauge {
	return &pushGauge{series: g.pusher.lookup(g.name, labels)}
}

// Reset stops pushing every series of the vec.
func (g *pushGaugeVec) Reset() {
	g.pusher.drop(g.name)
}

type pushCounter struct {
	series *series
}

func (c *pushCounter) Inc() {
	c.series.add(1)
}

func (c *pushCounter) Add(v float64) {
	c.series.add(v)
}

type pushCounterVec struct {
	pusher *pusher
	name   string
	labels []string
}

func (c *pushCounterVec) With(labels prometheus.Labels) Counter {
	return &pushCounter{series: c.pusher.lookup(c.name, labels)}
}

// labelsToKey creates a deterministic string key from labels for map lookup.
func labelsToKey(labels map[string]string) string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, k := range names {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}
