package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// remoteWriteServer decodes every write request it receives onto a channel.
func remoteWriteServer(t *testing.T, status int) (*httptest.Server, <-chan []prompb.TimeSeries) {
	t.Helper()
	received := make(chan []prompb.TimeSeries, 10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/write", r.URL.Path)
		assert.Equal(t, "snappy", r.Header.Get("Content-Encoding"))
		assert.Equal(t, "application/x-protobuf", r.Header.Get("Content-Type"))
		assert.Equal(t, "0.1.0", r.Header.Get("X-Prometheus-Remote-Write-Version"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		decoded, err := snappy.Decode(nil, body)
		require.NoError(t, err)

		var writeReq prompb.WriteRequest
		require.NoError(t, proto.Unmarshal(decoded, &writeReq))

		received <- writeReq.Timeseries
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, received
}

func findLabel(labels []prompb.Label, name string) string {
	for _, l := range labels {
		if l.Name == name {
			return l.Value
		}
	}
	return ""
}

func TestNewPushRegistry(t *testing.T) {
	tests := []struct {
		name    string
		cfg     PushConfig
		wantURL string
	}{
		{
			name:    "minimal config",
			cfg:     PushConfig{URL: "http://localhost:8428"},
			wantURL: "http://localhost:8428/api/v1/write",
		},
		{
			name: "full config",
			cfg: PushConfig{
				URL:      "http://localhost:8428/",
				Prefix:   "test",
				Job:      "testjob",
				Instance: "testinstance",
				Timeout:  5 * time.Second,
			},
			wantURL: "http://localhost:8428/api/v1/write",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewPushRegistry(tt.cfg)
			require.NotNil(t, registry)
			require.NotNil(t, registry.pusher)
			assert.Equal(t, tt.wantURL, registry.pusher.url)
		})
	}
}

func TestPushRegistry_RecordingDoesNotPush(t *testing.T) {
	server, received := remoteWriteServer(t, http.StatusNoContent)
	registry := NewPushRegistry(PushConfig{URL: server.URL})

	gauge, err := registry.NewGauge(prometheus.GaugeOpts{Name: "test_gauge"})
	require.NoError(t, err)
	gauge.Set(1)

	assert.Empty(t, received)
}

func TestPushRegistry_FlushNothingRecorded(t *testing.T) {
	server, received := remoteWriteServer(t, http.StatusNoContent)
	registry := NewPushRegistry(PushConfig{URL: server.URL})

	_, err := registry.NewCounter(prometheus.CounterOpts{Name: "unused"})
	require.NoError(t, err)

	require.NoError(t, registry.Flush(context.Background()))
	assert.Empty(t, received)
}

func TestPushGauge_Set(t *testing.T) {
	server, received := remoteWriteServer(t, http.StatusOK)

	registry := NewPushRegistry(PushConfig{
		URL:      server.URL,
		Prefix:   "test",
		Job:      "testjob",
		Instance: "testinstance",
	})
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	registry.pusher.now = func() time.Time { return fixed }

	gauge, err := registry.NewGauge(prometheus.GaugeOpts{
		Name: "test_metric",
		Help: "A test metric",
	})
	require.NoError(t, err)
	gauge.Set(41.0)
	gauge.Set(42.0)

	require.NoError(t, registry.Flush(context.Background()))

	ts := <-received
	require.Len(t, ts, 1)
	assert.Equal(t, "test_test_metric", findLabel(ts[0].Labels, "__name__"))
	assert.Equal(t, "testjob", findLabel(ts[0].Labels, "job"))
	assert.Equal(t, "testinstance", findLabel(ts[0].Labels, "instance"))
	require.Len(t, ts[0].Samples, 1)
	assert.Equal(t, 42.0, ts[0].Samples[0].Value)
	assert.Equal(t, fixed.UnixMilli(), ts[0].Samples[0].Timestamp)
}

func TestPushGaugeVec_WithLabels(t *testing.T) {
	server, received := remoteWriteServer(t, http.StatusOK)
	registry := NewPushRegistry(PushConfig{URL: server.URL})

	gaugeVec, err := registry.NewGaugeVec(prometheus.GaugeOpts{
		Name: "test_gauge_vec",
	}, []string{"form", "outcome"})
	require.NoError(t, err)

	gaugeVec.With(prometheus.Labels{"form": "signup", "outcome": "ok"}).Set(123.0)

	require.NoError(t, registry.Flush(context.Background()))

	ts := <-received
	require.Len(t, ts, 1)
	assert.Equal(t, "test_gauge_vec", findLabel(ts[0].Labels, "__name__"))
	assert.Equal(t, "signup", findLabel(ts[0].Labels, "form"))
	assert.Equal(t, "ok", findLabel(ts[0].Labels, "outcome"))

	names := make([]string, 0, len(ts[0].Labels))
	for _, l := range ts[0].Labels {
		names = append(names, l.Name)
	}
	assert.IsIncreasing(t, names)
}

func TestPushGaugeVec_Reset(t *testing.T) {
	server, received := remoteWriteServer(t, http.StatusOK)
	registry := NewPushRegistry(PushConfig{URL: server.URL})

	gaugeVec, err := registry.NewGaugeVec(prometheus.GaugeOpts{Name: "spots_left"}, []string{"activity"})
	require.NoError(t, err)
	gauge, err := registry.NewGauge(prometheus.GaugeOpts{Name: "activities"})
	require.NoError(t, err)

	gaugeVec.With(prometheus.Labels{"activity": "Chess Club"}).Set(3)
	gaugeVec.With(prometheus.Labels{"activity": "Drama Club"}).Set(1)
	gauge.Set(2)

	gaugeVec.Reset()
	gaugeVec.With(prometheus.Labels{"activity": "Chess Club"}).Set(2)

	require.NoError(t, registry.Flush(context.Background()))

	ts := <-received
	require.Len(t, ts, 2)
	got := map[string]float64{}
	for _, s := range ts {
		got[findLabel(s.Labels, "__name__")+"/"+findLabel(s.Labels, "activity")] = s.Samples[0].Value
	}
	assert.Equal(t, map[string]float64{"spots_left/Chess Club": 2, "activities/": 2}, got)
}

func TestPushCounterVec_SharesSeries(t *testing.T) {
	server, received := remoteWriteServer(t, http.StatusOK)
	registry := NewPushRegistry(PushConfig{URL: server.URL})

	counterVec, err := registry.NewCounterVec(prometheus.CounterOpts{
		Name: "submissions_total",
	}, []string{"form", "outcome"})
	require.NoError(t, err)

	// Label map iteration order must not split one series in two.
	for i := 0; i < 5; i++ {
		counterVec.With(prometheus.Labels{"form": "signup", "outcome": "ok"}).Inc()
	}
	counterVec.With(prometheus.Labels{"outcome": "error", "form": "signup"}).Add(2)

	require.NoError(t, registry.Flush(context.Background()))

	ts := <-received
	require.Len(t, ts, 2)
	values := map[string]float64{}
	for _, s := range ts {
		values[findLabel(s.Labels, "outcome")] = s.Samples[0].Value
	}
	assert.Equal(t, map[string]float64{"ok": 5, "error": 2}, values)
}

func TestPushCounter_Inc(t *testing.T) {
	server, received := remoteWriteServer(t, http.StatusOK)
	registry := NewPushRegistry(PushConfig{URL: server.URL})

	counter, err := registry.NewCounter(prometheus.CounterOpts{Name: "test_counter"})
	require.NoError(t, err)

	counter.Inc()
	require.NoError(t, registry.Flush(context.Background()))
	counter.Inc()
	require.NoError(t, registry.Flush(context.Background()))

	for i := 1; i <= 2; i++ {
		ts := <-received
		require.Len(t, ts, 1)
		assert.Equal(t, float64(i), ts[0].Samples[0].Value)
	}

	assert.Panics(t, func() { counter.Add(-1) })
}

func TestPushRegistry_FlushError(t *testing.T) {
	server, _ := remoteWriteServer(t, http.StatusBadRequest)
	registry := NewPushRegistry(PushConfig{URL: server.URL})

	gauge, err := registry.NewGauge(prometheus.GaugeOpts{Name: "g"})
	require.NoError(t, err)
	gauge.Set(1)

	err = registry.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
}

func TestPushRegistry_StartFlushesOnCancel(t *testing.T) {
	server, received := remoteWriteServer(t, http.StatusOK)
	registry := NewPushRegistry(PushConfig{URL: server.URL})

	gauge, err := registry.NewGauge(prometheus.GaugeOpts{Name: "g"})
	require.NoError(t, err)
	gauge.Set(7)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		registry.Start(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	ts := <-received
	require.Len(t, ts, 1)
	assert.Equal(t, 7.0, ts[0].Samples[0].Value)
}

func TestLabelsToKey(t *testing.T) {
	a := labelsToKey(map[string]string{"b": "2", "a": "1"})
	b := labelsToKey(map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, "a=1,b=2,", a)
	assert.Equal(t, a, b)
	assert.Equal(t, "", labelsToKey(nil))
}

func TestScrapeRegistry(t *testing.T) {
	registry, err := NewScrapeRegistry("")
	require.NoError(t, err)
	require.NotNil(t, registry)

	gauge, err := registry.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge",
		Help: "A test gauge",
	})
	require.NoError(t, err)
	gauge.Set(42.0)

	counter, err := registry.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "A test counter",
	})
	require.NoError(t, err)
	counter.Inc()

	counterVec, err := registry.NewCounterVec(prometheus.CounterOpts{
		Name: "test_counter_vec",
		Help: "A test counter vector",
	}, []string{"form"})
	require.NoError(t, err)
	counterVec.With(prometheus.Labels{"form": "signup"}).Add(3)

	handler := registry.Handler()
	require.NotNil(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "test_gauge 42")
	assert.Contains(t, body, "test_counter 1")
	assert.Contains(t, body, `test_counter_vec{form="signup"} 3`)
}

func TestScrapeRegistry_Namespace(t *testing.T) {
	registry, err := NewScrapeRegistry("signup")
	require.NoError(t, err)

	gauge, err := registry.NewGauge(prometheus.GaugeOpts{Name: "activities", Help: "Activities"})
	require.NoError(t, err)
	gauge.Set(3)

	_, err = registry.NewGauge(prometheus.GaugeOpts{Name: "activities", Help: "Activities"})
	assert.Error(t, err, "duplicate registration")

	w := httptest.NewRecorder()
	registry.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "signup_activities 3")
}

func TestNopRegistry(t *testing.T) {
	var reg Registry = NopRegistry{}

	g, err := reg.NewGauge(prometheus.GaugeOpts{Name: "g"})
	require.NoError(t, err)
	g.Set(1)

	gv, err := reg.NewGaugeVec(prometheus.GaugeOpts{Name: "gv"}, []string{"l"})
	require.NoError(t, err)
	gv.With(prometheus.Labels{"l": "x"}).Set(1)
	gv.Reset()

	c, err := reg.NewCounter(prometheus.CounterOpts{Name: "c"})
	require.NoError(t, err)
	c.Inc()

	cv, err := reg.NewCounterVec(prometheus.CounterOpts{Name: "cv"}, []string{"l"})
	require.NoError(t, err)
	cv.With(prometheus.Labels{"l": "x"}).Add(2)
}
