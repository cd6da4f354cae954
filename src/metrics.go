package il2prx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the receiver's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	bits         prometheus.Counter
	markers      prometheus.Counter
	frames       prometheus.Counter
	framerDrops  *prometheus.CounterVec // reason
	discards     *prometheus.CounterVec // reason
	packets      *prometheus.CounterVec // crc = ok / bad
	corrections  *prometheus.CounterVec // block = header / payload
	payloadBytes prometheus.Counter
	sinkErrors   *prometheus.CounterVec // sink
}

// NewMetrics creates the collectors in a registry of their own so more
// than one session can exist in a process, tests included.
func NewMetrics() *Metrics {
	var reg = prometheus.NewRegistry()
	var f = promauto.With(reg)

	return &Metrics{
		registry: reg,
		bits: f.NewCounter(prometheus.CounterOpts{
			Name: "il2p_bits_total",
			Help: "Hard bits received from the demodulator",
		}),
		markers: f.NewCounter(prometheus.CounterOpts{
			Name: "il2p_sync_markers_total",
			Help: "Access code matches from the correlator",
		}),
		frames: f.NewCounter(prometheus.CounterOpts{
			Name: "il2p_frames_total",
			Help: "Raw frames cut out by the framer",
		}),
		framerDrops: f.NewCounterVec(prometheus.CounterOpts{
			Name: "il2p_framer_dropped_markers_total",
			Help: "Sync markers the framer gave up on",
		}, []string{"reason"}),
		discards: f.NewCounterVec(prometheus.CounterOpts{
			Name: "il2p_discarded_frames_total",
			Help: "Frames that produced no packet, by reason",
		}, []string{"reason"}),
		packets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "il2p_packets_total",
			Help: "Assembled packets by CRC result",
		}, []string{"crc"}),
		corrections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "il2p_rs_corrections_total",
			Help: "Symbols fixed by Reed-Solomon",
		}, []string{"block"}),
		payloadBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "il2p_payload_bytes_total",
			Help: "Payload bytes written to the payload file",
		}),
		sinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "il2p_sink_errors_total",
			Help: "Failed writes to packet sinks",
		}, []string{"sink"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	var mux = http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	var srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		var shutdownCtx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (m *Metrics) addBits(n int) {
	if m == nil {
		return
	}
	m.bits.Add(float64(n))
}

func (m *Metrics) addMarkers(n int) {
	if m == nil {
		return
	}
	m.markers.Add(float64(n))
}

func (m *Metrics) addFramerDrops(stale int, zeroLen int) {
	if m == nil {
		return
	}
	if stale > 0 {
		m.framerDrops.WithLabelValues("stale").Add(float64(stale))
	}
	if zeroLen > 0 {
		m.framerDrops.WithLabelValues("zero_len").Add(float64(zeroLen))
	}
}

func (m *Metrics) frame() {
	if m == nil {
		return
	}
	m.frames.Inc()
}

func (m *Metrics) discard(reason string) {
	if m == nil {
		return
	}
	m.discards.WithLabelValues(reason).Inc()
}

func (m *Metrics) packet(p *Packet) {
	if m == nil {
		return
	}
	if p.CRCOK {
		m.packets.WithLabelValues("ok").Inc()
	} else {
		m.packets.WithLabelValues("bad").Inc()
	}
	if p.HeaderCorrections > 0 {
		m.corrections.WithLabelValues("header").Add(float64(p.HeaderCorrections))
	}
	if p.PayloadCorrections > 0 {
		m.corrections.WithLabelValues("payload").Add(float64(p.PayloadCorrections))
	}
}

func (m *Metrics) payloadWritten(n int) {
	if m == nil {
		return
	}
	m.payloadBytes.Add(float64(n))
}

func (m *Metrics) sinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}
