// Package metrics exports wire level activity to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotalks/fieldlink/pkg/framework"
	"github.com/robotalks/fieldlink/pkg/l0/comm"
	"github.com/robotalks/fieldlink/pkg/l0/field"
)

// Drop reasons used as label values.
const (
	ReasonChecksum     = "checksum"
	ReasonUnknownField = "unknown_field"
	ReasonPayloadSize  = "payload_size"
	ReasonOther        = "other"
)

// NewRegistry creates a Registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics in reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Monitor implements comm.Monitor with Prometheus counters.
type Monitor struct {
	FramesReceived *prometheus.CounterVec // labels: type
	FramesSent     *prometheus.CounterVec // labels: type
	FramesDropped  *prometheus.CounterVec // labels: reason
	Resyncs        *prometheus.CounterVec // labels: reason
}

// NewMonitor creates a Monitor and registers its counters to reg.
func NewMonitor(reg prometheus.Registerer) *Monitor {
	m := &Monitor{
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldlink_frames_received_total",
			Help: "Valid frames received by type.",
		}, []string{"type"}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldlink_frames_sent_total",
			Help: "Frames sent by type.",
		}, []string{"type"}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldlink_frames_dropped_total",
			Help: "Frames dropped by reason.",
		}, []string{"reason"}),
		Resyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldlink_parser_resyncs_total",
			Help: "Parser resets of a partial frame by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.FramesReceived, m.FramesSent, m.FramesDropped, m.Resyncs)
	return m
}

// FrameReceived implements comm.Monitor.
func (m *Monitor) FrameReceived(f *comm.Frame) {
	m.FramesReceived.WithLabelValues(f.Type.String()).Inc()
}

// FrameSent implements comm.Monitor.
func (m *Monitor) FrameSent(f *comm.Frame) {
	m.FramesSent.WithLabelValues(f.Type.String()).Inc()
}

// FrameDropped implements comm.Monitor.
func (m *Monitor) FrameDropped(err error) {
	m.FramesDropped.WithLabelValues(DropReason(err)).Inc()
}

// Resynced implements comm.Monitor.
func (m *Monitor) Resynced(reason comm.ResyncReason) {
	m.Resyncs.WithLabelValues(reason.String()).Inc()
}

// DropReason classifies the error of a dropped frame.
func DropReason(err error) string {
	switch {
	case errors.Is(err, comm.ErrChecksumInvalid):
		return ReasonChecksum
	case errors.Is(err, field.ErrUnknownFieldID):
		return ReasonUnknownField
	case errors.Is(err, field.ErrPayloadSize):
		return ReasonPayloadSize
	}
	return ReasonOther
}

// Server serves /metrics until the context is canceled.
type Server struct {
	Addr     string
	Registry *prometheus.Registry
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "metrics"
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(s.Registry))
	srv := &http.Server{Handler: mux}
	glog.Infof("metrics listening on %s", ln.Addr())
	err := framework.RunWithContextCloser(ctx, srv, func() error {
		return srv.Serve(ln)
	})
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
