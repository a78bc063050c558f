package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/fieldlink/pkg/l0/comm"
	"github.com/robotalks/fieldlink/pkg/l0/field"
)

func TestMonitor(t *testing.T) {
	m := NewMonitor(prometheus.NewRegistry())
	m.FrameReceived(comm.NewSet(4, []byte{1}))
	m.FrameReceived(comm.NewSet(4, []byte{2}))
	m.FrameSent(comm.NewGet(4))
	m.FrameDropped(&comm.ChecksumError{Type: comm.FrameGet, ID: 4, Expected: 75, Actual: 1})
	m.FrameDropped(&field.UnknownFieldIDError{ID: 9})
	m.FrameDropped(&field.PayloadSizeError{Expected: 4, Actual: 1})
	m.FrameDropped(errors.New("handler"))
	m.Resynced(comm.ResyncTimeout)

	require.Equal(t, 2.0, testutil.ToFloat64(m.FramesReceived.WithLabelValues("SET")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.FramesSent.WithLabelValues("GET")))
	for _, reason := range []string{ReasonChecksum, ReasonUnknownField, ReasonPayloadSize, ReasonOther} {
		require.Equal(t, 1.0, testutil.ToFloat64(m.FramesDropped.WithLabelValues(reason)), reason)
	}
	require.Equal(t, 1.0, testutil.ToFloat64(m.Resyncs.WithLabelValues(comm.ResyncTimeout.String())))
}

func TestMonitorWithConn(t *testing.T) {
	m := NewMonitor(prometheus.NewRegistry())
	conn := comm.NewConn(nil)
	conn.Monitor = comm.Monitors{conn.Monitor, m}
	conn.Receive(context.Background(), 'G', 4, 75, 'G', 4, 0)
	require.Equal(t, 1.0, testutil.ToFloat64(m.FramesReceived.WithLabelValues("GET")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.FramesDropped.WithLabelValues(ReasonChecksum)))
	require.Equal(t, 1, conn.InvalidChecksums())
}

func TestServer(t *testing.T) {
	reg := NewRegistry()
	m := NewMonitor(reg)
	m.FrameSent(comm.NewGet(1))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	srv := &Server{Registry: reg}
	go func() { errCh <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `fieldlink_frames_sent_total{type="GET"} 1`))

	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("server not stopped")
	}
}
