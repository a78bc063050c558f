package comm

import (
	"errors"

	"github.com/golang/glog"
)

// Monitor observes wire level activity of a Conn.
// All wire anomalies are reported here and never returned to callers.
type Monitor interface {
	FrameReceived(*Frame)
	FrameSent(*Frame)
	FrameDropped(error)
	Resynced(ResyncReason)
}

// Monitors fans out to multiple monitors.
type Monitors []Monitor

// FrameReceived implements Monitor.
func (m Monitors) FrameReceived(f *Frame) {
	for _, mon := range m {
		mon.FrameReceived(f)
	}
}

// FrameSent implements Monitor.
func (m Monitors) FrameSent(f *Frame) {
	for _, mon := range m {
		mon.FrameSent(f)
	}
}

// FrameDropped implements Monitor.
func (m Monitors) FrameDropped(err error) {
	for _, mon := range m {
		mon.FrameDropped(err)
	}
}

// Resynced implements Monitor.
func (m Monitors) Resynced(reason ResyncReason) {
	for _, mon := range m {
		mon.Resynced(reason)
	}
}

// LogMonitor logs wire activity with glog.
type LogMonitor struct {
	// Counter provides the running invalid checksum total for log lines.
	Counter func() int
}

// FrameReceived implements Monitor.
func (m LogMonitor) FrameReceived(f *Frame) {
	glog.V(2).Infof("RCV %s", f)
}

// FrameSent implements Monitor.
func (m LogMonitor) FrameSent(f *Frame) {
	glog.V(2).Infof("SND %s", f)
}

// FrameDropped implements Monitor.
func (m LogMonitor) FrameDropped(err error) {
	if errors.Is(err, ErrChecksumInvalid) && m.Counter != nil {
		glog.Warningf("frame dropped: %v (total invalid: %d)", err, m.Counter())
		return
	}
	glog.Warningf("frame dropped: %v", err)
}

// Resynced implements Monitor.
func (m LogMonitor) Resynced(reason ResyncReason) {
	glog.V(3).Infof("resync: %s", reason)
}
