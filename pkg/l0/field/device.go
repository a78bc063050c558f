package field

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/fieldlink/pkg/l0/comm"
)

const (
	// DefaultExpiration is how long a GET waits for its value.
	DefaultExpiration = time.Second
	// DefaultPurgeInterval is how often Run drops expired requests.
	DefaultPurgeInterval = 500 * time.Millisecond
)

// Device is the remote end of a Conn, exposing its fields.
type Device struct {
	Conn *comm.Conn
	// Expiration bounds how long a GET stays pending. Zero disables expiry.
	Expiration    time.Duration
	PurgeInterval time.Duration
	// GetHandler receives GET frames sent by the remote end.
	GetHandler comm.FrameHandler
	// ExecuteHandler receives EXECUTE frames sent by the remote end.
	ExecuteHandler comm.FrameHandler

	registry *Registry
}

// NewDevice creates a Device talking over rw.
func NewDevice(rw io.ReadWriter) *Device {
	d := &Device{
		Conn:          comm.NewConn(rw),
		Expiration:    DefaultExpiration,
		PurgeInterval: DefaultPurgeInterval,
		registry:      NewRegistry(),
	}
	d.Conn.Handler = d
	return d
}

// Register creates a field and binds it to the device.
func (d *Device) Register(name string, id byte, typ ValueType, quantity int) (*Field, error) {
	f, err := NewField(name, id, typ, quantity)
	if err != nil {
		return nil, err
	}
	if err := d.registry.Add(f); err != nil {
		return nil, err
	}
	f.device = d
	return f, nil
}

// MustRegister is Register but panics on error.
func (d *Device) MustRegister(name string, id byte, typ ValueType, quantity int) *Field {
	f, err := d.Register(name, id, typ, quantity)
	if err != nil {
		panic(err)
	}
	return f
}

// Field looks up a field by name.
func (d *Device) Field(name string) *Field {
	return d.registry.ByName(name)
}

// FieldByID looks up a field by wire id.
func (d *Device) FieldByID(id byte) *Field {
	return d.registry.ByID(id)
}

// Fields returns all fields in registration order.
func (d *Device) Fields() []*Field {
	return d.registry.Fields()
}

// HandleFrame implements comm.FrameHandler.
func (d *Device) HandleFrame(ctx context.Context, f *comm.Frame) error {
	switch f.Type {
	case comm.FrameSet:
		fd := d.registry.ByID(f.ID)
		if fd == nil {
			return &UnknownFieldIDError{ID: f.ID}
		}
		return fd.receive(f.Payload, d.now())
	case comm.FrameGet:
		if h := d.GetHandler; h != nil {
			return h.HandleFrame(ctx, f)
		}
	case comm.FrameExecute:
		if h := d.ExecuteHandler; h != nil {
			return h.HandleFrame(ctx, f)
		}
	default:
		return fmt.Errorf("%w: %s", comm.ErrUnknownFrameType, f.Type)
	}
	glog.V(2).Infof("ignored %s", f)
	return nil
}

// Receive feeds bytes from the transport.
func (d *Device) Receive(ctx context.Context, data ...byte) {
	d.Conn.Receive(ctx, data...)
}

// PurgeExpired drops requests that expired before now.
func (d *Device) PurgeExpired(now time.Time) {
	for _, f := range d.registry.Fields() {
		f.purgeExpired(now)
	}
}

// Run reads the stream and purges expired requests until ctx is done
// or the stream fails.
func (d *Device) Run(ctx context.Context) error {
	interval := d.PurgeInterval
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.PurgeExpired(d.now())
			}
		}
	}()
	return d.Conn.Run(ctx)
}

// WriteEEPROM asks the device to persist its state.
func (d *Device) WriteEEPROM() error {
	return d.Conn.Control(comm.ControlWriteEEPROM)
}

// ReadEEPROM asks the device to reload its persisted state.
func (d *Device) ReadEEPROM() error {
	return d.Conn.Control(comm.ControlReadEEPROM)
}

// FactoryReset asks the device to restore defaults.
func (d *Device) FactoryReset() error {
	return d.Conn.Control(comm.ControlFactoryReset)
}

// Reboot asks the device to restart.
func (d *Device) Reboot() error {
	return d.Conn.Control(comm.ControlReboot)
}

// Close closes the underlying stream.
func (d *Device) Close() error {
	return d.Conn.Close()
}

func (d *Device) now() time.Time {
	if d.Conn != nil && d.Conn.Now != nil {
		return d.Conn.Now()
	}
	return time.Now()
}
