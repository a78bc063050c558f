package comm

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// FrameHandler is called when a valid frame is received.
// A returned error drops the frame and is reported to the Monitor.
type FrameHandler interface {
	HandleFrame(context.Context, *Frame) error
}

// HandleFrameFunc is func type of FrameHandler.
type HandleFrameFunc func(context.Context, *Frame) error

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, frame *Frame) error {
	return f(ctx, frame)
}

// ControlCommand is an out-of-band device command sent as two
// identical bytes outside of the framing.
type ControlCommand byte

// Control commands.
const (
	ControlWriteEEPROM  ControlCommand = 'W'
	ControlReadEEPROM   ControlCommand = 'R'
	ControlFactoryReset ControlCommand = 'F'
	ControlReboot       ControlCommand = 'B'
)

// String implements fmt.Stringer.
func (c ControlCommand) String() string {
	switch c {
	case ControlWriteEEPROM:
		return "write-eeprom"
	case ControlReadEEPROM:
		return "read-eeprom"
	case ControlFactoryReset:
		return "factory-reset"
	case ControlReboot:
		return "reboot"
	}
	return "unknown"
}

const readBufferSize = 64

// Conn sends frames to and receives frames from a byte stream.
// Received bytes are processed one at a time and serialized, whether they
// come from Run or from Receive called by a transport.
type Conn struct {
	ReadWriter io.ReadWriter
	Handler    FrameHandler
	Monitor    Monitor
	Timeout    time.Duration
	Now        func() time.Time

	parser           Parser
	invalidChecksums int64
	recvLock         sync.Mutex
	sendLock         sync.Mutex
}

// NewConn creates a Conn.
func NewConn(rw io.ReadWriter) *Conn {
	c := &Conn{
		ReadWriter: rw,
		Timeout:    DefaultTimeout,
		Now:        time.Now,
	}
	c.Monitor = LogMonitor{Counter: c.InvalidChecksums}
	return c
}

// Send encodes and writes a frame.
func (c *Conn) Send(f *Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	c.sendLock.Lock()
	_, err := c.ReadWriter.Write(f.Bytes())
	c.sendLock.Unlock()
	if err != nil {
		return err
	}
	if m := c.Monitor; m != nil {
		m.FrameSent(f)
	}
	return nil
}

// Control sends an out-of-band command.
func (c *Conn) Control(cmd ControlCommand) error {
	c.sendLock.Lock()
	defer c.sendLock.Unlock()
	_, err := c.ReadWriter.Write([]byte{byte(cmd), byte(cmd)})
	return err
}

// InvalidChecksums returns the number of frames dropped for invalid checksum.
func (c *Conn) InvalidChecksums() int {
	return int(atomic.LoadInt64(&c.invalidChecksums))
}

// State gets the parser state.
func (c *Conn) State() ParseState {
	c.recvLock.Lock()
	defer c.recvLock.Unlock()
	return c.parser.State()
}

// Receive feeds received bytes into the parser.
func (c *Conn) Receive(ctx context.Context, data ...byte) {
	c.recvLock.Lock()
	defer c.recvLock.Unlock()
	c.parser.Timeout = c.Timeout
	for _, b := range data {
		c.applyParseResult(ctx, c.parser.Parse(b, c.now()))
	}
}

// Run reads the stream in the background until the context is canceled
// or the stream fails. The stream is closed on return if it's an io.Closer.
func (c *Conn) Run(ctx context.Context) error {
	defer c.Close()
	dataCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.readLoop(subCtx, dataCh, errCh)
	for {
		select {
		case data := <-dataCh:
			c.Receive(ctx, data...)
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close implements io.Closer.
func (c *Conn) Close() error {
	if closer, ok := c.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Conn) readLoop(ctx context.Context, dataCh chan<- []byte, errCh chan<- error) {
	for {
		buf := make([]byte, readBufferSize)
		n, err := c.ReadWriter.Read(buf)
		if n > 0 {
			select {
			case dataCh <- buf[:n]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			errCh <- err
			return
		}
	}
}

func (c *Conn) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Conn) applyParseResult(ctx context.Context, pr ParseResult) {
	m := c.Monitor
	if m == nil {
		m = Monitors(nil)
	}
	if pr.Resync != ResyncNone {
		m.Resynced(pr.Resync)
	}
	if pr.Err != nil {
		if errors.Is(pr.Err, ErrChecksumInvalid) {
			atomic.AddInt64(&c.invalidChecksums, 1)
		}
		m.FrameDropped(pr.Err)
		return
	}
	if pr.Frame == nil {
		return
	}
	m.FrameReceived(pr.Frame)
	if h := c.Handler; h != nil {
		if err := h.HandleFrame(ctx, pr.Frame); err != nil {
			m.FrameDropped(err)
		}
	}
}
