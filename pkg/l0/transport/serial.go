package transport

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/tarm/serial"
)

const (
	// DefaultBaud is used when the URL doesn't specify baud.
	DefaultBaud = 9600
	// DefaultSerialReadTimeout bounds a single read so the port can be closed.
	DefaultSerialReadTimeout = 100 * time.Millisecond
)

// SerialConfig parses a serial URL into a port config. The device is the URL
// path, or the opaque part for URLs like serial:COM3. Query options are baud,
// timeout (a duration), size (data bits), parity (N, O, E, M, S) and stop (1, 15, 2).
func SerialConfig(u *url.URL) (*serial.Config, error) {
	name := u.Path
	if name == "" {
		name = u.Opaque
	}
	if name == "" {
		return nil, fmt.Errorf("serial url %q has no device", u)
	}
	cfg := &serial.Config{
		Name:        name,
		Baud:        DefaultBaud,
		ReadTimeout: DefaultSerialReadTimeout,
	}
	q := u.Query()
	if s := q.Get("baud"); s != "" {
		baud, err := strconv.Atoi(s)
		if err != nil || baud <= 0 {
			return nil, fmt.Errorf("invalid baud %q", s)
		}
		cfg.Baud = baud
	}
	if s := q.Get("timeout"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", s, err)
		}
		cfg.ReadTimeout = d
	}
	if s := q.Get("size"); s != "" {
		size, err := strconv.Atoi(s)
		if err != nil || size < 5 || size > 8 {
			return nil, fmt.Errorf("invalid size %q", s)
		}
		cfg.Size = byte(size)
	}
	if s := q.Get("parity"); s != "" {
		switch p := serial.Parity(s[0]); p {
		case serial.ParityNone, serial.ParityOdd, serial.ParityEven, serial.ParityMark, serial.ParitySpace:
			cfg.Parity = p
		default:
			return nil, fmt.Errorf("invalid parity %q", s)
		}
	}
	switch s := q.Get("stop"); s {
	case "":
	case "1":
		cfg.StopBits = serial.Stop1
	case "15", "1.5":
		cfg.StopBits = serial.Stop1Half
	case "2":
		cfg.StopBits = serial.Stop2
	default:
		return nil, fmt.Errorf("invalid stop bits %q", s)
	}
	return cfg, nil
}

// OpenSerial opens a serial port.
func OpenSerial(u *url.URL) (io.ReadWriteCloser, error) {
	cfg, err := SerialConfig(u)
	if err != nil {
		return nil, err
	}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Name, err)
	}
	return &serialPort{port: port}, nil
}

// serialPort hides read timeouts, which the port reports as io.EOF.
type serialPort struct {
	port io.ReadWriteCloser
}

func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (p *serialPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *serialPort) Close() error {
	return p.port.Close()
}
