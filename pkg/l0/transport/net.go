package transport

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/websocket"
)

// DialTimeout bounds connecting to network transports.
var DialTimeout = 5 * time.Second

// OpenTCP connects to a serial-over-TCP bridge.
func OpenTCP(u *url.URL) (io.ReadWriteCloser, error) {
	if u.Host == "" {
		return nil, fmt.Errorf("tcp url %q has no host", u)
	}
	return net.DialTimeout("tcp", u.Host, DialTimeout)
}

// OpenWebSocket connects to a websocket relaying the serial stream in
// binary messages.
func OpenWebSocket(u *url.URL) (io.ReadWriteCloser, error) {
	origin := "http://localhost/"
	if o := u.Query().Get("origin"); o != "" {
		origin = o
	}
	cfg, err := websocket.NewConfig(u.String(), origin)
	if err != nil {
		return nil, err
	}
	cfg.Dialer = &net.Dialer{Timeout: DialTimeout}
	conn, err := websocket.DialConfig(cfg)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}
