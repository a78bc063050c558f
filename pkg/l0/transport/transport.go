// Package transport opens the byte streams a comm.Conn runs over.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
)

// ErrUnsupportedScheme indicates no Opener is registered for the URL scheme.
var ErrUnsupportedScheme = errors.New("unsupported transport scheme")

// Opener opens a stream from a parsed URL.
type Opener func(u *url.URL) (io.ReadWriteCloser, error)

var (
	openersLock sync.RWMutex
	openers     = map[string]Opener{
		"serial": OpenSerial,
		"tcp":    OpenTCP,
		"ws":     OpenWebSocket,
		"wss":    OpenWebSocket,
	}
)

// Register adds or replaces the Opener for a scheme.
func Register(scheme string, opener Opener) {
	openersLock.Lock()
	defer openersLock.Unlock()
	openers[scheme] = opener
}

// Open opens the stream named by rawURL, e.g.
//
//	serial:///dev/ttyUSB0?baud=9600
//	tcp://192.168.1.10:2000
//	ws://localhost:8080/serial
func Open(rawURL string) (io.ReadWriteCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	openersLock.RLock()
	opener := openers[u.Scheme]
	openersLock.RUnlock()
	if opener == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return opener(u)
}
