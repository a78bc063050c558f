package comm

import "time"

// DefaultTimeout is the maximum gap between two bytes of the same frame.
const DefaultTimeout = 100 * time.Millisecond

// MaxFrameSize is the number of accumulated bytes forcing a resync.
const MaxFrameSize = 255

// Parser parses bytes received.
type Parser struct {
	// Timeout overrides DefaultTimeout when non-zero.
	Timeout time.Duration

	pos      int
	frame    Frame
	sum      byte
	recvLen  int
	lastByte time.Time

	invalidChecksums int
}

// ParseState is the position of the parser inside a frame.
type ParseState int

const (
	// StateIdle waits for a frame marker.
	StateIdle ParseState = iota
	// StateMarker has a marker and waits for the id.
	StateMarker
	// StateID has the id and waits for the checksum (GET/EXECUTE)
	// or the payload length (SET).
	StateID
	// StateAccumulating receives SET payload and checksum.
	StateAccumulating
)

// String implements fmt.Stringer.
func (s ParseState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMarker:
		return "marker"
	case StateID:
		return "id"
	case StateAccumulating:
		return "accumulating"
	}
	return "unknown"
}

// ResyncReason tells why a partial frame was abandoned.
type ResyncReason int

const (
	// ResyncNone means no resync happened.
	ResyncNone ResyncReason = iota
	// ResyncTimeout means the gap between two bytes exceeded the timeout.
	ResyncTimeout
	// ResyncOverflow means the frame exceeded MaxFrameSize.
	ResyncOverflow
)

// String implements fmt.Stringer.
func (r ResyncReason) String() string {
	switch r {
	case ResyncTimeout:
		return "timeout"
	case ResyncOverflow:
		return "overflow"
	}
	return "none"
}

// ParseResult indicates the result after one parsing step.
type ParseResult struct {
	// Resync is set when a partial frame was abandoned before
	// consuming the byte.
	Resync ResyncReason
	// Frame is set when a valid frame completes.
	Frame *Frame
	// Err is set when a frame completes with an invalid checksum.
	Err error
}

// State gets the current parse state.
func (p *Parser) State() ParseState {
	switch {
	case p.pos == 0:
		return StateIdle
	case p.pos == 1:
		return StateMarker
	case p.pos == 2:
		return StateID
	}
	return StateAccumulating
}

// InvalidChecksums returns the number of frames dropped for invalid checksum.
func (p *Parser) InvalidChecksums() int {
	return p.invalidChecksums
}

// Reset resets the internal state of parser.
func (p *Parser) Reset() {
	p.pos, p.sum, p.recvLen = 0, 0, 0
	p.frame = Frame{}
}

// Parse consumes one byte received at now.
func (p *Parser) Parse(b byte, now time.Time) (pr ParseResult) {
	if p.pos > 0 && now.Sub(p.lastByte) > p.timeout() {
		pr.Resync = ResyncTimeout
		p.Reset()
	} else if p.pos >= MaxFrameSize {
		pr.Resync = ResyncOverflow
		p.Reset()
	}
	p.lastByte = now
	pr.Frame, pr.Err = p.parseByte(b)
	return
}

func (p *Parser) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}

func (p *Parser) parseByte(b byte) (frame *Frame, err error) {
	switch {
	case p.pos == 0:
		t := FrameType(b)
		if !t.IsValid() {
			return
		}
		p.frame.Type = t
	case p.pos == 1:
		p.frame.ID = b
	case p.frame.Type != FrameSet:
		return p.frameReady(b)
	case p.pos == 2:
		p.frame.Payload, p.recvLen = make([]byte, b), 0
	case p.recvLen < len(p.frame.Payload):
		p.frame.Payload[p.recvLen] = b
		p.recvLen++
	default:
		return p.frameReady(b)
	}
	p.pos++
	p.sum = AddChecksum(p.sum, b)
	return
}

func (p *Parser) frameReady(checksum byte) (frame *Frame, err error) {
	if checksum == p.sum {
		f := p.frame
		frame = &f
	} else {
		p.invalidChecksums++
		err = &ChecksumError{Type: p.frame.Type, ID: p.frame.ID, Expected: p.sum, Actual: checksum}
	}
	p.Reset()
	return
}
