package comm

import (
	"fmt"
	"io"
)

// FrameType is the marker byte starting a frame.
type FrameType byte

// Frame markers.
const (
	FrameGet     FrameType = 'G'
	FrameSet     FrameType = 'S'
	FrameExecute FrameType = 'E'
)

// MaxPayloadSize is the largest payload the length byte can declare.
const MaxPayloadSize = 255

// IsValid checks if it's one of the known frame markers.
func (t FrameType) IsValid() bool {
	return t == FrameGet || t == FrameSet || t == FrameExecute
}

// String implements fmt.Stringer.
func (t FrameType) String() string {
	switch t {
	case FrameGet:
		return "GET"
	case FrameSet:
		return "SET"
	case FrameExecute:
		return "EXECUTE"
	}
	return fmt.Sprintf("FrameType(%#02x)", byte(t))
}

// Frame contains the information of a parsed frame.
type Frame struct {
	Type    FrameType
	ID      byte
	Payload []byte
}

// NewGet creates a GET frame.
func NewGet(id byte) *Frame {
	return &Frame{Type: FrameGet, ID: id}
}

// NewSet creates a SET frame.
func NewSet(id byte, payload []byte) *Frame {
	return &Frame{Type: FrameSet, ID: id, Payload: payload}
}

// Validate checks the frame can be encoded.
func (f *Frame) Validate() error {
	if !f.Type.IsValid() {
		return ErrUnknownFrameType
	}
	if f.Type == FrameSet && len(f.Payload) > MaxPayloadSize {
		return ErrPayloadTooLarge
	}
	return nil
}

// Size returns the encoded size in bytes.
func (f *Frame) Size() int {
	if f.Type == FrameSet {
		return len(f.Payload) + 4
	}
	return 3
}

// Bytes returns encoded bytes for sending.
// The frame must be valid.
func (f *Frame) Bytes() []byte {
	b := make([]byte, 0, f.Size())
	b = append(b, byte(f.Type), f.ID)
	if f.Type == FrameSet {
		b = append(b, byte(len(f.Payload)))
		b = append(b, f.Payload...)
	}
	return append(b, Checksum(0, b...))
}

// WriteTo writes encoded bytes.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	n, err := w.Write(f.Bytes())
	return int64(n), err
}

// String implements fmt.Stringer.
func (f *Frame) String() string {
	if f.Type == FrameSet {
		return fmt.Sprintf("%s[%d] % x", f.Type, f.ID, f.Payload)
	}
	return fmt.Sprintf("%s[%d]", f.Type, f.ID)
}
