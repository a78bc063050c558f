package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrChecksumInvalid indicates the trailing checksum byte of a received
	// frame doesn't match the computed one.
	ErrChecksumInvalid = errors.New("invalid checksum")
	// ErrPayloadTooLarge indicates a SET payload doesn't fit the length byte.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrUnknownFrameType indicates a frame type outside GET/SET/EXECUTE.
	ErrUnknownFrameType = errors.New("unknown frame type")
)

// ChecksumError reports a dropped frame with an invalid checksum.
type ChecksumError struct {
	Type     FrameType
	ID       byte
	Expected byte
	Actual   byte
}

// Error implements error.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s frame id %d: checksum %d, expected %d", e.Type, e.ID, e.Actual, e.Expected)
}

// Unwrap returns ErrChecksumInvalid.
func (e *ChecksumError) Unwrap() error {
	return ErrChecksumInvalid
}
