// Package field maps named, typed values of an L0 device onto frames.
//
// A Field is addressed on the wire by a one byte id and holds either a
// single value or a fixed length array of bytes, 32-bit signed integers or
// 32-bit floats, encoded big-endian. Reading a field sends a GET frame and
// queues a continuation; the next SET frame received for the field, whether
// it answers that GET or is an unsolicited report, is decoded once and
// delivered to every queued continuation.
package field
