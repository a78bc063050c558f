// Package comm provides L0 protocol support.
package comm

// L0 protocol is communicated between L0 firmware (a microcontroller) and
// the L1 host over a peer-to-peer byte stream (e.g. serial port).
//
// Three frame shapes exist:
//
//	GET     'G' id checksum
//	SET     'S' id length payload... checksum
//	EXECUTE 'E' id checksum
//
// The checksum is a running modulo-255 sum of all preceding bytes of the
// frame. There is no sequence number and no retransmission: a frame that is
// corrupted, interrupted for longer than the inter-byte timeout, or too long
// is dropped and the parser waits for the next frame marker.
//
// Producer: both L0 firmware and L1 host
// Consumer: both L0 firmware and L1 host
