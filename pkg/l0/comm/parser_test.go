package comm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type parserTestSequence struct {
	gap    time.Duration
	in     []byte
	resync ResyncReason
	final  ParseResult
	state  ParseState
}

type parserTestSequenceBuilder struct {
	seq []parserTestSequence
	gap time.Duration
}

func parserTestSequences() *parserTestSequenceBuilder {
	return &parserTestSequenceBuilder{}
}

func (b *parserTestSequenceBuilder) after(gap time.Duration) *parserTestSequenceBuilder {
	b.gap = gap
	return b
}

func (b *parserTestSequenceBuilder) on(in ...byte) *parserTestSequenceBuilder {
	b.seq = append(b.seq, parserTestSequence{gap: b.gap, in: in})
	b.gap = 0
	return b
}

func (b *parserTestSequenceBuilder) last() *parserTestSequence {
	return &b.seq[len(b.seq)-1]
}

func (b *parserTestSequenceBuilder) in(state ParseState) *parserTestSequenceBuilder {
	b.last().state = state
	return b
}

func (b *parserTestSequenceBuilder) resync(reason ResyncReason) *parserTestSequenceBuilder {
	b.last().resync = reason
	return b
}

func (b *parserTestSequenceBuilder) frame(t FrameType, id byte, payload ...byte) *parserTestSequenceBuilder {
	if t == FrameSet && payload == nil {
		payload = []byte{}
	}
	b.last().final = ParseResult{Frame: &Frame{Type: t, ID: id, Payload: payload}}
	return b
}

func (b *parserTestSequenceBuilder) checksumErr(t FrameType, id, expected, actual byte) *parserTestSequenceBuilder {
	b.last().final = ParseResult{Err: &ChecksumError{Type: t, ID: id, Expected: expected, Actual: actual}}
	return b
}

func (b *parserTestSequenceBuilder) build() []parserTestSequence {
	return b.seq
}

func runParserSequences(t *testing.T, parser *Parser, seqs []parserTestSequence) {
	now := time.Unix(1000, 0)
	for n, s := range seqs {
		var pr ParseResult
		for i, b := range s.in {
			if i == 0 && s.gap > 0 {
				now = now.Add(s.gap)
			} else {
				now = now.Add(time.Millisecond)
			}
			pr = parser.Parse(b, now)
			if i == 0 {
				require.Equalf(t, s.resync, pr.Resync, "seq[%d] resync mismatch", n)
			} else {
				require.Equalf(t, ResyncNone, pr.Resync, "seq[%d][%d] unexpected resync", n, i)
			}
			pr.Resync = ResyncNone
			if i+1 < len(s.in) {
				require.Equalf(t, ParseResult{}, pr, "seq[%d][%d] unexpected result", n, i)
			}
		}
		require.Equalf(t, s.final, pr, "seq[%d] final mismatch", n)
		require.Equalf(t, s.state, parser.State(), "seq[%d] state mismatch", n)
	}
}

func TestParser(t *testing.T) {
	payload251 := make([]byte, 251)
	for i := range payload251 {
		payload251[i] = byte(i)
	}
	overflow := append([]byte{'S', 1, 255}, make([]byte, 252)...)

	testCases := []struct {
		name string
		seq  []parserTestSequence
	}{
		{
			name: "get",
			seq: parserTestSequences().
				on('G', 4, 75).frame(FrameGet, 4).
				build(),
		},
		{
			name: "set int",
			seq: parserTestSequences().
				on(0x53, 4, 4, 0x00, 0x00, 0x01, 0x2c, 136).frame(FrameSet, 4, 0x00, 0x00, 0x01, 0x2c).
				build(),
		},
		{
			name: "set empty",
			seq: parserTestSequences().
				on('S', 9, 0, 92).frame(FrameSet, 9).
				build(),
		},
		{
			name: "execute",
			seq: parserTestSequences().
				on('E', 1, 70).frame(FrameExecute, 1).
				build(),
		},
		{
			name: "back to back",
			seq: parserTestSequences().
				on('G', 4, 75).frame(FrameGet, 4).
				on('S', 5, 1, 1, 90).frame(FrameSet, 5, 1).
				on('G', 4, 75).frame(FrameGet, 4).
				build(),
		},
		{
			name: "skip stray bytes",
			seq: parserTestSequences().
				on(0, 1, 0x20, 0xff, 'g', 's').in(StateIdle).
				on('G', 4, 75).frame(FrameGet, 4).
				build(),
		},
		{
			name: "states",
			seq: parserTestSequences().
				on('S').in(StateMarker).
				on(2).in(StateID).
				on(2).in(StateAccumulating).
				on(0, 1).in(StateAccumulating).
				on(88).frame(FrameSet, 2, 0, 1).in(StateIdle).
				build(),
		},
		{
			name: "invalid get checksum",
			seq: parserTestSequences().
				on('G', 4, 76).checksumErr(FrameGet, 4, 75, 76).
				on('G', 4, 75).frame(FrameGet, 4).
				build(),
		},
		{
			name: "invalid set checksum",
			seq: parserTestSequences().
				on('S', 4, 1, 7, 0).checksumErr(FrameSet, 4, 95, 0).
				on('S', 4, 1, 7, 95).frame(FrameSet, 4, 7).
				build(),
		},
		{
			name: "timeout after marker",
			seq: parserTestSequences().
				on('G').in(StateMarker).
				after(150*time.Millisecond).on(4, 75).resync(ResyncTimeout).in(StateIdle).
				on('G', 4, 75).frame(FrameGet, 4).
				build(),
		},
		{
			name: "timeout restarts with marker",
			seq: parserTestSequences().
				on('S', 4, 4, 0).in(StateAccumulating).
				after(101*time.Millisecond).on('G', 4, 75).resync(ResyncTimeout).frame(FrameGet, 4).
				build(),
		},
		{
			name: "gap below timeout",
			seq: parserTestSequences().
				on(0x53, 4, 4, 0x00, 0x00).in(StateAccumulating).
				after(90*time.Millisecond).on(0x01, 0x2c, 136).frame(FrameSet, 4, 0x00, 0x00, 0x01, 0x2c).
				build(),
		},
		{
			name: "idle gap is not a timeout",
			seq: parserTestSequences().
				on('G', 4, 75).frame(FrameGet, 4).
				after(time.Minute).on('G', 4, 75).frame(FrameGet, 4).
				build(),
		},
		{
			name: "largest receivable payload",
			seq: parserTestSequences().
				on(NewSet(7, payload251).Bytes()...).frame(FrameSet, 7, payload251...).
				build(),
		},
		{
			name: "overflow",
			seq: parserTestSequences().
				on(overflow...).in(StateAccumulating).
				on('G', 4, 75).resync(ResyncOverflow).frame(FrameGet, 4).
				build(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var parser Parser
			runParserSequences(t, &parser, tc.seq)
		})
	}
}

func TestParserRoundTrip(t *testing.T) {
	var parser Parser
	now := time.Unix(1000, 0)
	for _, size := range []int{0, 1, 4, 12, 100, 251} {
		for id := 0; id < 256; id += 17 {
			payload := make([]byte, size)
			for i := range payload {
				payload[i] = byte(i*31 + id)
			}
			for _, frame := range []*Frame{NewGet(byte(id)), NewSet(byte(id), payload), {Type: FrameExecute, ID: byte(id)}} {
				var frames []*Frame
				for _, b := range frame.Bytes() {
					now = now.Add(99 * time.Millisecond)
					pr := parser.Parse(b, now)
					require.NoError(t, pr.Err)
					require.Equal(t, ResyncNone, pr.Resync)
					if pr.Frame != nil {
						frames = append(frames, pr.Frame)
					}
				}
				require.Len(t, frames, 1, "%s", frame)
				require.Equal(t, frame.Type, frames[0].Type)
				require.Equal(t, frame.ID, frames[0].ID)
				if frame.Type == FrameSet {
					require.Equal(t, payload, frames[0].Payload)
				}
			}
		}
	}
}

func TestParserDetectsBitFlips(t *testing.T) {
	encoded := NewSet(4, []byte{0x00, 0x00, 0x01, 0x2c}).Bytes()
	// id and payload bytes; marker and length change the frame shape.
	positions := []int{1, 3, 4, 5, 6}
	for _, pos := range positions {
		for bit := uint(0); bit < 8; bit++ {
			corrupted := append([]byte(nil), encoded...)
			corrupted[pos] ^= 1 << bit
			var parser Parser
			now := time.Unix(1000, 0)
			var results []ParseResult
			for _, b := range corrupted {
				now = now.Add(time.Millisecond)
				if pr := parser.Parse(b, now); pr.Frame != nil || pr.Err != nil {
					results = append(results, pr)
				}
			}
			require.Len(t, results, 1)
			require.Nil(t, results[0].Frame, "byte %d bit %d", pos, bit)
			require.ErrorIs(t, results[0].Err, ErrChecksumInvalid)
			require.Equal(t, 1, parser.InvalidChecksums())
		}
	}
}

func TestParserReset(t *testing.T) {
	var parser Parser
	now := time.Unix(1000, 0)
	parser.Parse('S', now)
	parser.Parse(1, now)
	require.Equal(t, StateID, parser.State())
	parser.Reset()
	require.Equal(t, StateIdle, parser.State())
	pr := parser.Parse(75, now)
	require.Equal(t, ParseResult{}, pr)
	require.Equal(t, StateIdle, parser.State())
}

func TestParserTimeoutOverride(t *testing.T) {
	parser := Parser{Timeout: 10 * time.Millisecond}
	now := time.Unix(1000, 0)
	parser.Parse('G', now)
	pr := parser.Parse(4, now.Add(20*time.Millisecond))
	require.Equal(t, ResyncTimeout, pr.Resync)
	require.Equal(t, StateIdle, parser.State())
}

func TestResyncReason(t *testing.T) {
	require.Equal(t, "none", ResyncNone.String())
	require.Equal(t, "timeout", ResyncTimeout.String())
	require.Equal(t, "overflow", ResyncOverflow.String())
}

func TestParseStateString(t *testing.T) {
	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "accumulating", StateAccumulating.String())
	require.Equal(t, "unknown", ParseState(9).String())
}
