package il2prx

/********************************************************************************
 *
 * Purpose:     Cut length-delimited frames out of the received bit stream.
 *
 * Description:	The correlator tells us where it saw the access code.  Each
 *		of those positions is the first bit of a one byte LEN field,
 *		followed by LEN bytes of frame.  We keep every position
 *		pending until either the whole frame has arrived or we know
 *		it never will.
 *
 *		What comes out is [LEN, byte0, byte1, ...] so the frame is
 *		self describing: len(frame) == LEN + 1.
 *
 *		Positions are handled oldest first.  Once a frame has been
 *		emitted the bits under it are trimmed, which kills any false
 *		sync hits that happened to land inside it.
 *
 *******************************************************************************/

import (
	"slices"
)

// Keep this many bits when nothing is pending, to bound memory during sync loss.
const tailKeepBits = 8192

const lenFieldBits = 8

type FramerStats struct {
	Frames        int   // Frames emitted.
	StaleMarkers  int   // Markers dropped because their bits were already trimmed.
	ZeroLenFrames int   // Markers dropped because LEN was 0.
	TrimmedBits   int64 // Bits discarded by the tail trim policy.
}

type Framer struct {
	buf     *BitBuffer
	pending []int64 // Absolute offsets of LEN fields, oldest first.
	stats   FramerStats
}

func NewFramer() *Framer {
	return &Framer{buf: NewBitBuffer()}
}

func (f *Framer) Buffer() *BitBuffer {
	return f.buf
}

func (f *Framer) Pending() int {
	return len(f.pending)
}

func (f *Framer) Stats() FramerStats {
	return f.stats
}

/*-------------------------------------------------------------------
 *
 * Name:        Push
 *
 * Purpose:     Add a chunk of bits plus any sync markers found in it.
 *
 * Inputs:	bits	- Received bits, one per byte.
 *
 *		markers	- Absolute offsets of the bit right after each
 *			  access code.  May refer to bits in this chunk,
 *			  an earlier one, or one not seen yet.
 *
 * Returns:	Frames completed by this chunk, in marker order.
 *
 *--------------------------------------------------------------------*/

func (f *Framer) Push(bits []byte, markers []int64) [][]byte {
	f.buf.Append(bits)

	if len(markers) > 0 {
		// A late marker can be older than ones already pending.
		f.pending = append(f.pending, markers...)
		slices.Sort(f.pending)
	}

	var frames [][]byte
	var stillPending = f.pending[:0]

	for _, lenStart := range f.pending {
		var frame, keep = f.extract(lenStart)
		if frame != nil {
			frames = append(frames, frame)
		}
		if keep {
			stillPending = append(stillPending, lenStart)
		}
	}
	f.pending = stillPending

	if len(f.pending) == 0 && f.buf.Len() > tailKeepBits {
		var before = f.buf.Origin()
		f.buf.Trim(f.buf.End() - tailKeepBits)
		f.stats.TrimmedBits += f.buf.Origin() - before
	}

	return frames
}

// extract tries one marker.  It returns the frame if complete and whether
// the marker must stay pending.
func (f *Framer) extract(lenStart int64) ([]byte, bool) {
	if lenStart < f.buf.Origin() {
		// Refers to bits already gone, most likely inside a frame
		// we just emitted.
		f.stats.StaleMarkers++
		return nil, false
	}

	if f.buf.End()-lenStart < lenFieldBits {
		return nil, true
	}

	var lenBits, _ = f.buf.Slice(lenStart, lenStart+lenFieldBits)
	var length = PackBits(lenBits)[0]
	if length == 0 {
		f.stats.ZeroLenFrames++
		return nil, false
	}

	var frameEnd = lenStart + lenFieldBits + int64(length)*8
	if frameEnd > f.buf.End() {
		return nil, true
	}

	var body, _ = f.buf.Slice(lenStart+lenFieldBits, frameEnd)

	var frame = make([]byte, 0, int(length)+1)
	frame = append(frame, length)
	frame = append(frame, PackBits(body)...)

	f.buf.Trim(frameEnd)
	f.stats.Frames++

	return frame, false
}
