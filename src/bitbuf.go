package il2prx

/*------------------------------------------------------------------
 *
 * Purpose:	Hold received bits, one per byte, addressed by their
 *		absolute position in the stream.
 *
 * Description:	The demodulator hands us bits in chunks of whatever
 *		size it likes.  Frames can straddle any number of chunks
 *		so we keep everything until the framer says it is no
 *		longer needed.  Positions never move: the bit at absolute
 *		index n is always the same bit, until it gets trimmed.
 *
 *------------------------------------------------------------------*/

import (
	"errors"
	"fmt"
)

var ErrRange = errors.New("bit range not in buffer")

type BitBuffer struct {
	bits   []byte // One bit per byte, 0 or 1.
	origin int64  // Absolute index of bits[0].  Only ever increases.
}

func NewBitBuffer() *BitBuffer {
	return &BitBuffer{bits: make([]byte, 0, 2*tailKeepBits)}
}

// Origin is the absolute index of the oldest bit still held.
func (b *BitBuffer) Origin() int64 {
	return b.origin
}

// End is one past the absolute index of the newest bit.
func (b *BitBuffer) End() int64 {
	return b.origin + int64(len(b.bits))
}

func (b *BitBuffer) Len() int {
	return len(b.bits)
}

// Append adds bits at the tail.  Anything other than 0 is taken as 1.
func (b *BitBuffer) Append(bits []byte) {
	for _, x := range bits {
		b.bits = append(b.bits, x&1)
	}
}

/*------------------------------------------------------------------
 *
 * Name:	Slice
 *
 * Purpose:	Get a copy of the bits in absolute range [absFrom, absTo).
 *
 * Errors:	ErrRange if any part of the range was trimmed away
 *		or has not arrived yet.
 *
 *------------------------------------------------------------------*/

func (b *BitBuffer) Slice(absFrom int64, absTo int64) ([]byte, error) {
	if absFrom < b.origin {
		return nil, fmt.Errorf("%w: start %d is before origin %d", ErrRange, absFrom, b.origin)
	}
	if absTo > b.End() || absTo < absFrom {
		return nil, fmt.Errorf("%w: [%d, %d) with buffer ending at %d", ErrRange, absFrom, absTo, b.End())
	}

	var out = make([]byte, absTo-absFrom)
	copy(out, b.bits[absFrom-b.origin:absTo-b.origin])
	return out, nil
}

// Trim drops every bit with absolute index below absUpTo.
// Asking to trim below the origin does nothing.  Asking past the end empties
// the buffer but leaves the origin at the end, so the next bit appended
// keeps its true stream position.
func (b *BitBuffer) Trim(absUpTo int64) {
	if absUpTo <= b.origin {
		return
	}

	var n = absUpTo - b.origin
	if n >= int64(len(b.bits)) {
		b.origin += int64(len(b.bits))
		b.bits = b.bits[:0]
		return
	}

	var remaining = copy(b.bits, b.bits[n:])
	b.bits = b.bits[:remaining]
	b.origin = absUpTo
}
