package il2prx

/*------------------------------------------------------------------
 *
 * Purpose:	Find the IL2P access code in a stream of hard bits.
 *
 * Description:	Slide a 32 bit window along the stream and report a
 *		marker whenever it is within "threshold" bit errors of
 *		the access code.  The marker is the absolute index of
 *		the bit following the code, which is where the LEN
 *		field starts.
 *
 *		State carries across chunks so a code split between two
 *		chunks is still found.
 *
 *------------------------------------------------------------------*/

import (
	"math/bits"
)

// 0x33 0x55 0x33 0x55, sent MSB first.
const AccessCode uint32 = 0x33553355

const AccessCodeBits = 32

const DefaultAccessThreshold = 3

type Correlator struct {
	threshold int
	window    uint32
	seen      int64 // Number of bits consumed so far.
}

func NewCorrelator(threshold int) *Correlator {
	return &Correlator{threshold: threshold}
}

// Position is the absolute index of the next bit Scan will consume.
func (c *Correlator) Position() int64 {
	return c.seen
}

// Scan consumes a chunk of bits and returns the sync markers found in it.
func (c *Correlator) Scan(chunk []byte) []int64 {
	var markers []int64

	for _, b := range chunk {
		c.window = (c.window << 1) | uint32(b&1)
		c.seen++
		if c.seen < AccessCodeBits {
			continue
		}
		if bits.OnesCount32(c.window^AccessCode) <= c.threshold {
			markers = append(markers, c.seen)
		}
	}

	return markers
}
