package il2prx

/*--------------------------------------------------------------------------------
 *
 * Purpose:	Scramble / descramble data as specified in the IL2P protocol specification.
 *
 * Description:	Self-synchronizing scrambler with a 9 bit shift register and
 *		taps at bits 8 and 3.  Bits are processed most significant
 *		first.  Every call starts over from the seed because the
 *		header and the payload are each scrambled on their own.
 *
 *--------------------------------------------------------------------------------*/

// Receive side initial state.
const DefaultSeed uint16 = 0x1f0

const lfsrMask = 0x1ff

type Scrambler struct {
	Seed uint16
}

func NewScrambler(seed uint16) Scrambler {
	return Scrambler{Seed: seed & lfsrMask}
}

// Undo data scrambling for il2p receive.
// The register is fed with the received (scrambled) bit.
func descrambleBit(in uint16, state *uint16) uint16 {
	var out = (in ^ *state) & 1
	*state = ((*state >> 1) ^ (in << 8) ^ (in << 3)) & lfsrMask
	return out
}

// Scramble bits for il2p transmit.
// The register is fed with the bit that goes out, so this is the exact
// inverse of descrambleBit when both start from the same state.
func scrambleBit(in uint16, state *uint16) uint16 {
	var out = (in ^ *state) & 1
	*state = ((*state >> 1) ^ (out << 8) ^ (out << 3)) & lfsrMask
	return out
}

func (s Scrambler) run(in []byte, bit func(uint16, *uint16) uint16) []byte {
	var state = s.Seed & lfsrMask
	var out = make([]byte, len(in))

	for b, v := range in {
		for m := byte(0x80); m != 0; m >>= 1 {
			var x uint16
			if v&m != 0 {
				x = 1
			}
			if bit(x, &state) != 0 {
				out[b] |= m
			}
		}
	}
	return out
}

// Descramble a block after removing RS parity.
func (s Scrambler) Descramble(in []byte) []byte {
	return s.run(in, descrambleBit)
}

// Scramble a block before adding RS parity.
func (s Scrambler) Scramble(in []byte) []byte {
	return s.run(in, scrambleBit)
}

/*--------------------------------------------------------------------------------
 *
 * Function:	Validate
 *
 * Purpose:	Confirm the descrambler was aligned with the transmitter.
 *
 * Inputs:	scrambled	- Block as received, after FEC.
 *		descrambled	- Output of Descramble for the same block.
 *
 * Returns:	true if scrambling descrambled again reproduces scrambled.
 *
 *--------------------------------------------------------------------------------*/

func (s Scrambler) Validate(scrambled []byte, descrambled []byte) bool {
	if len(scrambled) != len(descrambled) {
		return false
	}

	var again = s.Scramble(descrambled)
	for i := range again {
		if again[i] != scrambled[i] {
			return false
		}
	}
	return true
}
