package il2prx

// Conversion between packed bytes and one-bit-per-byte streams.
// Always most significant bit first, which is the order bits go over the air.

// PackBits packs bits MSB-first.  len(bits) should be a multiple of 8;
// any leftover bits are ignored.
func PackBits(bits []byte) []byte {
	var out = make([]byte, len(bits)/8)
	for i := range out {
		var v byte
		for _, b := range bits[i*8 : i*8+8] {
			v = (v << 1) | (b & 1)
		}
		out[i] = v
	}
	return out
}

// UnpackBits expands each byte to 8 bits, MSB-first.
func UnpackBits(data []byte) []byte {
	var out = make([]byte, 0, len(data)*8)
	for _, v := range data {
		for m := byte(0x80); m != 0; m >>= 1 {
			if v&m != 0 {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out
}
