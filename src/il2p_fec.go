package il2prx

import (
	"errors"
	"fmt"
)

// IL2P uses the same field for every block size; only the parity count differs.
const (
	il2pSymSize = 8
	il2pGFPoly  = 0x11d
	il2pFCR     = 0 // FX.25 uses 1 but IL2P uses 0.
	il2pPrim    = 1
)

const (
	HeaderSize          = 13
	HeaderParitySize    = 2
	PayloadParitySize   = 16
	CRCEncodedSize      = 4
	MaxPayloadSize      = rsBlockSize - PayloadParitySize // RS block limit; LEN caps it lower in practice.
	MaxHeaderCorrection = HeaderParitySize / 2
	MaxPayloadCorrect   = PayloadParitySize / 2
)

var ErrUncorrectable = errors.New("uncorrectable RS block")

var rsHeader = newRSCodec(il2pSymSize, il2pGFPoly, il2pFCR, il2pPrim, HeaderParitySize)
var rsPayload = newRSCodec(il2pSymSize, il2pGFPoly, il2pFCR, il2pPrim, PayloadParitySize)

/*-------------------------------------------------------------
 *
 * Name:	rsEncodeShortened
 *
 * Purpose:	Add parity symbols to a block of data.
 *
 * Restriction:	len(data) + nroots <= 255 which is the RS block size.
 *
 *--------------------------------------------------------------*/

func rsEncodeShortened(rs *rsCodec, data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)+rs.nroots > rsBlockSize {
		return nil, fmt.Errorf("RS encode: %d data bytes do not fit a block with %d parity", len(data), rs.nroots)
	}
	return rs.encode(data), nil
}

/*-------------------------------------------------------------
 *
 * Name:	rsDecodeShortened
 *
 * Purpose:	Check and attempt to fix block with FEC.
 *
 * Inputs:	block	- Received data followed by nroots parity bytes.
 *
 * Returns:	Corrected data (parity stripped), number of symbols
 *		corrected, or ErrUncorrectable.
 *
 * Description:	Zero padding goes in front when the block is short.
 *
 *--------------------------------------------------------------*/

func rsDecodeShortened(rs *rsCodec, block []byte) ([]byte, int, error) {
	var n = len(block)
	if n <= rs.nroots || n > rsBlockSize {
		return nil, 0, fmt.Errorf("RS decode: block of %d bytes with %d parity: %w", n, rs.nroots, ErrUncorrectable)
	}

	var full [rsBlockSize]byte
	var pad = rsBlockSize - n
	copy(full[pad:], block)

	var derrors, derrlocs = rs.decode(full[:])
	if derrors < 0 {
		return nil, 0, ErrUncorrectable
	}
	if 2*derrors > rs.nroots {
		return nil, 0, fmt.Errorf("RS decode: %d errors located, limit is %d: %w", derrors, rs.nroots/2, ErrUncorrectable)
	}

	// With too many errors present the algorithm could get a good
	// code block by "fixing" one of the padding bytes that should be 0.
	for _, loc := range derrlocs {
		if loc < pad {
			return nil, 0, fmt.Errorf("RS decode: correction in padding position %d: %w", loc, ErrUncorrectable)
		}
	}

	if derrors > 0 {
		for _, s := range rs.syndromes(full[:]) {
			if s != 0 {
				return nil, 0, fmt.Errorf("RS decode: syndrome still non-zero after %d corrections: %w", derrors, ErrUncorrectable)
			}
		}
	}

	var out = make([]byte, n-rs.nroots)
	copy(out, full[pad:])
	return out, derrors, nil
}

// DecodeHeaderFEC corrects the 13 byte header using its 2 parity bytes.
func DecodeHeaderFEC(header []byte, parity []byte) ([]byte, int, error) {
	if len(header) != HeaderSize || len(parity) != HeaderParitySize {
		return nil, 0, fmt.Errorf("header FEC: want %d+%d bytes, got %d+%d: %w",
			HeaderSize, HeaderParitySize, len(header), len(parity), ErrUncorrectable)
	}
	return rsDecodeShortened(rsHeader, append(append([]byte{}, header...), parity...))
}

// DecodePayloadFEC corrects a payload block using its 16 parity bytes.
func DecodePayloadFEC(payload []byte, parity []byte) ([]byte, int, error) {
	if len(parity) != PayloadParitySize {
		return nil, 0, fmt.Errorf("payload FEC: want %d parity bytes, got %d: %w", PayloadParitySize, len(parity), ErrUncorrectable)
	}
	return rsDecodeShortened(rsPayload, append(append([]byte{}, payload...), parity...))
}

func EncodeHeaderFEC(header []byte) ([]byte, error) {
	if len(header) != HeaderSize {
		return nil, fmt.Errorf("header FEC: want %d bytes, got %d", HeaderSize, len(header))
	}
	return rsEncodeShortened(rsHeader, header)
}

func EncodePayloadFEC(payload []byte) ([]byte, error) {
	return rsEncodeShortened(rsPayload, payload)
}
