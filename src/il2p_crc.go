package il2prx

/*-------------------------------------------------------------
 *
 * Purpose:	IL2P Trailing CRC-16-CCITT protected by (7,4) Hamming encoding.
 *
 * 		The CRC provides a final validity check after RS FEC decoding,
 *		catching rare cases where RS decoding silently produces
 *		incorrect data under extreme error conditions.
 *
 *		The CRC is not over the IL2P bytes.  It is the AX.25 FCS of
 *		the frame the IL2P packet stands for, which here is always
 *		a UI frame with the fixed address/control/PID below.
 *
 * Reference:	IL2P specification v0.6
 *
 *--------------------------------------------------------------*/

import (
	"github.com/sigurn/crc16"
)

// Hamming (7,4) encode table from the IL2P spec.
// Maps 4-bit data nibble to 7-bit Hamming codeword.
var hammingEncode = [16]byte{
	0x00, 0x71, 0x62, 0x13, 0x54, 0x25, 0x36, 0x47,
	0x38, 0x49, 0x5a, 0x2b, 0x6c, 0x1d, 0x0e, 0x7f,
}

// Hamming (7,4) decode table from the IL2P spec.
// Maps 7-bit received codeword to 4-bit data nibble.
// Provides single-bit error correction.
var hammingDecode = [128]byte{
	0x00, 0x00, 0x00, 0x03, 0x00, 0x05, 0x0e, 0x07,
	0x00, 0x09, 0x0e, 0x0b, 0x0e, 0x0d, 0x0e, 0x0e,
	0x00, 0x03, 0x03, 0x03, 0x04, 0x0d, 0x06, 0x03,
	0x08, 0x0d, 0x0a, 0x03, 0x0d, 0x0d, 0x0e, 0x0d,
	0x00, 0x05, 0x02, 0x0b, 0x05, 0x05, 0x06, 0x05,
	0x08, 0x0b, 0x0b, 0x0b, 0x0c, 0x05, 0x0e, 0x0b,
	0x08, 0x01, 0x06, 0x03, 0x06, 0x05, 0x06, 0x06,
	0x08, 0x08, 0x08, 0x0b, 0x08, 0x0d, 0x06, 0x0f,
	0x00, 0x09, 0x02, 0x07, 0x04, 0x07, 0x07, 0x07,
	0x09, 0x09, 0x0a, 0x09, 0x0c, 0x09, 0x0e, 0x07,
	0x04, 0x01, 0x0a, 0x03, 0x04, 0x04, 0x04, 0x07,
	0x0a, 0x09, 0x0a, 0x0a, 0x04, 0x0d, 0x0a, 0x0f,
	0x02, 0x01, 0x02, 0x02, 0x0c, 0x05, 0x02, 0x07,
	0x0c, 0x09, 0x02, 0x0b, 0x0c, 0x0c, 0x0c, 0x0f,
	0x01, 0x01, 0x02, 0x01, 0x04, 0x01, 0x06, 0x0f,
	0x08, 0x01, 0x0a, 0x0f, 0x0c, 0x0f, 0x0f, 0x0f,
}

// AX.25 address, control and PID the FCS is computed over.
var ax25UIHeader = [16]byte{
	0xAE, 0xA0, 0x64, 0xB0, 0x8E, 0xAE, 0x00,
	0xAE, 0xA0, 0x64, 0xB0, 0x8E, 0xAE, 0x01,
	0x03, 0xF0,
}

// CRC-16/X.25: poly 0x1021 reflected, init 0xffff, xorout 0xffff.
var fcsTable = crc16.MakeTable(crc16.CRC16_X_25)

// FCS is the AX.25 frame check sequence of arbitrary frame bytes.
func FCS(frame []byte) uint16 {
	return crc16.Checksum(frame, fcsTable)
}

// PayloadFCS computes the FCS the transmitter sends for payload.
func PayloadFCS(payload []byte) uint16 {
	var crc = crc16.Init(fcsTable)
	crc = crc16.Update(crc, ax25UIHeader[:], fcsTable)
	crc = crc16.Update(crc, payload, fcsTable)
	return crc16.Complete(crc, fcsTable)
}

/*-------------------------------------------------------------
 *
 * Name:	EncodeCRC
 *
 * Purpose:	Hamming-encode a 16-bit CRC into 4 bytes.
 *
 * Returns:	4 bytes, each containing a Hamming (7,4) encoded nibble.
 *		High nibble of CRC is encoded first.
 *
 *--------------------------------------------------------------*/

func EncodeCRC(crc uint16) [CRCEncodedSize]byte {
	var encoded [CRCEncodedSize]byte
	encoded[0] = hammingEncode[(crc>>12)&0x0f]
	encoded[1] = hammingEncode[(crc>>8)&0x0f]
	encoded[2] = hammingEncode[(crc>>4)&0x0f]
	encoded[3] = hammingEncode[crc&0x0f]
	return encoded
}

// DecodeCRC turns 4 Hamming-encoded bytes back into a 16-bit CRC.
// The high bit of each byte is ignored.  Caller must supply 4 bytes.
func DecodeCRC(encoded []byte) uint16 {
	var n0 = uint16(hammingDecode[encoded[0]&0x7f])
	var n1 = uint16(hammingDecode[encoded[1]&0x7f])
	var n2 = uint16(hammingDecode[encoded[2]&0x7f])
	var n3 = uint16(hammingDecode[encoded[3]&0x7f])
	return (n0 << 12) | (n1 << 8) | (n2 << 4) | n3
}
