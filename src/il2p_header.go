package il2prx

/*--------------------------------------------------------------------------------
 *
 * Purpose:	Functions to deal with the IL2P header.
 *
 * Description:	Only the payload byte count is needed to take a packet
 *		apart.  The rest of the type 1 header (addresses, UI, PID,
 *		control) is decoded for logging and for the stored record.
 *
 * Reference:	http://tarpn.net/t/il2p/il2p-specification0-4.pdf
 *
 *--------------------------------------------------------------------------------*/

import (
	"fmt"
	"strings"
)

// Convert ASCII to/from DEC SIXBIT as defined here:
// https://en.wikipedia.org/wiki/Six-bit_character_code#DEC_six-bit_code

func asciiToSixbit(a byte) byte {
	if a >= ' ' && a <= '_' {
		return a - ' '
	}
	return 31 // '?' for any invalid.
}

func sixbitToASCII(s byte) byte {
	return s + ' '
}

// Fields are spread over one bit position of consecutive header bytes,
// most significant bit in the lowest numbered byte.
// It is assumed the header was zeroed first so only the '1' bits are set.

func setField(hdr []byte, bitNum uint, lsbIndex int, width int, value int) {
	for width > 0 && value != 0 {
		if value&1 != 0 {
			hdr[lsbIndex] |= 1 << bitNum
		}
		value >>= 1
		lsbIndex--
		width--
	}
}

func getField(hdr []byte, bitNum uint, lsbIndex int, width int) int {
	var result = 0
	lsbIndex -= width - 1
	for width > 0 {
		result <<= 1
		if hdr[lsbIndex]&(1<<bitNum) != 0 {
			result |= 1
		}
		lsbIndex++
		width--
	}
	return result
}

// PayloadByteCount decodes the 10 bit length from a descrambled header:
// bit 7 of bytes 2 through 11.
func PayloadByteCount(hdr []byte) int {
	return getField(hdr, 7, 11, 10)
}

type HeaderFields struct {
	Dest             string `json:"dest"`
	DestSSID         int    `json:"dest_ssid"`
	Src              string `json:"src"`
	SrcSSID          int    `json:"src_ssid"`
	UI               int    `json:"ui"`
	PID              int    `json:"pid"`
	Control          int    `json:"control"`
	FECLevel         int    `json:"fec_level"`
	HdrType          int    `json:"hdr_type"`
	PayloadByteCount int    `json:"payload_byte_count"`
}

func sixbitCallsign(b []byte) string {
	var s = make([]byte, len(b))
	for i, c := range b {
		s[i] = sixbitToASCII(c & 0x3f)
	}
	return strings.TrimRight(string(s), " ")
}

// ParseHeaderFields pulls everything out of a descrambled type 1 header.
func ParseHeaderFields(hdr []byte) HeaderFields {
	return HeaderFields{
		Dest:             sixbitCallsign(hdr[0:6]),
		DestSSID:         int(hdr[12]>>4) & 0xf,
		Src:              sixbitCallsign(hdr[6:12]),
		SrcSSID:          int(hdr[12]) & 0xf,
		UI:               getField(hdr, 6, 0, 1),
		PID:              getField(hdr, 6, 4, 4),
		Control:          getField(hdr, 6, 11, 7),
		FECLevel:         getField(hdr, 7, 0, 1),
		HdrType:          getField(hdr, 7, 1, 1),
		PayloadByteCount: PayloadByteCount(hdr),
	}
}

func addrString(call string, ssid int) string {
	if ssid == 0 {
		return call
	}
	return fmt.Sprintf("%s-%d", call, ssid)
}

// Addrs gives the monitor style "SRC>DEST".
func (h HeaderFields) Addrs() string {
	return addrString(h.Src, h.SrcSSID) + ">" + addrString(h.Dest, h.DestSSID)
}

/*--------------------------------------------------------------------------------
 *
 * Function:	Build
 *
 * Purpose:	Fill in a type 1 header, before scrambling.
 *
 * Inputs:	payloadLen	- Number of payload bytes that will follow.
 *
 * Description:	Callsigns are truncated to 6 characters and translated
 *		to DEC SIXBIT.  Anything not representable becomes '?'.
 *
 *--------------------------------------------------------------------------------*/

func (h HeaderFields) Build(payloadLen int) ([]byte, error) {
	if payloadLen < 0 || payloadLen > 1023 {
		return nil, fmt.Errorf("payload byte count %d does not fit 10 bits", payloadLen)
	}
	if h.DestSSID < 0 || h.DestSSID > 15 || h.SrcSSID < 0 || h.SrcSSID > 15 {
		return nil, fmt.Errorf("SSID out of range: %d, %d", h.DestSSID, h.SrcSSID)
	}

	var hdr = make([]byte, HeaderSize)

	var put = func(at int, call string) {
		call = strings.ToUpper(call)
		for i := 0; i < 6; i++ {
			var c byte = ' '
			if i < len(call) {
				c = call[i]
			}
			hdr[at+i] = asciiToSixbit(c)
		}
	}
	put(0, h.Dest)
	put(6, h.Src)
	hdr[12] = byte(h.DestSSID<<4) | byte(h.SrcSSID)

	setField(hdr, 6, 0, 1, h.UI&1)
	setField(hdr, 6, 4, 4, h.PID&0xf)
	setField(hdr, 6, 11, 7, h.Control&0x7f)
	setField(hdr, 7, 0, 1, h.FECLevel&1)
	setField(hdr, 7, 1, 1, h.HdrType&1)
	setField(hdr, 7, 11, 10, payloadLen)

	return hdr, nil
}
