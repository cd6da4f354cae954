package il2prx

/*--------------------------------------------------------------------------------
 *
 * Purpose:	Build IL2P frames, the exact reverse of Decoder.Decode.
 *
 * Description:	Used to make test signals.  The header is filled in,
 *		scrambled and protected, then the payload the same way with
 *		the larger RS code, then the Hamming coded CRC goes on the
 *		end.  LEN, EXTRA and FRAMING go in front.
 *
 *--------------------------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
)

// LEN is one byte and counts everything after itself.
const MaxFramePayload = 255 - (MinFrameSize - 1)

type Encoder struct {
	Scrambler Scrambler
	Fields    HeaderFields
	Extra     byte
	Framing   [frameFramingSize]byte
}

// NewEncoder gives a type 1 header UI frame with the addresses the CRC
// assumes.
func NewEncoder(seed uint16) *Encoder {
	return &Encoder{
		Scrambler: NewScrambler(seed),
		Fields: HeaderFields{
			Dest:     "WPGM1S",
			Src:      "WPGM1S",
			UI:       1,
			PID:      0xf,
			Control:  0,
			FECLevel: 1,
			HdrType:  1,
		},
	}
}

/*--------------------------------------------------------------------------------
 *
 * Function:	EncodeFrame
 *
 * Inputs:	payload	- 1 to MaxFramePayload bytes.
 *
 * Returns:	[LEN, EXTRA, FRAMING..., header, parity, payload, parity, CRC]
 *
 *--------------------------------------------------------------------------------*/

func (e *Encoder) EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) < 1 || len(payload) > MaxFramePayload {
		return nil, fmt.Errorf("payload of %d bytes, must be 1 to %d", len(payload), MaxFramePayload)
	}

	var hdr, err = e.Fields.Build(len(payload))
	if err != nil {
		return nil, err
	}

	var hdrScrambled = e.Scrambler.Scramble(hdr)
	hdrParity, err := EncodeHeaderFEC(hdrScrambled)
	if err != nil {
		return nil, err
	}

	var payloadScrambled = e.Scrambler.Scramble(payload)
	payloadParity, err := EncodePayloadFEC(payloadScrambled)
	if err != nil {
		return nil, err
	}

	var crc = EncodeCRC(PayloadFCS(payload))

	var frameLen = MinFrameSize + len(payload)
	var frame = make([]byte, 0, frameLen)
	frame = append(frame, byte(frameLen-1), e.Extra)
	frame = append(frame, e.Framing[:]...)
	frame = append(frame, hdrScrambled...)
	frame = append(frame, hdrParity...)
	frame = append(frame, payloadScrambled...)
	frame = append(frame, payloadParity...)
	frame = append(frame, crc[:]...)

	return frame, nil
}

// FrameBits puts the access code in front of a frame and expands it to
// one bit per byte, ready for Session.ProcessBits.
func FrameBits(frame []byte) []byte {
	var code [4]byte
	binary.BigEndian.PutUint32(code[:], AccessCode)
	return UnpackBits(append(code[:], frame...))
}
