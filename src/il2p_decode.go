package il2prx

/*--------------------------------------------------------------------------------
 *
 * Purpose:	Turn one raw frame from the framer into a packet.
 *
 * Description:	Frame layout, after the LEN byte:
 *
 *			EXTRA		1
 *			FRAMING		3
 *			header		13	scrambled, RS(15,13)
 *			header parity	2
 *			payload		n	scrambled, RS(n+16,n)
 *			payload parity	16
 *			CRC		4	Hamming (7,4) coded nibbles
 *
 *		Stages run in order and the first failure ends it.  CRC
 *		mismatch is the exception: the packet is still produced
 *		so it can be counted and stored.
 *
 *--------------------------------------------------------------------------------*/

import (
	"errors"
)

const (
	frameExtraSize   = 1
	frameFramingSize = 3

	// Offset of the header within a raw frame, counting the LEN byte.
	frameHeaderOffset = 1 + frameExtraSize + frameFramingSize

	// LEN + EXTRA + FRAMING + header + header parity + payload parity + CRC.
	MinFrameSize = frameHeaderOffset + HeaderSize + HeaderParitySize + PayloadParitySize + CRCEncodedSize
)

type Decoder struct {
	scrambler Scrambler
}

func NewDecoder(seed uint16) *Decoder {
	return &Decoder{scrambler: NewScrambler(seed)}
}

func discard(stage Stage, tags []string, tag string) *DiscardError {
	return &DiscardError{Stage: stage, Tags: append(tags, tag)}
}

/*--------------------------------------------------------------------------------
 *
 * Function:	Decode
 *
 * Inputs:	frame	- [LEN, LEN bytes...] as produced by the framer.
 *
 * Returns:	The packet, with CRCOK telling whether it can be trusted,
 *		or a *DiscardError if it did not get that far.
 *		PacketIndex and RunID are left for the caller to fill in.
 *
 *--------------------------------------------------------------------------------*/

func (d *Decoder) Decode(frame []byte) (*Packet, error) {
	var tags []string

	if len(frame) < MinFrameSize {
		return nil, discard(StageFramed, tags, TagTooShort)
	}
	if int(frame[0])+1 != len(frame) {
		return nil, discard(StageFramed, tags, TagLenMismatch)
	}

	var p = &Packet{
		FrameLength:        int(frame[0]),
		HeaderCorrections:  NotAttempted,
		PayloadCorrections: NotAttempted,
	}

	var idx = frameHeaderOffset
	var headerScrambled = frame[idx : idx+HeaderSize]
	idx += HeaderSize
	p.HeaderParity = clone(frame[idx : idx+HeaderParitySize])
	idx += HeaderParitySize

	// Header FEC.

	var header, hcorr, err = DecodeHeaderFEC(headerScrambled, p.HeaderParity)
	if err != nil {
		return nil, discard(StageHeaderFEC, tags, TagBadHeader)
	}
	p.Header = header
	p.HeaderCorrections = Corrections(hcorr)
	p.HeaderOK = true

	// Descramble and make sure we were in step with the transmitter.

	p.HeaderPlain = d.scrambler.Descramble(header)

	p.ScramblerOK = d.scrambler.Validate(header, p.HeaderPlain)
	if !p.ScramblerOK {
		return nil, discard(StageScramblerCheck, tags, TagScrambler)
	}

	p.Fields = ParseHeaderFields(p.HeaderPlain)

	// Length.

	var payloadSize = PayloadByteCount(p.HeaderPlain)
	p.PayloadByteCount = payloadSize
	if payloadSize <= 0 {
		return nil, discard(StageLengthDecode, tags, TagPayloadSize)
	}
	if idx+payloadSize+PayloadParitySize+CRCEncodedSize > len(frame) {
		return nil, discard(StageLengthDecode, tags, TagInsufficient)
	}

	var payloadScrambled = frame[idx : idx+payloadSize]
	idx += payloadSize
	p.PayloadParity = clone(frame[idx : idx+PayloadParitySize])
	idx += PayloadParitySize
	p.EncodedCRC = clone(frame[idx : idx+CRCEncodedSize])

	// Payload FEC.  Failure here produces no packet at all.

	var payload, pcorr, perr = DecodePayloadFEC(payloadScrambled, p.PayloadParity)
	if perr != nil {
		return nil, discard(StagePayloadFEC, tags, TagBadPayload)
	}
	p.PayloadCorrections = Corrections(pcorr)
	p.PayloadOK = true

	p.Payload = d.scrambler.Descramble(payload)

	// CRC.

	p.ReceivedFCS = DecodeCRC(p.EncodedCRC)
	p.ComputedFCS = PayloadFCS(p.Payload)
	p.CRCOK = p.ReceivedFCS == p.ComputedFCS
	if !p.CRCOK {
		tags = append(tags, TagCRCMismatch)
	}

	p.ErrorTags = tags
	if p.ErrorTags == nil {
		p.ErrorTags = []string{}
	}
	return p, nil
}

// IsDiscard reports whether err came from Decode rejecting a frame.
func IsDiscard(err error) (*DiscardError, bool) {
	var de *DiscardError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
