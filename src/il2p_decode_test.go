package il2prx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const framePayloadOffset = frameHeaderOffset + HeaderSize + HeaderParitySize

func testPayload(n int) []byte {
	var p = make([]byte, n)
	for i := range p {
		p[i] = byte(i + 1)
	}
	return p
}

func encodeTestFrame(t *testing.T, payload []byte) []byte {
	t.Helper()
	var frame, err = NewEncoder(DefaultSeed).EncodeFrame(payload)
	require.NoError(t, err)
	return frame
}

// frameWithHeader puts an arbitrary header in front of body, which
// should hold whatever follows the header parity.
func frameWithHeader(t *testing.T, count int, body []byte) []byte {
	t.Helper()
	var s = NewScrambler(DefaultSeed)

	var hdr, err = NewEncoder(DefaultSeed).Fields.Build(count)
	require.NoError(t, err)
	hdr = s.Scramble(hdr)
	parity, err := EncodeHeaderFEC(hdr)
	require.NoError(t, err)

	var frame = []byte{0, 0, 0, 0, 0}
	frame = append(frame, hdr...)
	frame = append(frame, parity...)
	frame = append(frame, body...)
	frame[0] = byte(len(frame) - 1)
	return frame
}

func assertDiscard(t *testing.T, frame []byte, stage Stage, reason string) {
	t.Helper()
	var p, err = NewDecoder(DefaultSeed).Decode(frame)
	assert.Nil(t, p)

	var de, ok = IsDiscard(err)
	require.True(t, ok, "want a discard, got %v", err)
	assert.Equal(t, stage, de.Stage)
	assert.Equal(t, reason, de.Reason())
}

func TestIL2PDecodeClean(t *testing.T) {
	var payload = testPayload(20)
	var frame = encodeTestFrame(t, payload)
	require.Len(t, frame, MinFrameSize+20)

	var p, err = NewDecoder(DefaultSeed).Decode(frame)
	require.NoError(t, err)

	assert.Equal(t, MinFrameSize+19, p.FrameLength)
	assert.Equal(t, payload, p.Payload)
	assert.Equal(t, 20, p.PayloadByteCount)
	assert.Equal(t, Corrections(0), p.HeaderCorrections)
	assert.Equal(t, Corrections(0), p.PayloadCorrections)
	assert.True(t, p.HeaderOK)
	assert.True(t, p.PayloadOK)
	assert.True(t, p.ScramblerOK)
	assert.True(t, p.CRCOK)
	assert.Equal(t, p.ComputedFCS, p.ReceivedFCS)
	assert.Equal(t, PayloadFCS(payload), p.ComputedFCS)
	assert.Equal(t, []string{}, p.ErrorTags)
	assert.Equal(t, "", p.ErrorType())
	assert.Equal(t, "WPGM1S>WPGM1S", p.Fields.Addrs())
	assert.Len(t, p.Header, HeaderSize)
	assert.Len(t, p.HeaderParity, HeaderParitySize)
	assert.Len(t, p.PayloadParity, PayloadParitySize)
	assert.Len(t, p.EncodedCRC, CRCEncodedSize)
}

func TestIL2PDecodeLargest(t *testing.T) {
	var payload = testPayload(MaxFramePayload)
	var frame = encodeTestFrame(t, payload)
	assert.Equal(t, byte(255), frame[0])

	var p, err = NewDecoder(DefaultSeed).Decode(frame)
	require.NoError(t, err)
	assert.True(t, p.CRCOK)
	assert.Equal(t, payload, p.Payload)

	_, err = NewEncoder(DefaultSeed).EncodeFrame(testPayload(MaxFramePayload + 1))
	require.Error(t, err)
}

func TestIL2PDecodeCorrections(t *testing.T) {
	var frame = encodeTestFrame(t, testPayload(20))

	frame[frameHeaderOffset+4] ^= 0x40
	for i := 0; i < MaxPayloadCorrect; i++ {
		frame[framePayloadOffset+3*i] ^= 0xa5
	}

	var p, err = NewDecoder(DefaultSeed).Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, Corrections(1), p.HeaderCorrections)
	assert.Equal(t, Corrections(MaxPayloadCorrect), p.PayloadCorrections)
	assert.True(t, p.CRCOK)
	assert.Equal(t, testPayload(20), p.Payload)
}

func TestIL2PDecodeTooShort(t *testing.T) {
	var frame = encodeTestFrame(t, testPayload(1))
	assertDiscard(t, frame[:MinFrameSize-1], StageFramed, TagTooShort)
}

func TestIL2PDecodeLenMismatch(t *testing.T) {
	var frame = append(encodeTestFrame(t, testPayload(10)), 0)
	assertDiscard(t, frame, StageFramed, TagLenMismatch)
}

func TestIL2PDecodeBadHeader(t *testing.T) {
	var frame = encodeTestFrame(t, testPayload(10))
	frame[frameHeaderOffset] ^= 0x5a
	frame[frameHeaderOffset+9] ^= 0x5a
	assertDiscard(t, frame, StageHeaderFEC, TagBadHeader)
}

func TestIL2PDecodeZeroPayloadSize(t *testing.T) {
	var frame = frameWithHeader(t, 0, make([]byte, 30))
	assertDiscard(t, frame, StageLengthDecode, TagPayloadSize)
}

func TestIL2PDecodeInsufficientBytes(t *testing.T) {
	// Header claims 30 bytes but there is only room for 10.
	var frame = frameWithHeader(t, 30, make([]byte, 10+PayloadParitySize+CRCEncodedSize))
	assertDiscard(t, frame, StageLengthDecode, TagInsufficient)
}

func TestIL2PDecodeBadPayload(t *testing.T) {
	var frame = encodeTestFrame(t, testPayload(20))
	for _, i := range []int{1, 3, 5, 7, 9, 11, 13, 15, 17} {
		frame[framePayloadOffset+i] ^= 0xff
	}
	assertDiscard(t, frame, StagePayloadFEC, TagBadPayload)
}

func TestIL2PDecodeCRCMismatch(t *testing.T) {
	var frame = encodeTestFrame(t, testPayload(20))
	// Complement of a codeword is another codeword, so this changes the
	// received CRC without anything for Hamming to correct.
	frame[len(frame)-1] ^= 0x7f

	var p, err = NewDecoder(DefaultSeed).Decode(frame)
	require.NoError(t, err)
	assert.False(t, p.CRCOK)
	assert.NotEqual(t, p.ComputedFCS, p.ReceivedFCS)
	assert.Equal(t, []string{TagCRCMismatch}, p.ErrorTags)
	assert.Equal(t, testPayload(20), p.Payload)
	assert.True(t, p.PayloadOK)
}

func TestIL2PDecodeTrailingBytes(t *testing.T) {
	var frame = append(encodeTestFrame(t, testPayload(12)), 0xde, 0xad)
	frame[0] += 2

	var p, err = NewDecoder(DefaultSeed).Decode(frame)
	require.NoError(t, err)
	assert.True(t, p.CRCOK)
	assert.Equal(t, 12, p.PayloadByteCount)
	assert.Equal(t, testPayload(12), p.Payload)
}

func TestIL2PDecodeDoesNotAlias(t *testing.T) {
	var frame = encodeTestFrame(t, testPayload(20))
	var p, err = NewDecoder(DefaultSeed).Decode(frame)
	require.NoError(t, err)

	var parity = append([]byte{}, p.PayloadParity...)
	for i := range frame {
		frame[i] = 0
	}
	assert.Equal(t, parity, p.PayloadParity)
	assert.Equal(t, testPayload(20), p.Payload)
}

func TestDiscardError(t *testing.T) {
	var de = &DiscardError{Stage: StagePayloadFEC, Tags: []string{TagBadPayload}}
	assert.Equal(t, "IL2P frame discarded at PAYLOAD_FEC: BAD PAYLOAD", de.Error())
	assert.Equal(t, "", (&DiscardError{}).Reason())
	assert.Equal(t, "Stage(42)", Stage(42).String())
	assert.Equal(t, "uncorrectable", Uncorrectable.String())
	assert.Equal(t, "3", Corrections(3).String())
	assert.False(t, NotAttempted.OK())
}
