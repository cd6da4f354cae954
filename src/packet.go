package il2prx

import (
	"strconv"
	"strings"
)

// Corrections is the number of RS symbols fixed in a block, or one of the
// negative values below.
type Corrections int

const (
	Uncorrectable Corrections = -1
	NotAttempted  Corrections = -2
)

func (c Corrections) OK() bool {
	return c >= 0
}

func (c Corrections) String() string {
	switch c {
	case Uncorrectable:
		return "uncorrectable"
	case NotAttempted:
		return "not attempted"
	}
	return strconv.Itoa(int(c))
}

// Stage names a step of decoding a frame, in the order they run.
type Stage int

const (
	StageFramed Stage = iota
	StageHeaderFEC
	StageDescrambleHeader
	StageScramblerCheck
	StageLengthDecode
	StagePayloadFEC
	StageDescramblePayload
	StageCRCCheck
	StageAssembled
)

var stageNames = [...]string{
	StageFramed:            "FRAMED",
	StageHeaderFEC:         "HEADER_FEC",
	StageDescrambleHeader:  "DESCRAMBLE_HEADER",
	StageScramblerCheck:    "SCRAMBLER_CHECK",
	StageLengthDecode:      "LENGTH_DECODE",
	StagePayloadFEC:        "PAYLOAD_FEC",
	StageDescramblePayload: "DESCRAMBLE_PAYLOAD",
	StageCRCCheck:          "CRC_CHECK",
	StageAssembled:         "ASSEMBLED",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "Stage(" + strconv.Itoa(int(s)) + ")"
}

// Diagnostic tags.
const (
	TagTooShort     = "DROP: too short"
	TagLenMismatch  = "DROP: LEN mismatch"
	TagBadHeader    = "BAD HEADER"
	TagScrambler    = "scrambler mismatch"
	TagPayloadSize  = "DROP: payload_size <= 0"
	TagInsufficient = "DROP: insufficient bytes for payload+parity+crc"
	TagBadPayload   = "BAD PAYLOAD"
	TagCRCMismatch  = "CRC mismatch"
)

// DiscardError is returned for a frame that produced no packet.
type DiscardError struct {
	Stage Stage
	Tags  []string
}

func (e *DiscardError) Error() string {
	return "IL2P frame discarded at " + e.Stage.String() + ": " + strings.Join(e.Tags, ", ")
}

// Reason is the last tag, the one that caused the discard.
func (e *DiscardError) Reason() string {
	if len(e.Tags) == 0 {
		return ""
	}
	return e.Tags[len(e.Tags)-1]
}

/*
 * One decoded IL2P packet.
 *
 * Byte slices are owned by the packet.  Nothing in the decoder keeps a
 * reference after handing it out.
 */
type Packet struct {
	RunID       int64
	PacketIndex int

	FrameLength int // The LEN byte.

	Header             []byte // 13 bytes after FEC, still scrambled.
	HeaderPlain        []byte // Same, descrambled.
	HeaderParity       []byte
	HeaderCorrections  Corrections
	Payload            []byte // Descrambled.
	PayloadParity      []byte
	PayloadCorrections Corrections
	EncodedCRC         []byte // 4 Hamming coded bytes as received.

	HeaderOK    bool
	PayloadOK   bool
	ScramblerOK bool
	CRCOK       bool

	PayloadByteCount int
	ComputedFCS      uint16
	ReceivedFCS      uint16

	Fields HeaderFields

	ErrorTags []string
}

// ErrorType is the tags joined the way they are stored.
func (p *Packet) ErrorType() string {
	return strings.Join(p.ErrorTags, ", ")
}
