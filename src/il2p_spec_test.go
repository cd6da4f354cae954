package il2prx

// Test examples found in the IL2P spec
// https://tarpn.net/t/il2p/il2p-specification_draft_v0-6.pdf

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AX.25 frames the two examples stand for, without FCS.
const (
	il2pSpecSFrameAX25  = "96 82 64 88 8A AE E4 96 96 68 90 8A 94 6F 81"
	il2pSpecUIFrameAX25 = "86 A2 40 40 40 40 60 96 96 68 90 8A 94 FF 03 F0"
)

// Convenience function for turning example packets from the spec PDF into Go byte arrays to work with
// Example input: "26 57 4D 57 F1 D2 A8 F0 6A F2 7B AD 23 BD C0 7F 00 1D 2B"
func il2pDataStringToBytes(s string) []byte {
	var data, err = hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		panic(err)
	}
	return data
}

func TestIL2PSpec(t *testing.T) {
	var testData = []struct {
		inputData     string
		expectedAddrs string
		ui            int
		pid           int
		ax25Data      string
	}{
		{
			inputData:     "26 57 4D 57 F1 D2 A8 F0 6A F2 7B AD 23 BD C0 7F 00 1D 2B",
			expectedAddrs: "KK4HEJ-7>KA2DEW-2",
			ui:            0,
			pid:           0,
			ax25Data:      il2pSpecSFrameAX25,
		},
		{
			inputData:     "6A EA 9C C2 01 11 FC 14 1F DA 6E F2 53 91 BD 47 6C 54 54",
			expectedAddrs: "KK4HEJ-15>CQ",
			ui:            1,
			pid:           0xf,
			ax25Data:      il2pSpecUIFrameAX25,
		},
	}

	var s = NewScrambler(DefaultSeed)

	for _, testDatum := range testData {
		var b = il2pDataStringToBytes(testDatum.inputData)

		// All IL2P data samples include Trailing CRC and lack Sync Word.
		var hdr, n, err = DecodeHeaderFEC(b[:HeaderSize], b[HeaderSize:HeaderSize+HeaderParitySize])
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		var plain = s.Descramble(hdr)
		assert.True(t, s.Validate(hdr, plain))

		var fields = ParseHeaderFields(plain)
		assert.Equal(t, testDatum.expectedAddrs, fields.Addrs())
		assert.Equal(t, testDatum.ui, fields.UI)
		assert.Equal(t, testDatum.pid, fields.PID)
		assert.Equal(t, 1, fields.HdrType)
		assert.Equal(t, 0, fields.PayloadByteCount)

		// Trailing CRC covers the AX.25 frame.
		var crc = b[len(b)-CRCEncodedSize:]
		assert.Equal(t, FCS(il2pDataStringToBytes(testDatum.ax25Data)), DecodeCRC(crc))
	}
}
