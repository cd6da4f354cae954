package il2prx

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketMessage(t *testing.T) {
	var p = decodedPacket(t, 12, 4, []byte{0xca, 0xfe}, true)
	var now = time.Unix(1700000000, 0)

	var data, err = json.Marshal(NewPacketMessage(p, now))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, 12.0, got["run_id"])
	assert.Equal(t, 4.0, got["packet_index"])
	assert.Equal(t, 1700000000.0, got["timestamp"])
	assert.Equal(t, "WPGM1S>WPGM1S", got["addrs"])
	assert.Equal(t, "cafe", got["payload"])
	assert.Equal(t, false, got["crc_ok"])
	assert.Equal(t, true, got["scrambler_ok"])
	assert.Equal(t, []any{TagCRCMismatch}, got["error_tags"])
	assert.Equal(t, float64(p.ComputedFCS), got["crc16_computed"])

	var hdr = got["header"].(map[string]any)
	assert.Equal(t, 2.0, hdr["payload_byte_count"])
	assert.Equal(t, "WPGM1S", hdr["src"])
}

func TestMQTTTopic(t *testing.T) {
	assert.Equal(t, "il2p/3/packet", MQTTConfig{}.topic(3))
	assert.Equal(t, "ground/station1/3/packet", MQTTConfig{TopicPrefix: "ground/station1"}.topic(3))
}
