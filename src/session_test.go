package il2prx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	packets []*Packet
	err     error
}

func (f *fakeStore) StorePacket(_ context.Context, p *Packet) error {
	if f.err != nil {
		return f.err
	}
	f.packets = append(f.packets, p)
	return nil
}

type fakePublisher struct {
	indexes []int
}

func (f *fakePublisher) PublishPacket(_ context.Context, p *Packet) error {
	f.indexes = append(f.indexes, p.PacketIndex)
	return nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// testStream gives idle bits and framed packets with the given payloads.
// Where bad[i] is set that frame gets a CRC error.
func testStream(t *testing.T, payloads [][]byte, bad map[int]bool) []byte {
	t.Helper()
	var bits = make([]byte, 100)
	for i, payload := range payloads {
		var frame = encodeTestFrame(t, payload)
		if bad[i] {
			frame[len(frame)-1] ^= 0x7f
		}
		bits = append(bits, FrameBits(frame)...)
		bits = append(bits, make([]byte, 64)...)
	}
	return bits
}

func TestSessionEndToEnd(t *testing.T) {
	var payloads = [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	var bits = testStream(t, payloads, map[int]bool{1: true})

	var store = &fakeStore{}
	var pub = &fakePublisher{}
	var out bytes.Buffer

	var s = NewSession(SessionConfig{
		RunID:           7,
		Seed:            DefaultSeed,
		StorePackets:    true,
		AccessThreshold: DefaultAccessThreshold,
		Store:           store,
		Payload:         &out,
		Publisher:       pub,
		Logger:          quietLogger(),
		Metrics:         NewMetrics(),
	})

	// Odd chunk size so frames straddle chunks.
	var packets []*Packet
	for len(bits) > 0 {
		var n = min(333, len(bits))
		packets = append(packets, s.ProcessBits(context.Background(), bits[:n])...)
		bits = bits[n:]
	}

	require.Len(t, packets, 3)
	for i, p := range packets {
		assert.Equal(t, i, p.PacketIndex)
		assert.Equal(t, int64(7), p.RunID)
	}
	assert.True(t, packets[0].CRCOK)
	assert.False(t, packets[1].CRCOK)
	assert.True(t, packets[2].CRCOK)

	// Every packet is stored and published, only good payloads written.
	assert.Len(t, store.packets, 3)
	assert.Equal(t, []int{0, 1, 2}, pub.indexes)
	assert.Equal(t, "firstthird", out.String())

	var st = s.Stats()
	assert.Equal(t, 3, st.Frames)
	assert.Equal(t, 3, st.Packets)
	assert.Equal(t, 2, st.CRCGood)
	assert.Equal(t, int64(10), st.PayloadBytes)
	assert.Equal(t, 0, st.SinkErrors)
	assert.Empty(t, st.Discards)
	assert.Equal(t, 3, st.Framer.Frames)
}

func TestSessionStoreGatedByFlag(t *testing.T) {
	var store = &fakeStore{}
	var s = NewSession(SessionConfig{
		Seed:            DefaultSeed,
		AccessThreshold: DefaultAccessThreshold,
		Store:           store,
		Logger:          quietLogger(),
	})

	var packets = s.ProcessBits(context.Background(), testStream(t, [][]byte{[]byte("x")}, nil))
	require.Len(t, packets, 1)
	assert.Empty(t, store.packets)
}

func TestSessionDiscardsDoNotUseIndexes(t *testing.T) {
	var s = NewSession(SessionConfig{Seed: DefaultSeed, Logger: quietLogger()})
	var ctx = context.Background()

	var good = encodeTestFrame(t, []byte("ok"))
	var bad = append([]byte{}, good...)
	bad[frameHeaderOffset] ^= 0x11
	bad[frameHeaderOffset+1] ^= 0x11

	assert.Nil(t, s.HandleFrame(ctx, bad))
	assert.Nil(t, s.HandleFrame(ctx, good[:20]))

	var p = s.HandleFrame(ctx, good)
	require.NotNil(t, p)
	assert.Equal(t, 0, p.PacketIndex)

	var st = s.Stats()
	assert.Equal(t, 3, st.Frames)
	assert.Equal(t, 1, st.Packets)
	assert.Equal(t, map[string]int{TagBadHeader: 1, TagTooShort: 1}, st.Discards)
}

func TestSessionSinkFailureKeepsGoing(t *testing.T) {
	var store = &fakeStore{err: errors.New("disk full")}
	var pub = &fakePublisher{}
	var m = NewMetrics()

	var s = NewSession(SessionConfig{
		Seed:            DefaultSeed,
		StorePackets:    true,
		AccessThreshold: DefaultAccessThreshold,
		Store:           store,
		Publisher:       pub,
		Logger:          quietLogger(),
		Metrics:         m,
	})

	var packets = s.ProcessBits(context.Background(),
		testStream(t, [][]byte{[]byte("a"), []byte("b")}, nil))
	require.Len(t, packets, 2)
	assert.Equal(t, []int{0, 1}, pub.indexes)
	assert.Equal(t, 2, s.Stats().SinkErrors)
	assert.Equal(t, 2.0, counterValue(t, m, "il2p_sink_errors_total", map[string]string{"sink": "store"}))
}

func TestSessionProcessWithMarkers(t *testing.T) {
	// Markers from an outside correlator, including one that is bogus.
	var frame = encodeTestFrame(t, []byte("marker"))
	var bits = append(make([]byte, 10), UnpackBits(frame)...)

	var s = NewSession(SessionConfig{Seed: DefaultSeed, Logger: quietLogger()})
	var packets = s.Process(context.Background(), bits, []int64{10, 30})
	require.Len(t, packets, 1)
	assert.Equal(t, []byte("marker"), packets[0].Payload)
	assert.Equal(t, 1, s.Stats().Framer.StaleMarkers)
}
