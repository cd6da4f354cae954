package il2prx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	var s, err = OpenStore(filepath.Join(t.TempDir(), "observations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func decodedPacket(t *testing.T, runID int64, index int, payload []byte, badCRC bool) *Packet {
	t.Helper()
	var frame = encodeTestFrame(t, payload)
	if badCRC {
		frame[len(frame)-1] ^= 0x7f
	}
	var p, err = NewDecoder(DefaultSeed).Decode(frame)
	require.NoError(t, err)
	p.RunID = runID
	p.PacketIndex = index
	return p
}

func TestStoreRunAndPackets(t *testing.T) {
	var ctx = context.Background()
	var s = openTestStore(t)

	var runID, err = s.CreateRun(ctx, Run{
		SourceFile:      "pass.bits",
		OutputPath:      "received_packets",
		AccessThreshold: 3,
		StorePackets:    true,
		Seed:            DefaultSeed,
	})
	require.NoError(t, err)
	require.NotZero(t, runID)

	var want = []*Packet{
		decodedPacket(t, runID, 0, []byte("one"), false),
		decodedPacket(t, runID, 1, []byte("two"), true),
		decodedPacket(t, runID, 2, []byte("three"), false),
	}
	// Stored out of order, read back in index order.
	for _, i := range []int{2, 0, 1} {
		require.NoError(t, s.StorePacket(ctx, want[i]))
	}

	got, err := s.Packets(ctx, runID)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("stored packets mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, s.SetRunOutputFile(ctx, runID, "received_packets/x.bin"))

	run, err := s.RunSummary(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 3, run.PacketCount)
	assert.Equal(t, 2, run.GoodPackets)
	assert.Equal(t, "pass.bits", run.SourceFile)
	assert.Equal(t, "received_packets/x.bin", run.OutputFile)
	assert.Equal(t, DefaultSeed, run.Seed)
	assert.Equal(t, 3, run.AccessThreshold)
	assert.True(t, run.StorePackets)
	assert.NotEmpty(t, run.SessionUUID)
	assert.False(t, run.StartTime.IsZero())
}

func TestStoreDuplicateIndex(t *testing.T) {
	var ctx = context.Background()
	var s = openTestStore(t)

	var runID, err = s.CreateRun(ctx, Run{})
	require.NoError(t, err)

	require.NoError(t, s.StorePacket(ctx, decodedPacket(t, runID, 0, []byte("a"), false)))
	require.Error(t, s.StorePacket(ctx, decodedPacket(t, runID, 0, []byte("b"), false)))
}

func TestStoreReopen(t *testing.T) {
	var ctx = context.Background()
	var path = filepath.Join(t.TempDir(), "observations.db")

	var s, err = OpenStore(path)
	require.NoError(t, err)
	runID, err := s.CreateRun(ctx, Run{Notes: "first"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Migrations already applied is not an error.
	s, err = OpenStore(path)
	require.NoError(t, err)
	defer s.Close()

	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "first", run.Notes)
	assert.Equal(t, 0, run.PacketCount)

	_, err = s.GetRun(ctx, runID+1)
	require.Error(t, err)
}
