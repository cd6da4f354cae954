package il2prx

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadFileName(t *testing.T) {
	var dir = filepath.Join(t.TempDir(), "received_packets")
	var now = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	var pf, err = OpenPayloadFile(dir, "", now)
	require.NoError(t, err)
	defer pf.Close()

	assert.Equal(t, filepath.Join(dir, "il2p_payloads_20250304_050607.bin"), pf.Path())
}

func TestPayloadFileAppends(t *testing.T) {
	var dir = t.TempDir()
	var now = time.Now()

	var pf, err = OpenPayloadFile(dir, "payloads.bin", now)
	require.NoError(t, err)
	_, err = pf.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, pf.Close())

	pf, err = OpenPayloadFile(dir, "payloads.bin", now)
	require.NoError(t, err)
	_, err = pf.Write([]byte("def"))
	require.NoError(t, err)
	require.NoError(t, pf.Close())

	data, err := os.ReadFile(filepath.Join(dir, "payloads.bin"))
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(data))
}

func TestPayloadFileLocked(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no flock")
	}

	var dir = t.TempDir()
	var first, err = OpenPayloadFile(dir, "payloads.bin", time.Now())
	require.NoError(t, err)
	defer first.Close()

	_, err = OpenPayloadFile(dir, "payloads.bin", time.Now())
	require.Error(t, err)
}
