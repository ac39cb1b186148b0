package pcapfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCapture(t *testing.T, sizes ...int) (string, []time.Time) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf))

	base := time.Unix(1700000000, 0)
	stamps := make([]time.Time, 0, len(sizes))
	for i, size := range sizes {
		ts := base.Add(time.Duration(i) * 1500 * time.Microsecond)
		_, err := WriteRecord(&buf, ts, bytes.Repeat([]byte{byte(i)}, size))
		require.NoError(t, err)
		stamps = append(stamps, ts)
	}

	path := filepath.Join(t.TempDir(), "capture.pcap")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path, stamps
}

func TestInspect(t *testing.T) {
	path, stamps := writeCapture(t, 60, 1500, 64)

	s, err := Inspect(path, true)
	require.NoError(t, err)

	assert.True(t, s.Canonical)
	assert.Equal(t, "Ethernet", s.LinkType)
	assert.Equal(t, uint32(65535), s.SnapLen)
	assert.Equal(t, 3, s.Packets)
	assert.Equal(t, int64(60+1500+64), s.Payload)
	assert.Equal(t, int64(24+76+1516+80), s.FileSize)
	assert.True(t, s.First.Equal(stamps[0]))
	assert.True(t, s.Last.Equal(stamps[2]))
	assert.False(t, s.Truncated)
	require.Len(t, s.Records, 3)
	assert.Equal(t, 1500, s.Records[1].Length)
}

func TestInspectWithoutRecords(t *testing.T) {
	path, _ := writeCapture(t, 10, 20)

	s, err := Inspect(path, false)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Packets)
	assert.Empty(t, s.Records)
}

func TestInspectHeaderOnly(t *testing.T) {
	path, _ := writeCapture(t)

	s, err := Inspect(path, false)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Packets)
	assert.Equal(t, int64(HeaderLen), s.FileSize)
	assert.True(t, s.First.IsZero())
}

func TestInspectTruncatedRecord(t *testing.T) {
	path, _ := writeCapture(t, 100, 100)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-30], 0o644))

	s, err := Inspect(path, false)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Packets)
	assert.True(t, s.Truncated)
}

func TestInspectErrors(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "missing.pcap"), false)
	assert.Error(t, err)

	junk := filepath.Join(t.TempDir(), "junk.pcap")
	require.NoError(t, os.WriteFile(junk, []byte("not a capture file at all, sorry"), 0o644))
	_, err = Inspect(junk, false)
	assert.Error(t, err)
}
