package pcapfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"testing/iotest"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/vdecapture/internal/core"
)

func TestCanonicalHeaderLayout(t *testing.T) {
	hdr := CanonicalHeader()
	require.Len(t, hdr, HeaderLen)

	ne := binary.NativeEndian
	assert.Equal(t, uint32(0xa1b2c3d4), ne.Uint32(hdr[0:4]))
	assert.Equal(t, uint16(2), ne.Uint16(hdr[4:6]))
	assert.Equal(t, uint16(4), ne.Uint16(hdr[6:8]))
	assert.Equal(t, uint32(0), ne.Uint32(hdr[8:12]))
	assert.Equal(t, uint32(0), ne.Uint32(hdr[12:16]))
	assert.Equal(t, uint32(65535), ne.Uint32(hdr[16:20]))
	assert.Equal(t, uint32(1), ne.Uint32(hdr[20:24]))
}

func TestCanonicalHeaderIsCopy(t *testing.T) {
	hdr := CanonicalHeader()
	hdr[0] ^= 0xff
	assert.NotEqual(t, hdr, CanonicalHeader())
}

func TestHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf))
	assert.Equal(t, CanonicalHeader(), buf.Bytes())

	h, err := ReadHeader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, DefaultHeader(), *h)
}

func TestReadHeader(t *testing.T) {
	foreign := CanonicalHeader()
	binary.NativeEndian.PutUint32(foreign[20:24], 101) // LINKTYPE_RAW

	tests := []struct {
		name     string
		input    []byte
		wantNil  bool
		mismatch bool
	}{
		{name: "empty file", input: nil, wantNil: true},
		{name: "canonical", input: CanonicalHeader()},
		{name: "canonical followed by records", input: append(CanonicalHeader(), 1, 2, 3)},
		{name: "short header", input: CanonicalHeader()[:10], mismatch: true},
		{name: "single byte", input: []byte{0xd4}, mismatch: true},
		{name: "different link type", input: foreign, mismatch: true},
		{name: "text file", input: []byte("this is definitely not a pcap file"), mismatch: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ReadHeader(bytes.NewReader(tt.input))
			if tt.mismatch {
				assert.ErrorIs(t, err, core.ErrFormatMismatch)
				assert.Nil(t, h)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, h)
			} else {
				assert.NotNil(t, h)
			}
		})
	}
}

func TestReadHeaderMismatchNamesField(t *testing.T) {
	ne := binary.NativeEndian
	tests := []struct {
		name   string
		mutate func(h []byte)
		want   string
	}{
		{"link type", func(h []byte) { ne.PutUint32(h[20:24], uint32(layers.LinkTypeRaw)) }, "link type Raw, want Ethernet"},
		{"unnamed link type", func(h []byte) { ne.PutUint32(h[20:24], 1000) }, "link type 1000, want Ethernet"},
		{"snaplen", func(h []byte) { ne.PutUint32(h[16:20], 262144) }, "snaplen 262144, want 65535"},
		{"version", func(h []byte) { ne.PutUint16(h[6:8], 3) }, "pcap version 2.3, want 2.4"},
		{"byte order", func(h []byte) { h[0], h[1], h[2], h[3] = h[3], h[2], h[1], h[0] }, "not a pcap file written on this host"},
		{"timezone", func(h []byte) { ne.PutUint32(h[8:12], 3600) }, "timezone 3600"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr := CanonicalHeader()
			tt.mutate(hdr)
			_, err := ReadHeader(bytes.NewReader(hdr))
			assert.ErrorIs(t, err, core.ErrFormatMismatch)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCanonicalHeaderReadByPcapgo(t *testing.T) {
	r, err := pcapgo.NewReader(bytes.NewReader(CanonicalHeader()))
	require.NoError(t, err)
	assert.Equal(t, LinkType, r.LinkType())
	assert.Equal(t, SnapLen, r.Snaplen())
}

func TestReadHeaderPropagatesReadErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := ReadHeader(iotest.ErrReader(boom))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, core.ErrFormatMismatch)
}

type limitedWriter struct {
	buf   bytes.Buffer
	limit int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	room := w.limit - w.buf.Len()
	if room <= 0 {
		return 0, errors.New("disk full")
	}
	if len(p) > room {
		w.buf.Write(p[:room])
		return room, errors.New("disk full")
	}
	return w.buf.Write(p)
}

func TestWriteHeaderFailure(t *testing.T) {
	w := &limitedWriter{limit: 10}
	err := WriteHeader(w)
	assert.ErrorIs(t, err, core.ErrWrite)
}

func TestWriteRecord(t *testing.T) {
	ts := time.Unix(1700000000, 123456789)
	payload := bytes.Repeat([]byte{0xab}, 60)

	var buf bytes.Buffer
	n, err := WriteRecord(&buf, ts, payload)
	require.NoError(t, err)
	assert.Equal(t, RecordLen(len(payload)), n)
	require.Equal(t, 76, buf.Len())

	b := buf.Bytes()
	ne := binary.NativeEndian
	assert.Equal(t, uint32(1700000000), ne.Uint32(b[0:4]))
	assert.Equal(t, uint32(123456), ne.Uint32(b[4:8]))
	assert.Equal(t, uint32(60), ne.Uint32(b[8:12]))
	assert.Equal(t, uint32(60), ne.Uint32(b[12:16]))
	assert.Equal(t, payload, b[16:])
}

func TestWriteRecordFailures(t *testing.T) {
	payload := make([]byte, 100)

	tests := []struct {
		name  string
		limit int
	}{
		{name: "header rejected", limit: 0},
		{name: "header short", limit: 8},
		{name: "payload short", limit: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &limitedWriter{limit: tt.limit}
			n, err := WriteRecord(w, time.Now(), payload)
			assert.ErrorIs(t, err, core.ErrWrite)
			assert.Equal(t, tt.limit, n)
		})
	}
}

func TestWriteRecordEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteRecord(&buf, time.Unix(1, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, RecordHeaderLen, n)
}
