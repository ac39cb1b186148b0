package pcapfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"firestige.xyz/vdecapture/internal/core"
)

// RecordHeaderLen is the size of the per-record header in bytes.
const RecordHeaderLen = 16

// RecordHeader precedes every captured frame on disk. CapLen and OrigLen are
// always equal: frames are stored whole.
type RecordHeader struct {
	TsSec   uint32
	TsUsec  uint32
	CapLen  uint32
	OrigLen uint32
}

// RecordLen returns the on-disk size of a record carrying n payload bytes.
func RecordLen(n int) int {
	return RecordHeaderLen + n
}

func (h RecordHeader) encode(buf []byte) {
	binary.NativeEndian.PutUint32(buf[0:4], h.TsSec)
	binary.NativeEndian.PutUint32(buf[4:8], h.TsUsec)
	binary.NativeEndian.PutUint32(buf[8:12], h.CapLen)
	binary.NativeEndian.PutUint32(buf[12:16], h.OrigLen)
}

// WriteRecord writes one record (header then payload) and returns the number
// of bytes written. Any failure wraps core.ErrWrite; a partially written
// record corrupts the rest of the file, so callers must stop writing to w.
func WriteRecord(w io.Writer, ts time.Time, payload []byte) (int, error) {
	hdr := RecordHeader{
		TsSec:   uint32(ts.Unix()),
		TsUsec:  uint32(ts.Nanosecond() / 1000),
		CapLen:  uint32(len(payload)),
		OrigLen: uint32(len(payload)),
	}
	var buf [RecordHeaderLen]byte
	hdr.encode(buf[:])

	n, err := w.Write(buf[:])
	if err == nil && n != RecordHeaderLen {
		err = io.ErrShortWrite
	}
	if err != nil {
		return n, fmt.Errorf("%w: record header: %v", core.ErrWrite, err)
	}

	m, err := w.Write(payload)
	if err == nil && m != len(payload) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return n + m, fmt.Errorf("%w: record payload: %v", core.ErrWrite, err)
	}
	return n + m, nil
}
