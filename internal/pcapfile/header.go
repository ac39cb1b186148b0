// Package pcapfile encodes and validates libpcap capture files.
//
// Every file written by vdecapture starts with the same 24-byte global header
// and continues with records made of a 16-byte record header followed by the
// captured bytes. Multi-byte fields use the byte order of the writing host;
// readers detect it from the magic number.
package pcapfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/gopacket/layers"

	"firestige.xyz/vdecapture/internal/core"
)

const (
	Magic        uint32 = 0xa1b2c3d4
	VersionMajor uint16 = 2
	VersionMinor uint16 = 4
	SnapLen      uint32 = 65535

	// HeaderLen is the size of the global header in bytes.
	HeaderLen = 24
)

// LinkType is the link-layer tag carried in the global header. Frames from a
// virtual link are stored as raw Ethernet.
const LinkType = layers.LinkTypeEthernet

// GlobalHeader is the fixed metadata block written once at the top of a file.
type GlobalHeader struct {
	Magic        uint32
	VersionMajor uint16
	VersionMinor uint16
	ThisZone     int32  // always 0
	SigFigs      uint32 // always 0
	SnapLen      uint32
	LinkType     uint32
}

var canonical = encodeHeader(DefaultHeader())

// DefaultHeader returns the header vdecapture writes to every file.
func DefaultHeader() GlobalHeader {
	return GlobalHeader{
		Magic:        Magic,
		VersionMajor: VersionMajor,
		VersionMinor: VersionMinor,
		SnapLen:      SnapLen,
		LinkType:     uint32(LinkType),
	}
}

func encodeHeader(h GlobalHeader) []byte {
	var buf bytes.Buffer
	// binary.Write on a fixed-size struct into a bytes.Buffer cannot fail.
	_ = binary.Write(&buf, binary.NativeEndian, h)
	return buf.Bytes()
}

// CanonicalHeader returns a copy of the encoded default header.
func CanonicalHeader() []byte {
	return bytes.Clone(canonical)
}

// WriteHeader writes the canonical global header to w.
func WriteHeader(w io.Writer) error {
	n, err := w.Write(canonical)
	if err != nil {
		return fmt.Errorf("%w: header: %v", core.ErrWrite, err)
	}
	if n != HeaderLen {
		return fmt.Errorf("%w: header: %v", core.ErrWrite, io.ErrShortWrite)
	}
	return nil
}

// ReadHeader reads a global header from r, which must be positioned at the
// start of the file.
//
// It returns (nil, nil) when r yields no bytes at all: the file is new. A short
// read, or a header that differs in any byte from the canonical one, is
// reported as core.ErrFormatMismatch so that foreign files and files written
// with other options are never appended to.
func ReadHeader(r io.Reader) (*GlobalHeader, error) {
	buf := make([]byte, HeaderLen)
	n, err := io.ReadFull(r, buf)
	switch {
	case n == 0 && errors.Is(err, io.EOF):
		return nil, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, fmt.Errorf("%w: short header (%d of %d bytes)", core.ErrFormatMismatch, n, HeaderLen)
	case err != nil:
		return nil, fmt.Errorf("read header: %w", err)
	}

	var h GlobalHeader
	if err := binary.Read(bytes.NewReader(buf), binary.NativeEndian, &h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	if !bytes.Equal(buf, canonical) {
		return nil, fmt.Errorf("%w: %s", core.ErrFormatMismatch, h.mismatch())
	}
	return &h, nil
}

// mismatch names the first field of h that differs from the default header.
func (h GlobalHeader) mismatch() string {
	want := DefaultHeader()
	switch {
	case h.Magic != want.Magic:
		return fmt.Sprintf("not a pcap file written on this host (magic %#08x)", h.Magic)
	case h.VersionMajor != want.VersionMajor || h.VersionMinor != want.VersionMinor:
		return fmt.Sprintf("pcap version %d.%d, want %d.%d", h.VersionMajor, h.VersionMinor, want.VersionMajor, want.VersionMinor)
	case h.LinkType != want.LinkType:
		return fmt.Sprintf("link type %s, want %s", linkTypeName(h.LinkType), LinkType)
	case h.SnapLen != want.SnapLen:
		return fmt.Sprintf("snaplen %d, want %d", h.SnapLen, want.SnapLen)
	default:
		return fmt.Sprintf("timezone %d sigfigs %d, want 0 0", h.ThisZone, h.SigFigs)
	}
}

func linkTypeName(v uint32) string {
	if v > 0xff {
		return fmt.Sprintf("%d", v)
	}
	return layers.LinkType(v).String()
}
