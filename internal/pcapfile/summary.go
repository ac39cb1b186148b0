package pcapfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"
)

// RecordInfo describes one record of an existing capture file.
type RecordInfo struct {
	Index     int       `yaml:"index"`
	Timestamp time.Time `yaml:"timestamp"`
	Length    int       `yaml:"length"`
}

// Summary describes an existing capture file.
type Summary struct {
	Path      string       `yaml:"path"`
	Canonical bool         `yaml:"canonical_header"`
	LinkType  string       `yaml:"link_type"`
	SnapLen   uint32       `yaml:"snaplen"`
	Packets   int          `yaml:"packets"`
	Payload   int64        `yaml:"payload_bytes"`
	FileSize  int64        `yaml:"file_bytes"`
	First     time.Time    `yaml:"first,omitempty"`
	Last      time.Time    `yaml:"last,omitempty"`
	Records   []RecordInfo `yaml:"records,omitempty"`
	Truncated bool         `yaml:"truncated,omitempty"`
}

// Inspect reads the capture file at path and summarizes it. With records set,
// every record is listed. A trailing partial record, as left by an abrupt
// termination mid-write, is reported through Truncated rather than as an
// error.
func Inspect(path string, records bool) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	defer f.Close()

	head := make([]byte, HeaderLen)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind capture file: %w", err)
	}

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}

	s := &Summary{
		Path:      path,
		Canonical: n == HeaderLen && bytes.Equal(head, canonical),
		LinkType:  r.LinkType().String(),
		SnapLen:   r.Snaplen(),
		FileSize:  HeaderLen,
	}
	if err := s.scan(r, records); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Summary) scan(src gopacket.PacketDataSource, records bool) error {
	for {
		data, ci, err := src.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			s.Truncated = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("read record %d: %w", s.Packets, err)
		}

		if s.Packets == 0 {
			s.First = ci.Timestamp
		}
		s.Last = ci.Timestamp
		s.Payload += int64(len(data))
		s.FileSize += int64(RecordLen(ci.CaptureLength))
		if records {
			s.Records = append(s.Records, RecordInfo{
				Index:     s.Packets,
				Timestamp: ci.Timestamp,
				Length:    ci.CaptureLength,
			})
		}
		s.Packets++
	}
}
