package link

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/google/gopacket/pcapgo"
)

func init() {
	Register("pcap", openReplay)
}

// replayLink feeds the records of an existing capture file as frames. The end
// of the file closes the link.
type replayLink struct {
	f      *os.File
	r      *pcapgo.Reader
	fd     uintptr
	frames int
}

// openReplay opens pcap:///PATH.
func openReplay(loc *url.URL) (Link, error) {
	if err := decodeOptions(loc, &struct{}{}); err != nil {
		return nil, err
	}
	path := locatorPath(loc)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read capture header: %w", err)
	}
	fd, err := connFd(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &replayLink{f: f, r: r, fd: fd}, nil
}

func (l *replayLink) Fd() uintptr {
	return l.fd
}

func (l *replayLink) Recv(buf []byte) (int, error) {
	data, _, err := l.r.ReadPacketData()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("replay frame %d: %w", l.frames, err)
	}
	l.frames++
	return copy(buf, data), nil
}

func (l *replayLink) Close() error {
	return l.f.Close()
}
