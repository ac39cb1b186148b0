//go:build linux

package link

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/sys/unix"
)

func init() {
	Register("packet", openPacket)
}

type packetOptions struct {
	SocketOptions `mapstructure:",squash"`
	Promisc       bool `mapstructure:"promisc"`
}

// packetLink reads every frame seen on a network interface (typically the
// tap side of a virtual switch) through an AF_PACKET raw socket.
type packetLink struct {
	fd int
}

// openPacket opens packet://IFACE.
func openPacket(loc *url.URL) (Link, error) {
	var opts packetOptions
	if err := decodeOptions(loc, &opts); err != nil {
		return nil, err
	}
	name := loc.Host
	if name == "" {
		return nil, errors.New("packet link requires an interface name")
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("interface %q: %w", name, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	addr := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind to %s: %w", name, err)
	}
	if opts.RcvBuf > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, opts.RcvBuf); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("set receive buffer: %w", err)
		}
	}
	if opts.Promisc {
		mreq := unix.PacketMreq{Ifindex: int32(iface.Index), Type: unix.PACKET_MR_PROMISC}
		if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &mreq); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("enable promiscuous mode: %w", err)
		}
	}
	return &packetLink{fd: fd}, nil
}

// htons converts v to network byte order as seen from the host.
func htons(v uint16) uint16 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return binary.NativeEndian.Uint16(b[:])
}

func (l *packetLink) Fd() uintptr {
	return uintptr(l.fd)
}

func (l *packetLink) Recv(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(l.fd, buf, 0)
	return n, err
}

func (l *packetLink) Close() error {
	return unix.Close(l.fd)
}
