package link

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"syscall"
)

func init() {
	Register("udp", openUDP)
	Register("unix", openUnix)
}

// datagramLink delivers one datagram per frame.
type datagramLink struct {
	conn    net.Conn
	fd      uintptr
	cleanup func() error
}

func newDatagramLink(conn net.Conn, rcvbuf int) (*datagramLink, error) {
	sc, ok := conn.(interface {
		SetReadBuffer(int) error
	})
	if ok && rcvbuf > 0 {
		if err := sc.SetReadBuffer(rcvbuf); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set receive buffer: %w", err)
		}
	}

	sys, ok := conn.(syscall.Conn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("unsupported connection type %T", conn)
	}
	fd, err := connFd(sys)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &datagramLink{conn: conn, fd: fd}, nil
}

func (l *datagramLink) Fd() uintptr {
	return l.fd
}

func (l *datagramLink) Recv(buf []byte) (int, error) {
	return l.conn.Read(buf)
}

func (l *datagramLink) Close() error {
	err := l.conn.Close()
	if l.cleanup != nil {
		if cerr := l.cleanup(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

type udpOptions struct {
	SocketOptions `mapstructure:",squash"`
}

// openUDP binds udp://HOST:PORT and captures every datagram sent to it.
func openUDP(loc *url.URL) (Link, error) {
	var opts udpOptions
	if err := decodeOptions(loc, &opts); err != nil {
		return nil, err
	}
	addr, err := net.ResolveUDPAddr("udp", loc.Host)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return newDatagramLink(conn, opts.RcvBuf)
}

type unixOptions struct {
	SocketOptions `mapstructure:",squash"`
	Unlink        bool   `mapstructure:"unlink"`
	Mode          string `mapstructure:"mode"`
}

// openUnix binds a unix datagram socket at the locator path. A stale socket
// left by an earlier run is removed first; the socket file is removed again
// on Close.
func openUnix(loc *url.URL) (Link, error) {
	opts := unixOptions{Unlink: true}
	if err := decodeOptions(loc, &opts); err != nil {
		return nil, err
	}
	path := locatorPath(loc)
	if path == "" {
		return nil, errors.New("unix link requires a socket path")
	}

	if opts.Unlink {
		if err := removeStaleSocket(path); err != nil {
			return nil, err
		}
	}

	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, err
	}

	if opts.Mode != "" {
		mode, err := strconv.ParseUint(opts.Mode, 8, 32)
		if err != nil {
			conn.Close()
			os.Remove(path)
			return nil, fmt.Errorf("invalid socket mode %q: %w", opts.Mode, err)
		}
		if err := os.Chmod(path, os.FileMode(mode)); err != nil {
			conn.Close()
			os.Remove(path)
			return nil, err
		}
	}

	l, err := newDatagramLink(conn, opts.RcvBuf)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	l.cleanup = func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return l, nil
}

func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode().Type() != fs.ModeSocket {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	return os.Remove(path)
}
