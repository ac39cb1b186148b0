// Package link opens the virtual network links vdecapture captures from.
//
// A link is addressed by a locator URL whose scheme selects the driver, e.g.
// udp://0.0.0.0:5000, unix:///run/vde/capture.sock or pcap:///tmp/in.pcap.
// A locator without a scheme is taken as the path of a unix datagram socket.
// Query parameters are driver options.
package link

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/vdecapture/internal/core"
)

// MaxFrameLen is the largest frame a link delivers; longer frames are cut by
// the underlying socket.
const MaxFrameLen = 65535

// Link is a readable packet source with a descriptor usable for readiness
// polling.
type Link interface {
	// Fd is polled for readability.
	Fd() uintptr
	// Recv reads one frame into buf. A zero count means the link has no more
	// frames to deliver.
	Recv(buf []byte) (int, error)
	Close() error
}

// Constructor opens a link from its parsed locator.
type Constructor func(loc *url.URL) (Link, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Constructor)
)

// Register makes a driver available under scheme. Drivers register from init.
func Register(scheme string, constructor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	registry[scheme] = constructor
}

// Schemes lists the registered schemes, sorted.
func Schemes() []string {
	mu.RLock()
	defer mu.RUnlock()
	schemes := make([]string, 0, len(registry))
	for s := range registry {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Open connects to the link named by locator. Failures wrap core.ErrConnect.
func Open(locator string) (Link, error) {
	loc, err := Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConnect, err)
	}

	mu.RLock()
	constructor, ok := registry[loc.Scheme]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unsupported link scheme %q (supported: %s)",
			core.ErrConnect, loc.Scheme, strings.Join(Schemes(), ", "))
	}

	l, err := constructor(loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrConnect, locator, err)
	}
	return l, nil
}

// Parse turns a locator into a URL, mapping bare paths to the unix scheme.
func Parse(locator string) (*url.URL, error) {
	if locator == "" {
		return nil, fmt.Errorf("empty link locator")
	}
	if !strings.Contains(locator, "://") {
		return &url.URL{Scheme: "unix", Path: locator}, nil
	}
	loc, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("invalid link locator %q: %w", locator, err)
	}
	return loc, nil
}

// decodeOptions fills out from the locator's query parameters. Values are
// weakly typed ("4194304" decodes into an int) and unknown keys are rejected.
func decodeOptions(loc *url.URL, out interface{}) error {
	query := loc.Query()
	flat := make(map[string]string, len(query))
	for k := range query {
		flat[k] = query.Get(k)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(flat); err != nil {
		return fmt.Errorf("link options: %w", err)
	}
	return nil
}

// locatorPath joins host and path so that both scheme:///abs/path and
// scheme://rel/path name a file.
func locatorPath(loc *url.URL) string {
	return loc.Host + loc.Path
}

// SocketOptions are shared by the socket-backed drivers.
type SocketOptions struct {
	RcvBuf int `mapstructure:"rcvbuf"`
}

// connFd returns the descriptor behind a net.Conn or *os.File. The descriptor
// stays valid until the connection is closed.
func connFd(c syscall.Conn) (uintptr, error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd uintptr
	if err := raw.Control(func(f uintptr) { fd = f }); err != nil {
		return 0, err
	}
	return fd, nil
}
