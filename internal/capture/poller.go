package capture

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// Readiness is the outcome of one bounded wait. Both false means the wait
// timed out.
type Readiness struct {
	// Link has a frame to receive, or has hung up.
	Link bool
	// SinkErr reports an error condition on the output descriptor.
	SinkErr bool
}

// Poller waits for the link to become readable or the sink to fail.
type Poller interface {
	Wait(linkFd, sinkFd uintptr, timeout time.Duration) (Readiness, error)
}

// NewPoller returns the poll(2) based Poller.
func NewPoller() Poller {
	return unixPoller{}
}

type unixPoller struct{}

func (unixPoller) Wait(linkFd, sinkFd uintptr, timeout time.Duration) (Readiness, error) {
	fds := []unix.PollFd{
		{Fd: int32(linkFd), Events: unix.POLLIN},
		{Fd: int32(sinkFd), Events: unix.POLLERR},
	}
	_, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if errors.Is(err, unix.EINTR) {
		return Readiness{}, nil
	}
	if err != nil {
		return Readiness{}, err
	}
	// A hung up or failed link is reported readable so that the next receive
	// observes the end of the link.
	return Readiness{
		Link:    fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0,
		SinkErr: fds[1].Revents&(unix.POLLERR|unix.POLLNVAL) != 0,
	}, nil
}
