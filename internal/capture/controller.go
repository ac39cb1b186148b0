// Package capture runs the capture loop: it moves frames from a link into a
// pcap sink under count, size and time limits, and services rotation and
// termination requests between frames.
package capture

import (
	"context"
	"fmt"
	"os"
	"time"

	"firestige.xyz/vdecapture/internal/core"
	"firestige.xyz/vdecapture/internal/link"
	"firestige.xyz/vdecapture/internal/log"
	"firestige.xyz/vdecapture/internal/pcapfile"
	"firestige.xyz/vdecapture/internal/sink"
)

// DefaultPollInterval bounds every readiness wait. An idle wait flushes the
// sink, so it also bounds how long a record can sit in the write buffer.
const DefaultPollInterval = time.Second

// Reason tells why a capture stopped. Every reason is an ordinary end of
// capture.
type Reason int

const (
	ReasonLinkClosed Reason = iota + 1
	ReasonLimitReached
	ReasonSinkError
	ReasonTerminated
	ReasonTimeExpired
	ReasonRotateFailed
)

func (r Reason) String() string {
	switch r {
	case ReasonLinkClosed:
		return "link closed"
	case ReasonLimitReached:
		return "limit reached"
	case ReasonSinkError:
		return "sink error"
	case ReasonTerminated:
		return "terminated"
	case ReasonTimeExpired:
		return "time expired"
	case ReasonRotateFailed:
		return "rotation failed"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Err maps the reason to its sentinel error.
func (r Reason) Err() error {
	switch r {
	case ReasonLinkClosed:
		return core.ErrReceiveEnded
	case ReasonLimitReached, ReasonTimeExpired:
		return core.ErrLimitReached
	case ReasonSinkError, ReasonRotateFailed:
		return core.ErrSink
	case ReasonTerminated:
		return core.ErrTerminated
	default:
		return nil
	}
}

// Result summarizes a finished capture.
type Result struct {
	Packets   uint64
	Bytes     uint64
	Rotations int
	Reason    Reason
	// Err is the failure behind the stop, if any: a receive, write, poll or
	// reopen error.
	Err error
}

// Options configures a Controller.
type Options struct {
	Locator      string
	Target       sink.Target
	Limits       Limits
	Quiet        bool
	PollInterval time.Duration

	// Signals defaults to a fresh latch nobody raises but the time limit.
	Signals *Signals
	// Poller defaults to NewPoller().
	Poller Poller
	// Dial defaults to link.Open.
	Dial func(locator string) (link.Link, error)
	// Progress defaults to NewProgress(os.Stderr, Quiet).
	Progress *Progress
}

// Controller owns the link and the sink for the duration of a capture.
type Controller struct {
	opts     Options
	link     link.Link
	sink     sink.Sink
	session  Session
	rotated  int
	buf      []byte
	signals  *Signals
	poller   Poller
	progress *Progress
	now      func() time.Time
	logger   log.Logger
}

// New connects to the link, then opens the sink. Either failure is a startup
// error and leaves nothing open.
func New(opts Options) (*Controller, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Signals == nil {
		opts.Signals = NewSignals()
	}
	if opts.Poller == nil {
		opts.Poller = NewPoller()
	}
	if opts.Dial == nil {
		opts.Dial = link.Open
	}
	if opts.Progress == nil {
		opts.Progress = NewProgress(os.Stderr, opts.Quiet)
	}

	logger := log.GetLogger().WithFields(map[string]interface{}{
		"link":   opts.Locator,
		"output": opts.Target.Path,
	})

	l, err := opts.Dial(opts.Locator)
	if err != nil {
		return nil, err
	}
	s, err := opts.Target.Open()
	if err != nil {
		l.Close()
		return nil, err
	}
	logger.Debugf("capture started, append=%t", opts.Target.Append)

	return &Controller{
		opts:     opts,
		link:     l,
		sink:     s,
		session:  Session{Bytes: uint64(s.HeaderBytes())},
		buf:      make([]byte, link.MaxFrameLen),
		signals:  opts.Signals,
		poller:   opts.Poller,
		progress: opts.Progress,
		now:      time.Now,
		logger:   logger,
	}, nil
}

// Run captures until a stop condition and releases the link and the sink.
// Cancelling ctx acts like a terminate request.
func (c *Controller) Run(ctx context.Context) Result {
	disarm := c.signals.ExpireAfter(c.opts.Limits.MaxDuration)
	defer disarm()

	reason, err := c.loop(ctx)
	c.shutdown()

	res := Result{
		Packets:   c.session.Packets,
		Bytes:     c.session.Bytes,
		Rotations: c.rotated,
		Reason:    reason,
		Err:       err,
	}
	entry := c.logger.WithFields(map[string]interface{}{
		"packets":   res.Packets,
		"bytes":     res.Bytes,
		"rotations": res.Rotations,
		"reason":    reason.String(),
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Info("capture finished")
	return res
}

func (c *Controller) loop(ctx context.Context) (Reason, error) {
	for !c.signals.Terminating() && ctx.Err() == nil {
		ready, err := c.poller.Wait(c.link.Fd(), c.sink.Fd(), c.opts.PollInterval)
		if err != nil {
			return ReasonLinkClosed, fmt.Errorf("poll: %w", err)
		}

		switch {
		case ready.Link:
			if stop, reason, err := c.receive(); stop {
				return reason, err
			}
		case ready.SinkErr:
			return ReasonSinkError, fmt.Errorf("%w: error condition on output", core.ErrSink)
		default:
			if err := c.sink.Flush(); err != nil {
				return ReasonSinkError, err
			}
		}

		if c.signals.Terminating() || ctx.Err() != nil {
			return ReasonTerminated, nil
		}
		if c.signals.Expired() {
			return ReasonTimeExpired, nil
		}
		if c.signals.TakeRotate() {
			if err := c.rotate(); err != nil {
				return ReasonRotateFailed, err
			}
		}
	}
	return ReasonTerminated, nil
}

// receive moves one frame from the link to the sink.
func (c *Controller) receive() (stop bool, reason Reason, err error) {
	n, err := c.link.Recv(c.buf)
	if err != nil {
		return true, ReasonLinkClosed, err
	}
	if n <= 0 {
		return true, ReasonLinkClosed, nil
	}
	ts := c.now()

	if !c.opts.Limits.Admit(c.session, n) {
		c.logger.Debugf("frame of %d bytes not admitted", n)
		return true, ReasonLimitReached, nil
	}
	written, err := pcapfile.WriteRecord(c.sink, ts, c.buf[:n])
	if err != nil {
		return true, ReasonSinkError, err
	}

	c.session.Packets++
	c.session.Bytes += uint64(written)
	c.progress.Update(c.session.Packets)

	if c.opts.Limits.CountReached(c.session) {
		return true, ReasonLimitReached, nil
	}
	return false, 0, nil
}

func (c *Controller) rotate() error {
	if !c.sink.Rotatable() {
		c.logger.Debug("rotation requested on standard output, ignored")
		return nil
	}
	s, err := c.opts.Target.Reopen(c.sink)
	if err != nil {
		c.sink = nil
		c.logger.WithError(err).Error("cannot reopen output, stopping capture")
		return err
	}
	c.sink = s
	c.rotated++
	c.session.Bytes += uint64(s.HeaderBytes())
	c.logger.WithField("rotations", c.rotated).Info("output reopened")
	return nil
}

func (c *Controller) shutdown() {
	if c.sink != nil {
		if err := c.sink.Close(); err != nil {
			c.logger.WithError(err).Warn("closing output")
		}
		c.sink = nil
	}
	if err := c.link.Close(); err != nil {
		c.logger.WithError(err).Warn("closing link")
	}
	c.progress.Finish()
}
