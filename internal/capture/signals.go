package capture

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/atomic"

	"firestige.xyz/vdecapture/internal/log"
)

// Signals latches asynchronous control requests until the capture loop
// reaches its safe point. Terminate and expired stay set once raised; rotate
// is cleared by TakeRotate.
type Signals struct {
	terminate atomic.Bool
	rotate    atomic.Bool
	expired   atomic.Bool
}

func NewSignals() *Signals {
	return &Signals{}
}

func (s *Signals) RequestTerminate() { s.terminate.Store(true) }
func (s *Signals) RequestRotate()    { s.rotate.Store(true) }
func (s *Signals) Expire()           { s.expired.Store(true) }

func (s *Signals) Terminating() bool { return s.terminate.Load() }
func (s *Signals) Expired() bool     { return s.expired.Load() }

// TakeRotate reports a pending rotate request and clears it.
func (s *Signals) TakeRotate() bool {
	return s.rotate.Swap(false)
}

// Notify routes process signals into the latch: SIGINT and SIGTERM request
// termination, SIGHUP requests rotation. SIGPIPE is caught and dropped, so a
// write to a standard output whose reader has gone fails with EPIPE instead of
// killing the process. The returned function stops the routing; it is safe to
// call more than once.
func (s *Signals) Notify(ctx context.Context) (stop func()) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGPIPE)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case sig := <-ch:
				s.deliver(sig)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}

func (s *Signals) deliver(sig os.Signal) {
	log.GetLogger().WithField("signal", sig.String()).Debug("control signal received")
	switch sig {
	case syscall.SIGPIPE:
	case syscall.SIGHUP:
		s.RequestRotate()
	default:
		s.RequestTerminate()
	}
}

// ExpireAfter raises the expired flag once d has elapsed. A non-positive d
// arms nothing. The returned function disarms the timer.
func (s *Signals) ExpireAfter(d time.Duration) (stop func()) {
	if d <= 0 {
		return func() {}
	}
	t := time.AfterFunc(d, s.Expire)
	return func() { t.Stop() }
}
