package capture

import (
	"time"

	"firestige.xyz/vdecapture/internal/pcapfile"
)

// Session holds the cumulative counters of a capture run. Bytes counts every
// byte this run emitted: global headers it wrote plus whole records.
type Session struct {
	Packets uint64
	Bytes   uint64
}

// Limits are the ceilings of a capture run. Zero means unbounded.
type Limits struct {
	MaxCount    uint64
	MaxBytes    uint64
	MaxDuration time.Duration
}

// Admit reports whether a frame of incoming bytes may still be written.
// The byte ceiling is soft: it is checked against the prospective total
// before the write and nothing already written is ever cut back.
func (l Limits) Admit(s Session, incoming int) bool {
	if l.MaxCount > 0 && s.Packets >= l.MaxCount {
		return false
	}
	if l.MaxBytes > 0 && s.Bytes+uint64(pcapfile.RecordLen(incoming)) > l.MaxBytes {
		return false
	}
	return true
}

// CountReached reports whether the packet ceiling has been met, so the loop
// can stop right after the last admitted record instead of reading another.
func (l Limits) CountReached(s Session) bool {
	return l.MaxCount > 0 && s.Packets >= l.MaxCount
}
