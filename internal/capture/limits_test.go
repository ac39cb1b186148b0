package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitsAdmit(t *testing.T) {
	tests := []struct {
		name     string
		limits   Limits
		session  Session
		incoming int
		want     bool
	}{
		{"unbounded", Limits{}, Session{Packets: 1e6, Bytes: 1 << 40}, 65535, true},
		{"under count", Limits{MaxCount: 3}, Session{Packets: 2}, 10, true},
		{"count met", Limits{MaxCount: 3}, Session{Packets: 3}, 10, false},
		{"exactly at byte ceiling", Limits{MaxBytes: 100}, Session{Bytes: 24}, 60, true},
		{"one past byte ceiling", Limits{MaxBytes: 100}, Session{Bytes: 24}, 61, false},
		{"record header counts", Limits{MaxBytes: 40}, Session{Bytes: 24}, 1, false},
		{"both, bytes bind", Limits{MaxCount: 10, MaxBytes: 200}, Session{Packets: 2, Bytes: 176}, 60, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.limits.Admit(tt.session, tt.incoming))
		})
	}
}

func TestLimitsCountReached(t *testing.T) {
	assert.False(t, Limits{}.CountReached(Session{Packets: 1 << 32}))
	assert.False(t, Limits{MaxCount: 2}.CountReached(Session{Packets: 1}))
	assert.True(t, Limits{MaxCount: 2}.CountReached(Session{Packets: 2}))
}

// Whatever the frame sizes, admitted records never push the total over the
// ceiling, and the first rejected frame would have.
func TestLimitsByteCeilingNeverExceeded(t *testing.T) {
	sizes := []int{60, 1500, 64, 9000, 1, 300, 65535, 42}
	for _, ceiling := range []uint64{24, 100, 1700, 5000, 80000} {
		l := Limits{MaxBytes: ceiling}
		s := Session{Bytes: 24}
		for _, n := range sizes {
			if !l.Admit(s, n) {
				assert.Greater(t, s.Bytes+uint64(16+n), ceiling)
				break
			}
			s.Packets++
			s.Bytes += uint64(16 + n)
			assert.LessOrEqual(t, s.Bytes, ceiling)
		}
	}
}
