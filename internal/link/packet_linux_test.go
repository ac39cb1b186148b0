//go:build linux

package link

import (
	"encoding/binary"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestHtons(t *testing.T) {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], htons(unix.ETH_P_ALL))
	assert.Equal(t, []byte{0x00, 0x03}, b[:], "ETH_P_ALL in memory must be big-endian")

	binary.NativeEndian.PutUint16(b[:], htons(0x0800))
	assert.Equal(t, []byte{0x08, 0x00}, b[:])
}

func TestOpenPacketErrors(t *testing.T) {
	for _, raw := range []string{"packet://", "packet://no-such-iface0", "packet://lo?promisc=maybe"} {
		t.Run(raw, func(t *testing.T) {
			loc, err := url.Parse(raw)
			assert.NoError(t, err)
			l, err := openPacket(loc)
			assert.Nil(t, l)
			assert.Error(t, err)
		})
	}
}
