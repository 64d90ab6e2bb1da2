package msc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCBWBytes() []byte {
	buf := make([]byte, CBWSize)
	buf[0], buf[1], buf[2], buf[3] = 0x55, 0x53, 0x42, 0x43 // "USBC" little-endian
	buf[4] = 0x01                                           // tag
	buf[12] = CBWFlagDataIn
	buf[13] = 0x00 // LUN
	buf[14] = 0x06 // CBLength
	buf[15] = SCSIInquiry
	return buf
}

func TestParseCBWValid(t *testing.T) {
	var cbw CommandBlockWrapper
	ok := ParseCBW(validCBWBytes(), &cbw)
	require.True(t, ok)
	assert.Equal(t, uint32(CBWSignature), cbw.Signature)
	assert.Equal(t, uint32(1), cbw.Tag)
	assert.Equal(t, uint8(0), cbw.LUN)
	assert.Equal(t, uint8(6), cbw.CBLength)
	assert.Equal(t, byte(SCSIInquiry), cbw.CB[0])
}

func TestParseCBWTooShort(t *testing.T) {
	var cbw CommandBlockWrapper
	ok := ParseCBW(validCBWBytes()[:CBWSize-1], &cbw)
	assert.False(t, ok)
}

func TestParseCBWBadSignature(t *testing.T) {
	buf := validCBWBytes()
	buf[0] = 0x00
	var cbw CommandBlockWrapper
	assert.False(t, ParseCBW(buf, &cbw))
}

func TestParseCBWNonzeroLUN(t *testing.T) {
	buf := validCBWBytes()
	buf[13] = 0x01
	var cbw CommandBlockWrapper
	assert.False(t, ParseCBW(buf, &cbw))
}

func TestParseCBWBadCBLength(t *testing.T) {
	for _, length := range []byte{0, 17, 31} {
		buf := validCBWBytes()
		buf[14] = length
		var cbw CommandBlockWrapper
		assert.False(t, ParseCBW(buf, &cbw), "CBLength=%d should be rejected", length)
	}
}

func TestParseCBWReservedFlagsWithDataPhase(t *testing.T) {
	buf := validCBWBytes()
	buf[8] = 0x01                      // nonzero data transfer length
	buf[12] = CBWFlagDataIn | 0x01     // direction bit plus a reserved low bit set
	var cbw CommandBlockWrapper
	assert.False(t, ParseCBW(buf, &cbw))
}

func TestCBWDirectionHelpers(t *testing.T) {
	in := CommandBlockWrapper{Flags: CBWFlagDataIn}
	out := CommandBlockWrapper{Flags: CBWFlagDataOut}
	assert.True(t, in.IsDataIn())
	assert.False(t, in.IsDataOut())
	assert.True(t, out.IsDataOut())
	assert.False(t, out.IsDataIn())
}

func TestCSWMarshalTo(t *testing.T) {
	csw := NewCSW(42, 7, CSWStatusFailed)
	buf := make([]byte, CSWSize)
	n := csw.MarshalTo(buf)
	require.Equal(t, CSWSize, n)
	assert.Equal(t, byte(0x55), buf[0])
	assert.Equal(t, byte(0x53), buf[1])
	assert.Equal(t, byte(0x42), buf[2])
	assert.Equal(t, byte(0x53), buf[3])
	assert.Equal(t, byte(42), buf[4])
	assert.Equal(t, byte(7), buf[8])
	assert.Equal(t, byte(CSWStatusFailed), buf[12])
}

func TestCSWMarshalToShortBuffer(t *testing.T) {
	csw := NewCSW(1, 0, CSWStatusGood)
	n := csw.MarshalTo(make([]byte, CSWSize-1))
	assert.Equal(t, 0, n)
}
