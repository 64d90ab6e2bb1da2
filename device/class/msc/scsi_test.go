package msc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInquiryResponseMarshalTo(t *testing.T) {
	resp := NewInquiryResponse(DeviceTypeDisk, true, "usbmsc", "Virtual Disk", "1.0")
	buf := make([]byte, InquiryStandardSize)
	n := resp.MarshalTo(buf)
	require.Equal(t, InquiryStandardSize, n)

	assert.Equal(t, byte(DeviceTypeDisk), buf[0])
	assert.Equal(t, byte(InquiryRMB), buf[1])
	assert.Equal(t, byte(InquiryVersionSPC2), buf[2])
	assert.Equal(t, "usbmsc  ", string(buf[8:16]))
	assert.Equal(t, "Virtual Disk    ", string(buf[16:32]))
	assert.Equal(t, "1.0 ", string(buf[32:36]))
}

func TestInquiryResponseNotRemovable(t *testing.T) {
	resp := NewInquiryResponse(DeviceTypeDisk, false, "v", "p", "r")
	assert.Equal(t, uint8(0), resp.RMB)
}

func TestUnitSerialInquiryResponseMarshalTo(t *testing.T) {
	resp := NewUnitSerialInquiryResponse(DeviceTypeDisk, "000000000001")
	buf := make([]byte, 64)
	n := resp.MarshalTo(buf)
	require.Equal(t, 4+len("000000000001"), n)
	assert.Equal(t, byte(VPDPageUnitSerialNumber), buf[1])
	assert.Equal(t, "000000000001", string(buf[4:n]))
}

func TestRequestSenseResponseMarshalTo(t *testing.T) {
	resp := NewRequestSenseResponse(SenseMediumError, ASCLBAOutOfRange, 0x01)
	buf := make([]byte, 18)
	n := resp.MarshalTo(buf)
	require.Equal(t, 18, n)

	assert.Equal(t, byte(0x70), buf[0])
	assert.Equal(t, byte(SenseMediumError), buf[2]&0x0F)
	assert.Equal(t, byte(ASCLBAOutOfRange), buf[12])
	assert.Equal(t, byte(0x01), buf[13])
}

func TestReadCapacity10ResponseMarshalTo(t *testing.T) {
	resp := ReadCapacity10Response{LastLBA: 0x0102_0304, BlockLength: 512}
	buf := make([]byte, 8)
	n := resp.MarshalTo(buf)
	require.Equal(t, 8, n)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, buf[0:4])
	assert.Equal(t, uint32(512), uint32(buf[4])<<24|uint32(buf[5])<<16|uint32(buf[6])<<8|uint32(buf[7]))
}

func TestReadCapacity16ResponseMarshalTo(t *testing.T) {
	resp := ReadCapacity16Response{LastLBA: 0xFFFFFFFF, BlockLength: 4096}
	buf := make([]byte, 32)
	n := resp.MarshalTo(buf)
	require.Equal(t, 32, n)
	assert.Equal(t, []byte{0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF}, buf[0:8])
}

func TestCurrentMaximumCapacityDescriptorMarshalTo(t *testing.T) {
	d := CurrentMaximumCapacityDescriptor{BlockCount: 2048, DescType: 0x02, BlockLength: 512}
	buf := make([]byte, 8)
	n := d.MarshalTo(buf)
	require.Equal(t, 8, n)
	assert.Equal(t, byte(0x02), buf[4])
	assert.Equal(t, byte(512>>8), buf[6])
}

func TestPadString(t *testing.T) {
	assert.Equal(t, []byte("ab  "), padString("ab", 4))
	assert.Equal(t, []byte("abcd"), padString("abcdef", 4))
}
