package msc

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"usbmsc/device"
	"usbmsc/device/hal"
)

// fakeHAL is a minimal in-memory hal.DeviceHAL, giving each data endpoint its
// own byte queue so Stack.Read/Write can be driven directly from a test
// without a real USB controller or a FIFO bus directory.
type fakeHAL struct {
	mutex     sync.Mutex
	connected bool
	buffers   map[uint8][]byte // per-address byte queue, drained by Read/written by Write
	stalled   map[uint8]bool
}

func newFakeHAL() *fakeHAL {
	return &fakeHAL{
		connected: true,
		buffers:   make(map[uint8][]byte),
		stalled:   make(map[uint8]bool),
	}
}

func (h *fakeHAL) Init(ctx context.Context) error                   { return nil }
func (h *fakeHAL) Start() error                                      { return nil }
func (h *fakeHAL) Stop() error                                       { return nil }
func (h *fakeHAL) SetAddress(address uint8) error                    { return nil }
func (h *fakeHAL) ConfigureEndpoints(eps []hal.EndpointConfig) error  { return nil }

func (h *fakeHAL) ReadSetup(ctx context.Context, out *hal.SetupPacket) error {
	<-ctx.Done()
	return ctx.Err()
}

func (h *fakeHAL) WriteEP0(ctx context.Context, data []byte) error      { return nil }
func (h *fakeHAL) ReadEP0(ctx context.Context, buf []byte) (int, error) { return 0, nil }
func (h *fakeHAL) StallEP0() error                                      { return nil }
func (h *fakeHAL) AckEP0() error                                        { return nil }

// queue appends bytes that a subsequent Read(address) will hand back,
// mirroring how the host's bulk OUT writes arrive.
func (h *fakeHAL) queue(address uint8, data []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.buffers[address] = append(h.buffers[address], data...)
}

func (h *fakeHAL) Read(ctx context.Context, address uint8, buf []byte) (int, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	data := h.buffers[address]
	n := copy(buf, data)
	h.buffers[address] = data[n:]
	return n, nil
}

// written returns everything staged for address via Write (what the device
// sent to the host on a bulk IN endpoint).
func (h *fakeHAL) written(address uint8) []byte {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.buffers[address]
}

func (h *fakeHAL) Write(ctx context.Context, address uint8, data []byte) (int, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.buffers[address] = append(h.buffers[address], data...)
	return len(data), nil
}

func (h *fakeHAL) Stall(address uint8) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.stalled[address] = true
	return nil
}

func (h *fakeHAL) ClearStall(address uint8) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.stalled[address] = false
	return nil
}

func (h *fakeHAL) isStalled(address uint8) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.stalled[address]
}

func (h *fakeHAL) IsConnected() bool                        { return h.connected }
func (h *fakeHAL) GetSpeed() hal.Speed                      { return hal.SpeedHigh }
func (h *fakeHAL) WaitConnect(ctx context.Context) error    { return nil }
func (h *fakeHAL) WaitDisconnect(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

const (
	testBulkInAddr  = 0x81
	testBulkOutAddr = 0x02
)

// newTestMSC assembles an MSC driver wired to a real device.Stack backed by
// fakeHAL, so handlers that call sendData/receiveData exercise the same
// Init/AttachToInterface path a real host-facing driver would.
func newTestMSC(t *testing.T, storage Storage, cfg Config) (*MSC, *fakeHAL) {
	t.Helper()

	dev := device.NewDevice(&device.DeviceDescriptor{MaxPacketSize0: 64})
	config := device.NewConfiguration(1)
	iface := device.NewInterface(&device.InterfaceDescriptor{InterfaceNumber: 0})
	inEP := &device.Endpoint{Address: testBulkInAddr, Attributes: device.EndpointTypeBulk, MaxPacketSize: 64}
	outEP := &device.Endpoint{Address: testBulkOutAddr, Attributes: device.EndpointTypeBulk, MaxPacketSize: 64}
	require.NoError(t, iface.AddEndpoint(inEP))
	require.NoError(t, iface.AddEndpoint(outEP))
	require.NoError(t, config.AddInterface(iface))
	require.NoError(t, dev.AddConfiguration(config))
	dev.Reset()
	require.NoError(t, dev.SetAddress(1))
	require.NoError(t, dev.SetConfiguration(1))

	fh := newFakeHAL()
	stack := device.NewStack(dev, fh)
	require.NoError(t, stack.Start(context.Background()))
	t.Cleanup(func() { stack.Stop() })

	m := New(storage, cfg)
	m.SetStack(stack)
	require.NoError(t, m.Init(iface))

	return m, fh
}

// sendCommand builds a CBW for opcode/cb and drives it through
// handleSCSICommand directly, returning status and residue. Handlers that
// need a data phase read/write against fh's in/out queues for
// testBulkInAddr/testBulkOutAddr.
func sendCommand(t *testing.T, m *MSC, opcode byte, cb [16]byte, dataLen uint32, dataIn bool) (uint8, uint32) {
	t.Helper()
	cb[0] = opcode
	flags := uint8(CBWFlagDataOut)
	if dataIn {
		flags = CBWFlagDataIn
	}
	cbw := CommandBlockWrapper{
		Signature:          CBWSignature,
		Tag:                1,
		DataTransferLength: dataLen,
		Flags:              flags,
		LUN:                0,
		CBLength:           16,
		CB:                 cb,
	}
	return m.handleSCSICommand(context.Background(), &cbw)
}
