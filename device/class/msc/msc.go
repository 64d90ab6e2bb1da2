package msc

import (
	"context"
	"encoding/binary"
	"sync"

	"usbmsc/device"
	"usbmsc/pkg"
)

// Config carries the descriptor-facing identity and optional hooks for an
// MSC driver instance. Zero value is valid: defaults match the reference
// vendor/product strings this driver was ported from.
type Config struct {
	VendorID  string // Up to 8 ASCII characters, space-padded
	ProductID string // Up to 16 ASCII characters, space-padded
	Revision  string // Up to 4 ASCII characters, space-padded
	Serial    string // Unit serial number, at least 12 characters recommended

	// OnActivity, if set, is called with true when a READ(10)/WRITE(10)
	// begins and false when it ends (success or failure). Called
	// synchronously from the worker task, never from HAL callback context.
	OnActivity func(active bool)
}

const (
	defaultVendorID  = "usbmsc  "
	defaultProductID = "Mass Storage    "
	defaultRevision  = "1.0"
	defaultSerial    = "000000000001"
)

func (c Config) withDefaults() Config {
	if c.VendorID == "" {
		c.VendorID = defaultVendorID
	}
	if c.ProductID == "" {
		c.ProductID = defaultProductID
	}
	if c.Revision == "" {
		c.Revision = defaultRevision
	}
	if c.Serial == "" {
		c.Serial = defaultSerial
	}
	return c
}

// MSC implements the Mass Storage Class Bulk-Only Transport driver.
type MSC struct {
	// Interface
	iface *device.Interface

	// Endpoints
	bulkInEP  *device.Endpoint // Bulk IN (device to host)
	bulkOutEP *device.Endpoint // Bulk OUT (host to device)

	// Stack reference for data transfer
	stack *device.Stack

	// Storage backend
	storage Storage

	config Config

	// Device information
	inquiry    InquiryResponse
	unitSerial UnitSerialInquiryResponse

	// BOT state machine
	state botState

	// Current command state
	currentCBW  CommandBlockWrapper
	currentTag  uint32
	dataResidue uint32

	// Sense data (for REQUEST SENSE)
	senseKey uint8
	asc      uint8
	ascq     uint8

	// Buffers (zero-allocation pattern). dataBuf backs fixed-shape
	// responses (INQUIRY, capacity, mode sense); senseBuf backs REQUEST
	// SENSE; rwBuf is the
	// double-buffered read/write pipeline, sized to the backend's block
	// size the first time a storage backend is attached.
	cbwBuf   [CBWSize]byte
	cswBuf   [CSWSize]byte
	dataBuf  [MaxTransferSize]byte
	senseBuf [18]byte
	rwBuf    [2][]byte

	// Event publishers
	connected broadcaster
	ejected   broadcaster

	// State
	mutex      sync.RWMutex
	configured bool

	// Logical Unit Number (typically 0)
	maxLUN uint8
}

// New creates a new MSC class driver with the given storage backend and
// descriptor configuration.
func New(storage Storage, cfg Config) *MSC {
	cfg = cfg.withDefaults()

	m := &MSC{
		storage: storage,
		config:  cfg,
		maxLUN:  0, // Single LUN by default
		state:   stateIdle,
	}

	blockSize := storage.BlockSize()
	m.rwBuf[0] = make([]byte, blockSize)
	m.rwBuf[1] = make([]byte, blockSize)

	m.inquiry = *NewInquiryResponse(
		DeviceTypeDisk,
		true, // presented to the host as removable regardless of backend
		cfg.VendorID,
		cfg.ProductID,
		cfg.Revision,
	)
	m.unitSerial = *NewUnitSerialInquiryResponse(DeviceTypeDisk, cfg.Serial)

	m.setSense(SenseNoSense, ASCNoAdditionalInfo, 0)

	return m
}

// SetStack sets the device stack reference for data transfer.
func (m *MSC) SetStack(stack *device.Stack) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.stack = stack
}

// SetMaxLUN sets the maximum Logical Unit Number (0-15).
func (m *MSC) SetMaxLUN(lun uint8) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if lun <= 15 {
		m.maxLUN = lun
	}
}

// Init initializes the class driver for the given interface.
func (m *MSC) Init(iface *device.Interface) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.iface = iface

	// Find bulk endpoints
	for _, ep := range iface.Endpoints() {
		if ep.IsBulk() {
			if ep.IsIn() {
				m.bulkInEP = ep
			} else {
				m.bulkOutEP = ep
			}
		}
	}

	if m.bulkInEP == nil || m.bulkOutEP == nil {
		return pkg.ErrInvalidEndpoint
	}

	m.configured = true
	pkg.LogDebug(pkg.ComponentMSC, "MSC configured",
		"bulkIn", m.bulkInEP.Address,
		"bulkOut", m.bulkOutEP.Address)

	m.connected.Fire()

	return nil
}

// HandleSetup processes class-specific SETUP requests.
func (m *MSC) HandleSetup(iface *device.Interface, setup *device.SetupPacket, data []byte) (bool, error) {
	if !setup.IsClass() {
		return false, nil
	}

	switch setup.Request {
	case RequestBulkOnlyMassStorageReset:
		return m.handleReset(setup)

	case RequestGetMaxLUN:
		return m.handleGetMaxLUN(setup, data)

	default:
		return false, nil
	}
}

// handleReset handles the Bulk-Only Mass Storage Reset request. Per the
// Bulk-Only Transport spec, the device must clear any stall condition on
// both bulk endpoints, discard any transfer in flight, reset sense data,
// and return the BOT state machine to Idle before the control status stage
// completes.
func (m *MSC) handleReset(setup *device.SetupPacket) (bool, error) {
	pkg.LogDebug(pkg.ComponentMSC, "MSC reset requested")

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.bulkInEP != nil {
		if m.stack != nil {
			m.stack.CancelTransfers(m.bulkInEP.Address)
		}
		m.bulkInEP.SetStall(false)
		m.bulkInEP.ResetDataToggle()
	}
	if m.bulkOutEP != nil {
		if m.stack != nil {
			m.stack.CancelTransfers(m.bulkOutEP.Address)
		}
		m.bulkOutEP.SetStall(false)
		m.bulkOutEP.ResetDataToggle()
	}

	m.setSense(SenseNoSense, ASCNoAdditionalInfo, 0)
	m.state = stateIdle
	m.ejected.reset()

	return true, nil
}

// handleGetMaxLUN handles the Get Max LUN request.
func (m *MSC) handleGetMaxLUN(setup *device.SetupPacket, data []byte) (bool, error) {
	m.mutex.RLock()
	maxLUN := m.maxLUN
	m.mutex.RUnlock()

	pkg.LogDebug(pkg.ComponentMSC, "Get Max LUN",
		"maxLUN", maxLUN)

	if len(data) > 0 {
		data[0] = maxLUN
	}

	return true, nil
}

// SetAlternate handles alternate setting changes.
func (m *MSC) SetAlternate(iface *device.Interface, alt uint8) error {
	pkg.LogDebug(pkg.ComponentMSC, "MSC alternate setting",
		"interface", iface.Number,
		"alt", alt)
	return nil
}

// Close releases resources held by the class driver.
func (m *MSC) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.iface = nil
	m.bulkInEP = nil
	m.bulkOutEP = nil
	m.stack = nil
	m.configured = false

	return nil
}

// setSense sets sense data for the next REQUEST SENSE command.
func (m *MSC) setSense(key, asc, ascq uint8) {
	m.senseKey = key
	m.asc = asc
	m.ascq = ascq
}

// Connected returns a channel that closes once the host has configured this
// interface.
func (m *MSC) Connected() <-chan struct{} {
	return m.connected.Subscribe()
}

// Ejected returns a channel that closes once the medium has been ejected via
// START STOP UNIT.
func (m *MSC) Ejected() <-chan struct{} {
	return m.ejected.Subscribe()
}

// ConfigureDevice adds the MSC interface to a device builder.
func (m *MSC) ConfigureDevice(builder *device.DeviceBuilder, bulkInEPAddr, bulkOutEPAddr uint8) *device.DeviceBuilder {
	builder.AddInterface(ClassMSC, SubclassSCSI, ProtocolBulkOnly)
	builder.AddEndpoint(bulkInEPAddr|device.EndpointDirectionIn, device.EndpointTypeBulk, 64)
	builder.AddEndpoint(bulkOutEPAddr&0x0F, device.EndpointTypeBulk, 64)
	return builder
}

// AttachToInterface attaches this class driver to the MSC interface.
func (m *MSC) AttachToInterface(dev *device.Device, configValue, ifaceNum uint8) error {
	config := dev.GetConfiguration(configValue)
	if config == nil {
		return pkg.ErrInvalidRequest
	}

	iface := config.GetInterface(ifaceNum)
	if iface == nil {
		return pkg.ErrInvalidRequest
	}

	return iface.SetClassDriver(m)
}

// Run is the main processing loop for MSC.
// It reads CBWs, processes SCSI commands, and sends CSWs.
// This should be called in a goroutine after the device is configured.
func (m *MSC) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		m.mutex.RLock()
		ejected := m.state == stateEjected
		m.mutex.RUnlock()
		if ejected {
			return nil
		}

		if err := m.processCBW(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			pkg.LogWarn(pkg.ComponentMSC, "CBW processing error",
				"error", err)
		}
	}
}

// processCBW reads and processes a Command Block Wrapper.
func (m *MSC) processCBW(ctx context.Context) error {
	m.mutex.RLock()
	stack := m.stack
	ep := m.bulkOutEP
	inEP := m.bulkInEP
	configured := m.configured
	m.mutex.RUnlock()

	if !configured || stack == nil || ep == nil {
		return pkg.ErrNotConfigured
	}

	m.mutex.Lock()
	m.state = m.state.transition(stateReadCommandBlock)
	m.mutex.Unlock()

	n, err := stack.Read(ctx, ep, m.cbwBuf[:])
	if err != nil {
		m.mutex.Lock()
		if m.state == stateReadCommandBlock {
			m.state = m.state.transition(stateIdle)
		}
		m.mutex.Unlock()
		return err
	}

	if n != CBWSize || !ParseCBW(m.cbwBuf[:n], &m.currentCBW) {
		pkg.LogWarn(pkg.ComponentMSC, "malformed command block wrapper", "bytes", n)
		ep.SetStall(true)
		if inEP != nil {
			inEP.SetStall(true)
		}
		m.mutex.Lock()
		m.state = m.state.transition(stateIdle)
		m.mutex.Unlock()
		return pkg.ErrMalformedCBW
	}

	m.currentTag = m.currentCBW.Tag

	pkg.LogDebug(pkg.ComponentMSC, "CBW received",
		"tag", m.currentCBW.Tag,
		"dataLen", m.currentCBW.DataTransferLength,
		"flags", m.currentCBW.Flags,
		"lun", m.currentCBW.LUN,
		"cbLen", m.currentCBW.CBLength,
		"opcode", m.currentCBW.CB[0])

	status, residue := m.handleSCSICommand(ctx, &m.currentCBW)

	// A command that fails before any requested IN data reaches the host
	// leaves the host still expecting a data-in phase; stall the bulk-IN
	// pipe so the host's CLEAR_FEATURE recovers the pipe before it reads
	// the CSW, rather than handing it a CSW where a data phase was due.
	dataLen := m.currentCBW.DataTransferLength
	if status != CSWStatusGood && dataLen > 0 && m.currentCBW.IsDataIn() && residue == dataLen && inEP != nil {
		inEP.SetStall(true)
	}

	m.mutex.Lock()
	ejecting := m.state == stateEjected
	if !ejecting {
		m.state = m.state.transition(stateIdle)
	}
	m.mutex.Unlock()

	return m.sendCSW(ctx, status, residue)
}

// sendCSW sends a Command Status Wrapper.
func (m *MSC) sendCSW(ctx context.Context, status uint8, residue uint32) error {
	m.mutex.RLock()
	stack := m.stack
	ep := m.bulkInEP
	m.mutex.RUnlock()

	if stack == nil || ep == nil {
		return pkg.ErrNotConfigured
	}

	csw := NewCSW(m.currentTag, residue, status)
	n := csw.MarshalTo(m.cswBuf[:])

	_, err := stack.Write(ctx, ep, m.cswBuf[:n])
	if err != nil {
		return err
	}

	pkg.LogDebug(pkg.ComponentMSC, "CSW sent",
		"tag", csw.Tag,
		"residue", residue,
		"status", status)

	return nil
}

// parseU16BE parses a big-endian uint16 from data at offset.
func parseU16BE(data []byte, offset int) uint16 {
	if offset+2 > len(data) {
		return 0
	}
	return binary.BigEndian.Uint16(data[offset:])
}

// parseU32BE parses a big-endian uint32 from data at offset.
func parseU32BE(data []byte, offset int) uint32 {
	if offset+4 > len(data) {
		return 0
	}
	return binary.BigEndian.Uint32(data[offset:])
}

// parseU64BE parses a big-endian uint64 from data at offset.
func parseU64BE(data []byte, offset int) uint64 {
	if offset+8 > len(data) {
		return 0
	}
	return binary.BigEndian.Uint64(data[offset:])
}

// Compile-time interface check
var _ device.ClassDriver = (*MSC)(nil)
