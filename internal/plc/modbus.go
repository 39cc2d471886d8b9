package plc

import (
	"encoding/binary"
	"errors"
	"net"
	"time"

	"github.com/goburrow/modbus"
)

// Modbus port defaults.
const (
	defaultModbusTimeout = 3 * time.Second
	defaultModbusUnitID  = 3

	coilOn  = 0xFF00
	coilOff = 0x0000

	minWordValue = -32768
	maxWordValue = 65535
)

// ModbusConfig configures a ModbusPort.
type ModbusConfig struct {
	// Endpoint is host:port of the controller's Modbus TCP interface.
	Endpoint string

	// UnitID is the Modbus slave id (the controller station number).
	UnitID byte

	// Timeout bounds every request including the initial dial.
	Timeout time.Duration

	// Addresses maps device letters onto Modbus tables.
	// Nil uses DefaultAddressMap.
	Addresses AddressMap
}

// ModbusPort is a Port that reaches the controller through Modbus TCP.
// Word devices are read as signed 16-bit values.
type ModbusPort struct {
	cfg      ModbusConfig
	handler  *modbus.TCPClientHandler
	client   modbus.Client
	open     bool
	resolved map[string]Address
}

// NewModbusPort creates a closed port.
func NewModbusPort(cfg ModbusConfig) *ModbusPort {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultModbusTimeout
	}
	if cfg.UnitID == 0 {
		cfg.UnitID = defaultModbusUnitID
	}
	if cfg.Addresses == nil {
		cfg.Addresses = DefaultAddressMap()
	}
	return &ModbusPort{
		cfg:      cfg,
		resolved: make(map[string]Address),
	}
}

// Open implements Port.
func (p *ModbusPort) Open() Status {
	if p.open {
		return StatusAlreadyOpen
	}

	h := modbus.NewTCPClientHandler(p.cfg.Endpoint)
	h.Timeout = p.cfg.Timeout
	h.SlaveId = p.cfg.UnitID

	if err := h.Connect(); err != nil {
		if st := statusFromError(err); st == StatusTimeout {
			return st
		}
		return StatusLinkFailure
	}

	p.handler = h
	p.client = modbus.NewClient(h)
	p.open = true
	return StatusOK
}

// Close implements Port.
func (p *ModbusPort) Close() Status {
	if !p.open {
		return StatusNotOpen
	}
	_ = p.handler.Close() //nolint:errcheck // the socket is discarded either way
	p.handler = nil
	p.client = nil
	p.open = false
	return StatusOK
}

// ReadRegister implements Port.
func (p *ModbusPort) ReadRegister(address string) (int, Status) {
	if !p.open {
		return 0, StatusNotOpen
	}
	addr, st := p.resolve(address)
	if !st.OK() {
		return 0, st
	}

	var (
		b   []byte
		err error
	)
	switch addr.Area {
	case AreaCoil:
		b, err = p.client.ReadCoils(addr.Offset, 1)
	case AreaDiscreteInput:
		b, err = p.client.ReadDiscreteInputs(addr.Offset, 1)
	case AreaHoldingRegister:
		b, err = p.client.ReadHoldingRegisters(addr.Offset, 1)
	case AreaInputRegister:
		b, err = p.client.ReadInputRegisters(addr.Offset, 1)
	}
	if err != nil {
		return 0, statusFromError(err)
	}

	if addr.Area.IsBit() {
		if len(b) < 1 {
			return 0, StatusSyncError
		}
		return int(b[0] & 0x01), StatusOK
	}
	if len(b) < 2 {
		return 0, StatusSyncError
	}
	return int(int16(binary.BigEndian.Uint16(b))), StatusOK //nolint:gosec // word devices are signed
}

// WriteRegister implements Port.
func (p *ModbusPort) WriteRegister(address string, value int) Status {
	if !p.open {
		return StatusNotOpen
	}
	addr, st := p.resolve(address)
	if !st.OK() {
		return st
	}
	if !addr.Area.Writable() {
		return StatusRejected
	}

	var err error
	if addr.Area == AreaCoil {
		switch value {
		case 0:
			_, err = p.client.WriteSingleCoil(addr.Offset, coilOff)
		case 1:
			_, err = p.client.WriteSingleCoil(addr.Offset, coilOn)
		default:
			return StatusValueOutOfRange
		}
	} else {
		if value < minWordValue || value > maxWordValue {
			return StatusValueOutOfRange
		}
		_, err = p.client.WriteSingleRegister(addr.Offset, uint16(value)) //nolint:gosec // range checked above
	}
	if err != nil {
		return statusFromError(err)
	}
	return StatusOK
}

func (p *ModbusPort) resolve(address string) (Address, Status) {
	if addr, ok := p.resolved[address]; ok {
		return addr, StatusOK
	}
	addr, err := p.cfg.Addresses.Resolve(address)
	if err != nil {
		return Address{}, StatusInvalidAddress
	}
	p.resolved[address] = addr
	return addr, StatusOK
}

// statusFromError classifies a transport error.
// Modbus exception responses mean the link is fine but the request was refused.
func statusFromError(err error) Status {
	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		return StatusRejected
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusTimeout
	}
	return StatusLinkFailure
}
