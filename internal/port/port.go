// Package port models one 8-bit megaAVR-0 style I/O port as a register map.
// It stands in for memory-mapped PORTx registers when the reflector runs
// without real silicon (the sim backend and tests).
package port

import "sync"

// Register offsets from the port base address.
const (
	DIR    uint8 = 0x00
	DIRSET uint8 = 0x01
	DIRCLR uint8 = 0x02
	DIRTGL uint8 = 0x03
	OUT    uint8 = 0x04
	OUTSET uint8 = 0x05
	OUTCLR uint8 = 0x06
	OUTTGL uint8 = 0x07
	IN     uint8 = 0x08
)

// Base addresses of the ports on an ATmega4809.
const (
	BasePORTA uint16 = 0x0400
	BasePORTB uint16 = 0x0420
	BasePORTC uint16 = 0x0440
)

// Pin returns the bit mask for pin n (PINn_bm).
func Pin(n uint) uint8 {
	return 1 << (n & 7)
}

// Port is a register-level model of a single I/O port.
// Safe for concurrent use.
type Port struct {
	name string
	base uint16

	mu   sync.Mutex
	dir  uint8
	out  uint8
	ext  uint8 // levels driven onto the pins from outside
	hook func(Access)
}

// Access describes a single register read or write.
type Access struct {
	Reg   uint8
	Value uint8
	Write bool
}

// New returns a port with every pin configured as an input, output latch
// cleared, and all externally driven levels low.
func New(name string, base uint16) *Port {
	return &Port{name: name, base: base}
}

// Name returns the port name, e.g. "PORTB".
func (p *Port) Name() string { return p.name }

// Addr returns the absolute address of a register.
func (p *Port) Addr(reg uint8) uint16 { return p.base + uint16(reg) }

// OnAccess installs fn to be called for every register access.
// Pass nil to remove it. fn must not call back into the port.
func (p *Port) OnAccess(fn func(Access)) {
	p.mu.Lock()
	p.hook = fn
	p.mu.Unlock()
}

// Read returns the value of a register. IN reflects the output latch
// for output pins and the external level for input pins.
func (p *Port) Read(reg uint8) uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()

	var v uint8
	switch reg {
	case DIR, DIRSET, DIRCLR, DIRTGL:
		v = p.dir
	case OUT, OUTSET, OUTCLR, OUTTGL:
		v = p.out
	case IN:
		v = p.in()
	}
	if p.hook != nil {
		p.hook(Access{Reg: reg, Value: v})
	}
	return v
}

// Write stores v into a register, applying strobe semantics for the
// SET/CLR/TGL registers. Writing a 1 to an IN bit toggles OUT.
func (p *Port) Write(reg, v uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch reg {
	case DIR:
		p.dir = v
	case DIRSET:
		p.dir |= v
	case DIRCLR:
		p.dir &^= v
	case DIRTGL:
		p.dir ^= v
	case OUT:
		p.out = v
	case OUTSET:
		p.out |= v
	case OUTCLR:
		p.out &^= v
	case OUTTGL, IN:
		p.out ^= v
	}
	if p.hook != nil {
		p.hook(Access{Reg: reg, Value: v, Write: true})
	}
}

// Drive sets the external level on the pins in mask. It has no visible
// effect on pins configured as outputs until they are turned back into
// inputs.
func (p *Port) Drive(mask uint8, high bool) {
	p.mu.Lock()
	if high {
		p.ext |= mask
	} else {
		p.ext &^= mask
	}
	p.mu.Unlock()
}

// Level reports whether any pin in mask currently reads high.
func (p *Port) Level(mask uint8) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.in()&mask != 0
}

func (p *Port) in() uint8 {
	return p.out&p.dir | p.ext&^p.dir
}
