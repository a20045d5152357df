// Package resource tokenizes VISA resource strings into a typed descriptor.
//
// Grammar and defaults follow spec.md §4.1; the tokenizer style (regexp-driven
// classification of "::"-delimited fields) is grounded on the teacher's
// SML lexer (sml/lexer.go), generalized from a comment/whitespace grammar to
// the much smaller "::"-separated resource-string grammar.
package resource

import (
	"fmt"
	"strings"

	"github.com/openvisa-go/govisa/visa"
)

// Interface is the parsed interface kind of a resource string.
type Interface int

const (
	TCPIP Interface = iota
	USB
	ASRL
	GPIB
)

func (i Interface) String() string {
	switch i {
	case TCPIP:
		return "TCPIP"
	case USB:
		return "USB"
	case ASRL:
		return "ASRL"
	case GPIB:
		return "GPIB"
	default:
		return "UNKNOWN"
	}
}

// Descriptor is the parsed representation of a resource string (spec.md §3).
type Descriptor struct {
	Kind  Interface
	Board uint16

	// TCPIP fields.
	Host       string
	Port       uint16
	DeviceName string
	IsSocket   bool
	IsHiSLIP   bool

	// USB fields.
	USBVendorID  uint16
	USBProductID uint16
	USBSerial    string
	USBInterface int

	// ASRL fields.
	ASRLPort int

	// GPIB fields.
	GPIBPrimary   int
	GPIBSecondary int

	// Raw is the original unparsed string.
	Raw string
}

// IntfType maps the parsed Descriptor to the VI_INTF_* code.
func (d *Descriptor) IntfType() visa.IntfType {
	switch d.Kind {
	case TCPIP:
		return visa.IntfTCPIP
	case USB:
		return visa.IntfUSB
	case ASRL:
		return visa.IntfASRL
	case GPIB:
		return visa.IntfGPIB
	default:
		return 0
	}
}

// String re-serializes the descriptor back into a canonical resource string.
// Parsing this output must reproduce a bit-identical Descriptor (spec.md §8,
// invariant 1), modulo field defaults that were implicit in the original.
func (d *Descriptor) String() string {
	switch d.Kind {
	case TCPIP:
		if d.IsSocket {
			return fmt.Sprintf("TCPIP%d::%s::%d::SOCKET", d.Board, d.Host, d.Port)
		}
		if d.IsHiSLIP {
			return fmt.Sprintf("TCPIP%d::%s::%s", d.Board, d.Host, d.DeviceName)
		}
		return fmt.Sprintf("TCPIP%d::%s::%s::INSTR", d.Board, d.Host, d.DeviceName)
	case USB:
		intf := ""
		if d.USBInterface != 0 {
			intf = fmt.Sprintf("::%d", d.USBInterface)
		}
		return fmt.Sprintf("USB%d::0x%04X::0x%04X::%s%s::INSTR", d.Board, d.USBVendorID, d.USBProductID, d.USBSerial, intf)
	case ASRL:
		return fmt.Sprintf("ASRL%d::INSTR", d.ASRLPort)
	case GPIB:
		if d.GPIBSecondary >= 0 {
			return fmt.Sprintf("GPIB%d::%d::%d::INSTR", d.Board, d.GPIBPrimary, d.GPIBSecondary)
		}
		return fmt.Sprintf("GPIB%d::%d::INSTR", d.Board, d.GPIBPrimary)
	default:
		return d.Raw
	}
}

// equalFold reports whether a and b are equal ignoring ASCII case, used
// throughout the parser to keep keyword matching case-insensitive without
// allocating via strings.ToUpper on every comparison.
func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
