package transport

import (
	"github.com/openvisa-go/govisa/logger"
	"github.com/openvisa-go/govisa/resource"
)

// New selects and constructs a Transport implementation from a parsed
// resource descriptor, table-driven on (interface_kind, is_hislip,
// is_socket) as spec.md §4.9 specifies. The concrete implementation is
// looked up in registry, which the hislip, rawsocket, vxi11, usbtmc,
// serial and gpib packages populate via Register in their init()
// functions (see register.go).
func New(d *resource.Descriptor, log logger.Logger) (Transport, error) {
	var name string
	switch d.Kind {
	case resource.TCPIP:
		switch {
		case d.IsHiSLIP:
			name = "hislip"
		case d.IsSocket:
			name = "rawsocket"
		default:
			name = "vxi11"
		}
	case resource.USB:
		name = "usbtmc"
	case resource.ASRL:
		name = "serial"
	case resource.GPIB:
		name = "gpib"
	default:
		return nil, ErrNotSupported
	}

	ctor, ok := registry[name]
	if !ok {
		return nil, ErrNotSupported
	}
	return ctor(d, log), nil
}
