package transport

import (
	"github.com/openvisa-go/govisa/logger"
	"github.com/openvisa-go/govisa/resource"
)

// Constructor builds a Transport for a resource descriptor that has already
// been routed to a concrete implementation by New.
type Constructor func(d *resource.Descriptor, log logger.Logger) Transport

// registry holds the constructors concrete transport packages register
// themselves under. It exists because every concrete transport (rawsocket,
// serial, vxi11, hislip, usbtmc, gpib) imports this package for the
// Transport contract and shared error sentinels; New cannot import those
// packages directly without creating an import cycle, so it looks up the
// constructor the implementation package registered via init() instead.
var registry = map[string]Constructor{}

// Register associates name with ctor. Concrete transport packages call this
// from an init() function.
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}
