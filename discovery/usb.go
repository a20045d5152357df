package discovery

import (
	"fmt"

	"github.com/google/gousb"
	"github.com/openvisa-go/govisa/logger"
)

// USBTMC class/subclass per USB-IF (spec.md §4.8 "USB").
const (
	usbtmcClass    = 0xFE
	usbtmcSubClass = 0x03
)

// QueryUSB enumerates every attached USB device and emits one resource
// string per device that has a USBTMC-class interface, naming the first such
// interface found; further USBTMC interfaces of the same device are not
// listed. Loading the libusb backend is
// implicit in gousb.NewContext(); on a platform without it this returns no
// results rather than failing discovery as a whole (spec.md §4.8: "silently
// absent on platforms without it").
func QueryUSB(log logger.Logger) []string {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("discovery: usb backend unavailable", "recovered", r)
		}
	}()

	ctx := gousb.NewContext()
	defer ctx.Close()

	var out []string
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return usbtmcInterfaceNumber(desc) >= 0
	})
	if err != nil {
		log.Warn("discovery: usb enumerate failed", "err", err)
		return nil
	}
	for _, d := range devs {
		intf := usbtmcInterfaceNumber(d.Desc)
		serial, _ := d.SerialNumber()
		out = append(out, fmt.Sprintf("USB0::0x%04X::0x%04X::%s::%d::INSTR",
			uint16(d.Desc.Vendor), uint16(d.Desc.Product), serial, intf))
		_ = d.Close()
	}
	return out
}

// usbtmcInterfaceNumber returns the interface number of the first USBTMC
// class/subclass interface descriptor found, or -1 if none.
func usbtmcInterfaceNumber(desc *gousb.DeviceDesc) int {
	for _, cfg := range desc.Configs {
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if uint8(alt.Class) == usbtmcClass && uint8(alt.SubClass) == usbtmcSubClass {
					return iface.Number
				}
			}
		}
	}
	return -1
}
