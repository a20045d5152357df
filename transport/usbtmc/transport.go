package usbtmc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
	"github.com/openvisa-go/govisa/internal/pool"
	"github.com/openvisa-go/govisa/logger"
	"github.com/openvisa-go/govisa/resource"
	"github.com/openvisa-go/govisa/transport"
)

// USB488 status codes returned in the first byte of a class control
// transfer response (USBTMC spec table 16).
const (
	statusSuccess = 0x01
	statusPending = 0x02
	statusFailed  = 0x80
)

// usbtmcClass and usbtmcSubClass identify a USBTMC interface descriptor
// (USBTMC spec §4.1). An interface qualifies for use when any one of its
// alternate settings reports both; that alternate setting is the one claimed.
const (
	usbtmcClass    = 0xFE
	usbtmcSubClass = 0x03
)

// clearPollInterval and clearPollBound implement the CHECK_CLEAR_STATUS
// poll loop of spec.md §4.7: poll at ~20ms cadence, bounded to ~5s total.
// drainTimeout bounds the bulk-in drain reads the poll loop issues.
const (
	clearPollInterval = 20 * time.Millisecond
	clearPollBound    = 5 * time.Second
	drainTimeout      = 50 * time.Millisecond
)

const bulkBufSize = 1 << 20

// Transport is the USBTMC/USB488 bulk-transfer transport.
type Transport struct {
	desc *resource.Descriptor
	log  logger.Logger

	ctx    *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	iface  *gousb.Interface
	ifaceN int

	in  *gousb.InEndpoint
	out *gousb.OutEndpoint

	tag bTag
}

var _ transport.Transport = (*Transport)(nil)

func init() {
	transport.Register("usbtmc", func(d *resource.Descriptor, log logger.Logger) transport.Transport {
		return New(d, log)
	})
}

// New constructs a USBTMC transport for d. d.Kind must be USB.
func New(d *resource.Descriptor, log logger.Logger) *Transport {
	return &Transport{desc: d, log: log}
}

// Open enumerates the device by VID/PID (and serial, if given), claims its
// USBTMC interface (honoring an explicit interface number from the resource
// string, spec.md §4.7), and locates the bulk in/out endpoint pair.
func (t *Transport) Open(ctx context.Context) error {
	t.ctx = gousb.NewContext()

	vid := gousb.ID(t.desc.USBVendorID)
	pid := gousb.ID(t.desc.USBProductID)

	devs, err := t.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == vid && desc.Product == pid
	})
	if err != nil {
		t.ctx.Close()
		return fmt.Errorf("%w: usb enumerate: %v", transport.ErrResourceNotFound, err)
	}
	if len(devs) == 0 {
		t.ctx.Close()
		return fmt.Errorf("%w: no usb device matches %04x:%04x", transport.ErrResourceNotFound, t.desc.USBVendorID, t.desc.USBProductID)
	}

	dev, err := t.selectBySerial(devs)
	if err != nil {
		closeAll(devs)
		t.ctx.Close()
		return err
	}
	for _, d := range devs {
		if d != dev {
			_ = d.Close()
		}
	}
	t.dev = dev

	_ = t.dev.SetAutoDetach(true)

	cfgNum, ifaceNum, altNum, err := selectInterface(t.dev.Desc, t.desc.USBInterface)
	if err != nil {
		_ = t.dev.Close()
		t.ctx.Close()
		return err
	}

	cfg, err := t.dev.Config(cfgNum)
	if err != nil {
		_ = t.dev.Close()
		t.ctx.Close()
		return fmt.Errorf("%w: usb claim config %d: %v", transport.ErrConnectionLost, cfgNum, err)
	}
	t.cfg = cfg

	iface, err := cfg.Interface(ifaceNum, altNum)
	if err != nil {
		t.cfg.Close()
		_ = t.dev.Close()
		t.ctx.Close()
		return fmt.Errorf("%w: usb claim interface %d: %v", transport.ErrConnectionLost, ifaceNum, err)
	}
	t.iface = iface
	t.ifaceN = ifaceNum

	in, out, err := findBulkEndpoints(iface)
	if err != nil {
		t.iface.Close()
		t.cfg.Close()
		_ = t.dev.Close()
		t.ctx.Close()
		return err
	}
	t.in = in
	t.out = out

	t.log.Debug("usbtmc: opened", "vid", t.desc.USBVendorID, "pid", t.desc.USBProductID, "interface", t.ifaceN)
	return nil
}

// selectInterface scans desc's configurations for a USBTMC-class interface
// (bInterfaceClass 0xFE, bInterfaceSubClass 0x03), mirroring
// discovery.usbtmcInterfaceNumber's scan but also returning the config and
// alt-setting numbers Open needs to claim it. If want is non-zero, only an
// interface whose number matches it qualifies (spec.md §4.7).
func selectInterface(desc *gousb.DeviceDesc, want int) (cfgNum, ifaceNum, altNum int, err error) {
	for cn, cfg := range desc.Configs {
		for _, iface := range cfg.Interfaces {
			if want != 0 && iface.Number != want {
				continue
			}
			for _, alt := range iface.AltSettings {
				if uint8(alt.Class) == usbtmcClass && uint8(alt.SubClass) == usbtmcSubClass {
					return cn, iface.Number, alt.Alternate, nil
				}
			}
		}
	}
	return 0, 0, 0, fmt.Errorf("%w: no usbtmc interface found", transport.ErrResourceNotFound)
}

func (t *Transport) selectBySerial(devs []*gousb.Device) (*gousb.Device, error) {
	if t.desc.USBSerial == "" {
		return devs[0], nil
	}
	for _, d := range devs {
		serial, err := d.SerialNumber()
		if err == nil && serial == t.desc.USBSerial {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: no usb device with serial %q", transport.ErrResourceNotFound, t.desc.USBSerial)
}

func closeAll(devs []*gousb.Device) {
	for _, d := range devs {
		_ = d.Close()
	}
}

// findBulkEndpoints scans the interface's active setting for the first
// bulk-in and bulk-out endpoints.
func findBulkEndpoints(iface *gousb.Interface) (*gousb.InEndpoint, *gousb.OutEndpoint, error) {
	var inAddr, outAddr gousb.EndpointAddress
	var haveIn, haveOut bool

	for addr, ep := range iface.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn && !haveIn {
			inAddr = addr
			haveIn = true
		}
		if ep.Direction == gousb.EndpointDirectionOut && !haveOut {
			outAddr = addr
			haveOut = true
		}
	}
	if !haveIn || !haveOut {
		return nil, nil, fmt.Errorf("%w: no bulk in/out endpoint pair", transport.ErrProtocol)
	}
	in, err := iface.InEndpoint(int(inAddr))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	out, err := iface.OutEndpoint(int(outAddr))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	return in, out, nil
}

// Close releases the claimed interface, config, and device handle.
func (t *Transport) Close() error {
	if t.iface != nil {
		t.iface.Close()
	}
	if t.cfg != nil {
		t.cfg.Close()
	}
	if t.dev != nil {
		_ = t.dev.Close()
	}
	if t.ctx != nil {
		t.ctx.Close()
	}
	return nil
}

// Write frames p as a single DEV_DEP_MSG_OUT bulk transfer, padded to a
// 4-byte boundary (spec.md §4.7).
func (t *Transport) Write(ctx context.Context, p []byte) (int, error) {
	tag := t.tag.next()
	hdr := encDevDepMsgOut(tag, len(p), true)

	buf := make([]byte, 0, headerSize+len(p)+3)
	buf = append(buf, hdr[:]...)
	buf = append(buf, p...)
	buf = padTo4(buf)

	n, err := t.out.WriteContext(ctx, buf)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	if n < headerSize {
		return 0, fmt.Errorf("%w: short bulk-out write", transport.ErrProtocol)
	}
	return len(p), nil
}

// Read issues REQUEST_DEV_DEP_MSG_IN and returns the payload of the
// resulting bulk-in transfer, stripping the 12-byte header.
func (t *Transport) Read(ctx context.Context, p []byte) (int, transport.TermStatus, error) {
	tag := t.tag.next()
	reqSize := len(p)
	if reqSize < 64 {
		reqSize = 64
	}
	req := encRequestDevDepMsgIn(tag, reqSize, true, '\n')
	if _, err := t.out.WriteContext(ctx, req[:]); err != nil {
		return 0, transport.TermNone, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}

	buf := make([]byte, headerSize+reqSize)
	n, err := t.in.ReadContext(ctx, buf)
	if err != nil {
		return 0, transport.TermNone, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	if n < headerSize {
		return 0, transport.TermNone, fmt.Errorf("%w: short bulk-in header", transport.ErrProtocol)
	}
	hdr, err := decodeBulkInHeader(buf[:n])
	if err != nil {
		return 0, transport.TermNone, fmt.Errorf("%w: %v", transport.ErrProtocol, err)
	}
	if err := verifyBulkInTag(hdr, tag); err != nil {
		return 0, transport.TermNone, err
	}

	payload := buf[headerSize:n]
	copied := copy(p, payload)
	status := transport.TermChar
	if copied < len(payload) || !hdr.eom {
		status = transport.TermMaxCount
	}
	return copied, status, nil
}

// ReadStatus issues the USB488 READ_STATUS_BYTE class control request. A
// conforming device answers with 3 bytes (tag echo included); a
// non-conforming device may answer with only 2, so the interpretation
// branches on the actual transfer length gousb.Device.Control reports.
func (t *Transport) ReadStatus(ctx context.Context) (byte, error) {
	buf := make([]byte, 3)
	n, err := t.dev.Control(
		gousb.ControlIn|gousb.ControlClass|gousb.ControlInterface,
		req488ReadStatusByte,
		uint16(t.tag.next()),
		uint16(t.ifaceN),
		buf,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	return parseReadStatusResponse(buf, n)
}

// Clear issues INITIATE_CLEAR and polls CHECK_CLEAR_STATUS until the
// device reports completion, at the ~20ms/~5s cadence of spec.md §4.7. A
// pending response whose auxiliary byte has bit 0 set means the device has
// bulk-in data queued that must be drained before the next poll; a
// successful clear leaves the pipe drained too.
func (t *Transport) Clear(ctx context.Context) error {
	buf := make([]byte, 1)
	if _, err := t.dev.Control(
		gousb.ControlIn|gousb.ControlClass|gousb.ControlInterface,
		reqInitiateClear,
		0, uint16(t.ifaceN), buf,
	); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	if buf[0] != statusSuccess {
		return fmt.Errorf("%w: initiate_clear failed, status=0x%02x", transport.ErrProtocol, buf[0])
	}

	deadline := time.Now().Add(clearPollBound)
	status := make([]byte, 2)
	for time.Now().Before(deadline) {
		timer := pool.GetTimer(clearPollInterval)
		select {
		case <-ctx.Done():
			pool.PutTimer(timer)
			return fmt.Errorf("%w: %v", transport.ErrTimeout, ctx.Err())
		case <-timer.C:
			pool.PutTimer(timer)
		}
		if _, err := t.dev.Control(
			gousb.ControlIn|gousb.ControlClass|gousb.ControlInterface,
			reqCheckClearStatus,
			0, uint16(t.ifaceN), status,
		); err != nil {
			return fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
		}
		switch nextClearPollAction(status[0], status[1]) {
		case clearPollDone:
			t.drainBulkIn(ctx)
			return nil
		case clearPollFailed:
			return fmt.Errorf("%w: check_clear_status failed", transport.ErrProtocol)
		case clearPollContinueDrain:
			t.drainBulkIn(ctx)
		}
	}
	return fmt.Errorf("%w: device clear did not complete within %s", transport.ErrTimeout, clearPollBound)
}

// drainBulkIn discards any data left in the bulk-in pipe. Failures and
// timeouts are expected when the pipe is already empty, so they are not
// reported: this is best-effort housekeeping around a clear, not itself a
// transfer the caller is waiting on.
func (t *Transport) drainBulkIn(ctx context.Context) {
	dctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	buf := make([]byte, bulkBufSize)
	_, _ = t.in.ReadContext(dctx, buf)
}
