package resource

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// headRegexp classifies the first "::"-delimited field into an interface
// keyword and an optional trailing board index, e.g. "TCPIP2" -> ("TCPIP","2").
var headRegexp = regexp.MustCompile(`(?i)^(TCPIP|USB|ASRL|GPIB)(\d*)$`)

// Parse tokenizes a VISA resource string into a Descriptor.
//
// Keywords (TCPIP, USB, ASRL, GPIB, INSTR, SOCKET, hislip) are matched
// case-insensitively; payload fields (hosts, serial numbers, device names)
// keep their original case.
func Parse(raw string) (*Descriptor, error) {
	fields := strings.Split(raw, "::")
	if len(fields) == 0 || fields[0] == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
	}

	m := headRegexp.FindStringSubmatch(fields[0])
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
	}

	board := uint16(0)
	if m[2] != "" {
		n, err := strconv.ParseUint(m[2], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
		}
		board = uint16(n)
	}

	switch strings.ToUpper(m[1]) {
	case "TCPIP":
		return parseTCPIP(raw, board, fields[1:])
	case "USB":
		return parseUSB(raw, board, fields[1:])
	case "ASRL":
		return parseASRL(raw, board, fields[1:])
	case "GPIB":
		return parseGPIB(raw, board, fields[1:])
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
	}
}

func parseTCPIP(raw string, board uint16, rest []string) (*Descriptor, error) {
	if len(rest) == 0 || rest[0] == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
	}
	d := &Descriptor{Kind: TCPIP, Board: board, Host: rest[0], Raw: raw}
	qualifiers := rest[1:]

	switch {
	case len(qualifiers) == 0:
		fallthrough
	case len(qualifiers) == 1 && equalFold(qualifiers[0], "INSTR"):
		d.DeviceName = "inst0"
		d.Port = 111
		return d, nil

	case len(qualifiers) >= 1 && strings.HasPrefix(strings.ToLower(qualifiers[0]), "hislip"):
		d.IsHiSLIP = true
		d.DeviceName = qualifiers[0]
		d.Port = 4880
		return d, nil
	}

	token := qualifiers[0]
	var next string
	if len(qualifiers) > 1 {
		next = qualifiers[1]
	}

	switch {
	case equalFold(next, "SOCKET"):
		port, err := strconv.ParseUint(token, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
		}
		d.IsSocket = true
		d.Port = uint16(port)
		if d.Port == 0 {
			d.Port = 5025
		}
		return d, nil

	case equalFold(next, "INSTR") || next == "":
		d.DeviceName = token
		d.Port = 111
		return d, nil

	default:
		// "as port number with INSTR default otherwise"
		port, err := strconv.ParseUint(token, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
		}
		d.DeviceName = "inst0"
		d.Port = uint16(port)
		return d, nil
	}
}

func parseUint16(raw, s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
	}
	return uint16(n), nil
}

func parseUSB(raw string, board uint16, rest []string) (*Descriptor, error) {
	if len(rest) < 4 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
	}
	vid, err := parseUint16(raw, rest[0])
	if err != nil {
		return nil, err
	}
	pid, err := parseUint16(raw, rest[1])
	if err != nil {
		return nil, err
	}
	serial := rest[2]

	d := &Descriptor{
		Kind: USB, Board: board,
		USBVendorID: vid, USBProductID: pid, USBSerial: serial,
		Raw: raw,
	}

	switch len(rest) {
	case 4: // vid, pid, serial, INSTR
		if !equalFold(rest[3], "INSTR") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
		}
	case 5: // vid, pid, serial, intf, INSTR
		if !equalFold(rest[4], "INSTR") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
		}
		intf, err := strconv.Atoi(rest[3])
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
		}
		d.USBInterface = intf
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
	}

	return d, nil
}

func parseASRL(raw string, board uint16, rest []string) (*Descriptor, error) {
	if len(rest) != 1 || !equalFold(rest[0], "INSTR") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
	}
	return &Descriptor{Kind: ASRL, Board: board, ASRLPort: int(board), Raw: raw}, nil
}

func parseGPIB(raw string, board uint16, rest []string) (*Descriptor, error) {
	d := &Descriptor{Kind: GPIB, Board: board, GPIBSecondary: -1, Raw: raw}

	switch len(rest) {
	case 2: // primary, INSTR
		if !equalFold(rest[1], "INSTR") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
		}
		primary, err := strconv.Atoi(rest[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
		}
		d.GPIBPrimary = primary

	case 3: // primary, secondary, INSTR
		if !equalFold(rest[2], "INSTR") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
		}
		primary, err := strconv.Atoi(rest[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
		}
		secondary, err := strconv.Atoi(rest[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
		}
		d.GPIBPrimary = primary
		d.GPIBSecondary = secondary

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidResourceName, raw)
	}

	return d, nil
}
