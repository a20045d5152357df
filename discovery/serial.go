package discovery

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"go.bug.st/serial"

	"github.com/openvisa-go/govisa/logger"
)

// devScanPrefixes are the POSIX character-device families spec.md §4.8
// names: "ttyS" (built-in UART), "ttyUSB" (USB-serial adapters), "ttyACM"
// (USB CDC-ACM, e.g. Arduino-style instruments).
var devScanPrefixes = []string{"ttyS", "ttyUSB", "ttyACM"}

var ttySNumberRe = regexp.MustCompile(`^ttyS(\d+)$`)

// QuerySerial enumerates available serial ports and emits both a path-form
// and, for the built-in ttySn family, a numeric ASRLn::INSTR resource
// string (spec.md §4.8 "Serial").
func QuerySerial(log logger.Logger) []string {
	if runtime.GOOS == "windows" {
		return queryWindowsSerial(log)
	}
	return queryPosixSerial(log)
}

func queryWindowsSerial(log logger.Logger) []string {
	ports, err := serial.GetPortsList()
	if err != nil {
		log.Warn("discovery: serial enumerate failed", "err", err)
		return nil
	}
	out := make([]string, 0, len(ports))
	for i, p := range ports {
		out = append(out, p)
		out = append(out, fmt.Sprintf("ASRL%d::INSTR", i+1))
	}
	return out
}

func queryPosixSerial(log logger.Logger) []string {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		log.Warn("discovery: /dev scan failed", "err", err)
		return nil
	}

	var out []string
	for _, e := range entries {
		name := e.Name()
		if !hasDevPrefix(name) {
			continue
		}
		full := "/dev/" + name
		info, err := os.Stat(full)
		if err != nil || info.Mode()&os.ModeCharDevice == 0 {
			continue
		}
		out = append(out, full)

		if m := ttySNumberRe.FindStringSubmatch(name); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				out = append(out, fmt.Sprintf("ASRL%d::INSTR", n+1))
			}
		}
	}
	return out
}

func hasDevPrefix(name string) bool {
	for _, prefix := range devScanPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
