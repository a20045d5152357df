package discovery

import (
	"context"
	"encoding/binary"
	"net"
	"time"

	"github.com/openvisa-go/govisa/logger"
)

// mDNS parameters (spec.md §4.8 "mDNS").
const (
	mdnsGroup = "224.0.0.251"
	mdnsPort  = 5353

	// perServiceWindow bounds how long this engine waits for responses to
	// one query round, since mDNS has no explicit end-of-answers signal.
	perServiceWindow = 2500 * time.Millisecond
)

var mdnsServiceNames = []string{"_lxi._tcp.local", "_hislip._tcp.local"}

// lxiRecord accumulates the pieces of one resolved LXI/HiSLIP instance as
// PTR/SRV/A records for it are matched.
type lxiRecord struct {
	instance string
	host     string
	port     uint16
	ipv4     string
	isHiSLIP bool
}

// QueryMDNS sends PTR queries for _lxi._tcp.local and _hislip._tcp.local on
// the standard mDNS multicast group, waits perServiceWindow for responses,
// and returns the resource strings spec.md §4.8 defines: one INSTR form
// (TCPIP0::ip::inst0::INSTR or TCPIP0::ip::hislip0::INSTR) and, for entries
// with a known TCP port, one SOCKET form.
func QueryMDNS(ctx context.Context, log logger.Logger) []string {
	group := &net.UDPAddr{IP: net.ParseIP(mdnsGroup), Port: mdnsPort}

	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		log.Warn("discovery: mdns listen failed", "err", err)
		return nil
	}
	defer conn.Close()

	_ = conn.SetMulticastTTL(255)
	_ = conn.SetMulticastLoopback(false)

	deadline := time.Now().Add(perServiceWindow)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetReadDeadline(deadline)

	for _, svc := range mdnsServiceNames {
		q := encodeQuestion(svc, typePTR)
		if _, err := conn.WriteToUDP(q, group); err != nil {
			log.Warn("discovery: mdns query send failed", "service", svc, "err", err)
		}
	}

	records := make(map[string]*lxiRecord) // keyed by PTR target instance name
	byHostName := make(map[string]*lxiRecord)

	buf := make([]byte, 9000) // generous bound for a jumbo mDNS reply
	for {
		if time.Now().After(deadline) {
			break
		}
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			break // deadline exceeded or socket closed
		}
		msg, err := decodeMessage(buf[:n])
		if err != nil {
			continue
		}
		applyAnswers(buf[:n], msg, records, byHostName)
	}

	return buildResourceStrings(records)
}

func applyAnswers(raw []byte, msg *message, records, byHostName map[string]*lxiRecord) {
	for _, rr := range msg.answers {
		switch rr.rtype {
		case typePTR:
			target, err := decodeRDataName(raw, rr, 0)
			if err != nil {
				continue
			}
			rec := records[target]
			if rec == nil {
				rec = &lxiRecord{instance: target}
				records[target] = rec
			}
			rec.isHiSLIP = rec.isHiSLIP || rr.name == "_hislip._tcp.local"

		case typeSRV:
			if len(rr.data) < 6 {
				continue
			}
			port := binary.BigEndian.Uint16(rr.data[4:6])
			target, err := decodeRDataName(raw, rr, 6)
			if err != nil {
				continue
			}
			rec := records[rr.name]
			if rec == nil {
				rec = &lxiRecord{instance: rr.name}
				records[rr.name] = rec
			}
			rec.host = target
			rec.port = port
			byHostName[target] = rec

		case typeA:
			if len(rr.data) != 4 {
				continue
			}
			ip := net.IP(rr.data).String()
			if rec, ok := byHostName[rr.name]; ok {
				rec.ipv4 = ip
			}
		}
	}
}

func buildResourceStrings(records map[string]*lxiRecord) []string {
	var out []string
	for _, rec := range records {
		ip := rec.ipv4
		if ip == "" {
			continue // never resolved to an address; nothing usable to emit
		}
		if rec.isHiSLIP {
			out = append(out, "TCPIP0::"+ip+"::hislip0::INSTR")
		} else {
			out = append(out, "TCPIP0::"+ip+"::inst0::INSTR")
		}
		if rec.port != 0 {
			out = append(out, "TCPIP0::"+ip+"::"+portString(rec.port)+"::SOCKET")
		}
	}
	return out
}

func portString(p uint16) string {
	if p == 0 {
		return "0"
	}
	var digits [5]byte
	i := len(digits)
	for p > 0 {
		i--
		digits[i] = byte('0' + p%10)
		p /= 10
	}
	return string(digits[i:])
}
