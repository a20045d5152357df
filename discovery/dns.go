package discovery

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Minimal DNS message encode/decode sufficient for mDNS PTR/SRV/A record
// discovery (spec.md §4.8). RFC 1035 §4.1, including label-pointer
// decompression (§4.1.4): the two-bit 0xC0 prefix marks a 14-bit offset
// back into the message.

const (
	dnsHeaderSize = 12

	typePTR uint16 = 12
	typeA   uint16 = 1
	typeSRV uint16 = 33
	classIN uint16 = 1

	maxPointerHops = 32 // bounds a malicious/corrupt compression loop
)

// encodeQuestion builds a full mDNS query message: one question, QTYPE,
// QCLASS=IN, no other sections.
func encodeQuestion(name string, qtype uint16) []byte {
	buf := make([]byte, dnsHeaderSize)
	binary.BigEndian.PutUint16(buf[0:2], 0) // ID, unused for multicast
	binary.BigEndian.PutUint16(buf[4:6], 1) // QDCOUNT

	buf = append(buf, encodeName(name)...)
	var qtb [4]byte
	binary.BigEndian.PutUint16(qtb[0:2], qtype)
	binary.BigEndian.PutUint16(qtb[2:4], classIN)
	buf = append(buf, qtb[:]...)
	return buf
}

// encodeName writes name as a sequence of length-prefixed labels terminated
// by a zero byte. It never emits pointers.
func encodeName(name string) []byte {
	name = strings.TrimSuffix(name, ".")
	var buf []byte
	for _, label := range strings.Split(name, ".") {
		buf = append(buf, byte(len(label)))
		buf = append(buf, label...)
	}
	buf = append(buf, 0)
	return buf
}

// message is a partially decoded mDNS/DNS reply: only the fields discovery
// cares about.
type message struct {
	answers []resourceRecord
}

type resourceRecord struct {
	name       string
	rtype      uint16
	data       []byte // raw rdata; names inside it may still be compressed
	dataOffset int     // absolute offset of data[0] within the full message
}

// decodeMessage parses header, skips questions, and decodes the answer,
// authority, and additional sections into a single flat list (spec.md §4.8:
// "walk questions, answers, and additionals").
func decodeMessage(buf []byte) (*message, error) {
	if len(buf) < dnsHeaderSize {
		return nil, fmt.Errorf("mdns: short message (%d bytes)", len(buf))
	}
	qdcount := binary.BigEndian.Uint16(buf[4:6])
	ancount := binary.BigEndian.Uint16(buf[6:8])
	nscount := binary.BigEndian.Uint16(buf[8:10])
	arcount := binary.BigEndian.Uint16(buf[10:12])

	pos := dnsHeaderSize
	for i := 0; i < int(qdcount); i++ {
		_, next, err := decodeName(buf, pos)
		if err != nil {
			return nil, err
		}
		pos = next + 4 // QTYPE + QCLASS
	}

	msg := &message{}
	total := int(ancount) + int(nscount) + int(arcount)
	for i := 0; i < total; i++ {
		rr, next, err := decodeRR(buf, pos)
		if err != nil {
			return nil, err
		}
		msg.answers = append(msg.answers, rr)
		pos = next
	}
	return msg, nil
}

func decodeRR(buf []byte, pos int) (resourceRecord, int, error) {
	name, pos, err := decodeName(buf, pos)
	if err != nil {
		return resourceRecord{}, 0, err
	}
	if pos+10 > len(buf) {
		return resourceRecord{}, 0, fmt.Errorf("mdns: truncated RR header")
	}
	rtype := binary.BigEndian.Uint16(buf[pos : pos+2])
	rdlength := binary.BigEndian.Uint16(buf[pos+8 : pos+10])
	pos += 10
	if pos+int(rdlength) > len(buf) {
		return resourceRecord{}, 0, fmt.Errorf("mdns: truncated rdata")
	}
	rdataStart := pos
	rdata := buf[pos : pos+int(rdlength)]
	pos += int(rdlength)

	rr := resourceRecord{name: name, rtype: rtype, data: rdata, dataOffset: rdataStart}
	return rr, pos, nil
}

// decodeRDataName decodes a (possibly compressed) name found at byte
// offset relOffset within rr's rdata. buf is the full message; rr.dataOffset
// anchors rr.data's compression pointers back to absolute positions.
func decodeRDataName(buf []byte, rr resourceRecord, relOffset int) (string, error) {
	name, _, err := decodeName(buf, rr.dataOffset+relOffset)
	return name, err
}

// decodeName decodes a (possibly pointer-compressed) name starting at pos,
// returning the name and the position immediately following it in the
// original (non-pointer) stream.
func decodeName(buf []byte, pos int) (string, int, error) {
	var labels []string
	originalEnd := -1
	hops := 0

	for {
		if pos >= len(buf) {
			return "", 0, fmt.Errorf("mdns: name runs past end of message")
		}
		lengthByte := buf[pos]

		if lengthByte&0xC0 == 0xC0 {
			if pos+1 >= len(buf) {
				return "", 0, fmt.Errorf("mdns: truncated compression pointer")
			}
			if originalEnd == -1 {
				originalEnd = pos + 2
			}
			hops++
			if hops > maxPointerHops {
				return "", 0, fmt.Errorf("mdns: compression pointer loop")
			}
			ptr := int(lengthByte&0x3F)<<8 | int(buf[pos+1])
			pos = ptr
			continue
		}

		if lengthByte == 0 {
			pos++
			break
		}

		start := pos + 1
		end := start + int(lengthByte)
		if end > len(buf) {
			return "", 0, fmt.Errorf("mdns: label runs past end of message")
		}
		labels = append(labels, string(buf[start:end]))
		pos = end
	}

	if originalEnd != -1 {
		pos = originalEnd
	}
	return strings.Join(labels, "."), pos, nil
}
