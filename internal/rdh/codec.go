package rdh

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ParseError reports a single-RDH violation detected during Decode: a
// wrong buffer length, header_size != 64 (I1), or an unsupported
// header_id (category "Sanity").
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "rdh: " + e.Reason }

// Decode parses exactly Size bytes into an RDH. header_size != 64 and an
// unrecognized header_id (I1, and the legality half of I2) are reported
// as a non-nil error, but every field is still decoded off its fixed
// offset regardless — callers need offset_to_next even out of a header
// that fails these checks, to have any hope of locating the next RDH.
func Decode(b []byte) (RDH, error) {
	var r RDH
	if len(b) != Size {
		return r, &ParseError{Reason: fmt.Sprintf("buffer length %d != %d", len(b), Size)}
	}

	r.HeaderID = b[0]
	r.HeaderSize = b[1]

	r.FeeID = binary.LittleEndian.Uint16(b[2:4])
	r.PriorityBit = b[4]
	r.SystemID = b[5]
	r.OffsetToNext = binary.LittleEndian.Uint16(b[6:8])
	r.MemorySize = binary.LittleEndian.Uint16(b[8:10])
	r.LinkID = b[10]
	r.PacketCounter = b[11]

	cruDw := binary.LittleEndian.Uint16(b[12:14])
	r.CruID = cruDw & 0x0FFF
	r.Dw = uint8(cruDw >> 12)
	r.Dataformat = b[14]
	// b[15] is reserved (I8), checked by ReservedViolation.

	bcReserved := binary.LittleEndian.Uint32(b[16:20])
	r.Bc = uint16(bcReserved & 0x0FFF)
	r.Orbit = binary.LittleEndian.Uint32(b[20:24])
	r.TriggerType = binary.LittleEndian.Uint32(b[24:28])
	r.PagesCounter = binary.LittleEndian.Uint16(b[28:30])
	r.StopBit = b[30]
	// b[31] is reserved.

	r.DetectorField = binary.LittleEndian.Uint32(b[32:36])
	r.ParBit = binary.LittleEndian.Uint16(b[36:38])
	// b[38:64] are reserved.

	var reasons []string
	if r.HeaderSize != Size {
		reasons = append(reasons, fmt.Sprintf("header_size %d != %d", r.HeaderSize, Size))
	}
	if r.HeaderID != 6 && r.HeaderID != 7 {
		reasons = append(reasons, fmt.Sprintf("unsupported header_id %d", r.HeaderID))
	}
	if len(reasons) > 0 {
		return r, &ParseError{Reason: strings.Join(reasons, "; ")}
	}
	return r, nil
}

// ReservedViolation reports whether any byte required to be zero by I8
// is non-zero, returning a description of the first offender.
func ReservedViolation(b []byte) (string, bool) {
	if len(b) != Size {
		return "", false
	}
	if b[15] != 0 {
		return "reserved byte 15 (subword0 pad) != 0", true
	}
	if b[31] != 0 {
		return "reserved byte 31 (subword1 pad) != 0", true
	}
	for i := 38; i < 48; i++ {
		if b[i] != 0 {
			return fmt.Sprintf("reserved byte %d (subword2 pad) != 0", i), true
		}
	}
	for i := 48; i < 64; i++ {
		if b[i] != 0 {
			return fmt.Sprintf("reserved byte %d (subword3) != 0", i), true
		}
	}
	return "", false
}

// Encode renders r back onto the wire, the inverse of Decode. The filter
// path does not use it: its verbatim-byte round trip is done at the
// raw-byte level (scanner copies bytes, never re-encodes), so Encode exists purely to
// satisfy the decode(encode(r)) == r round-trip property and any future
// RDH-synthesizing caller (tests, fixtures).
func Encode(r RDH) [Size]byte {
	var b [Size]byte
	b[0] = r.HeaderID
	b[1] = r.HeaderSize
	binary.LittleEndian.PutUint16(b[2:4], r.FeeID)
	b[4] = r.PriorityBit
	b[5] = r.SystemID
	binary.LittleEndian.PutUint16(b[6:8], r.OffsetToNext)
	binary.LittleEndian.PutUint16(b[8:10], r.MemorySize)
	b[10] = r.LinkID
	b[11] = r.PacketCounter

	cruDw := (r.CruID & 0x0FFF) | uint16(r.Dw)<<12
	binary.LittleEndian.PutUint16(b[12:14], cruDw)
	b[14] = r.Dataformat

	bcReserved := uint32(r.Bc & 0x0FFF)
	binary.LittleEndian.PutUint32(b[16:20], bcReserved)
	binary.LittleEndian.PutUint32(b[20:24], r.Orbit)
	binary.LittleEndian.PutUint32(b[24:28], r.TriggerType)
	binary.LittleEndian.PutUint16(b[28:30], r.PagesCounter)
	b[30] = r.StopBit

	binary.LittleEndian.PutUint32(b[32:36], r.DetectorField)
	binary.LittleEndian.PutUint16(b[36:38], r.ParBit)

	return b
}
