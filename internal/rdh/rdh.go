// Package rdh implements the bit-exact codec for the ALICE CRU Raw Data
// Header: a fixed 64-byte record, four 16-byte subwords, all multi-byte
// integers little-endian on the wire.
package rdh

import "fmt"

// Size is the fixed on-wire byte length of an RDH.
const Size = 64

// Trigger type bitfield positions (base spec §3).
const (
	TriggerORBIT uint32 = 1 << 0
	TriggerHB    uint32 = 1 << 1
	TriggerPhT   uint32 = 1 << 3
	TriggerSOC   uint32 = 1 << 4
	TriggerEOC   uint32 = 1 << 5
	TriggerTF    uint32 = 1 << 9
	TriggerSOT   uint32 = 1 << 11
	TriggerEOT   uint32 = 1 << 12
)

// SystemITS is the only system_id value checked at payload depth.
const SystemITS uint8 = 32

// RDH is the decoded form of one 64-byte Raw Data Header.
type RDH struct {
	HeaderID      uint8  // protocol version, {6, 7}
	HeaderSize    uint8  // must equal Size
	FeeID         uint16 // composite {layer:3, reserved:6, fiber_uplink:2, stave:5}
	PriorityBit   uint8
	SystemID      uint8
	OffsetToNext  uint16
	MemorySize    uint16
	LinkID        uint8 // 0-11
	PacketCounter uint8
	CruID         uint16 // low 12 bits of the packed cru_id/dw word
	Dw            uint8  // high 4 bits of the packed cru_id/dw word
	Dataformat    uint8  // {0, 2}
	Bc            uint16 // low 12 bits of bc_reserved0
	Orbit         uint32
	TriggerType   uint32
	PagesCounter  uint16
	StopBit       uint8 // 0 or 1
	DetectorField uint32
	ParBit        uint16
}

// Layer returns the 3-bit layer field packed into FeeID.
func Layer(feeID uint16) uint8 { return uint8(feeID & 0x7) }

// FiberUplink returns the 2-bit fiber/uplink field packed into FeeID.
func FiberUplink(feeID uint16) uint8 { return uint8((feeID >> 9) & 0x3) }

// Stave returns the 5-bit stave-number field packed into FeeID.
func Stave(feeID uint16) uint8 { return uint8((feeID >> 11) & 0x1F) }

// BuildFeeID packs a layer/stave pair into a FeeID with fiber_uplink and
// reserved bits zeroed, matching the "L<layer>_<stave>" stave-string
// mapping of base spec §6.
func BuildFeeID(layer, stave uint8) uint16 {
	return uint16(layer&0x7) | uint16(stave&0x1F)<<11
}

// HasTrigger reports whether the given trigger bit(s) are set.
func (r RDH) HasTrigger(bit uint32) bool { return r.TriggerType&bit != 0 }

// String renders the RDH as the single fixed-width line described in
// base spec §4.1 / §4.9: version | header_size | fee_id | prio | sys |
// offset | memsize | link | page | stop | trig | data_fmt.
func (r RDH) String() string {
	return fmt.Sprintf(
		"v%-1d hsz=%-3d fee=0x%04x prio=%-1d sys=%-3d off=0x%04x mem=0x%04x link=%-2d page=%-4d stop=%-1d trig=0x%08x fmt=%-1d",
		r.HeaderID, r.HeaderSize, r.FeeID, r.PriorityBit, r.SystemID,
		r.OffsetToNext, r.MemorySize, r.LinkID, r.PagesCounter, r.StopBit,
		r.TriggerType, r.Dataformat,
	)
}
