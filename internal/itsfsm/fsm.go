package itsfsm

import "fmt"

// tdhBc and tdhInternalTrigger read an internal, self-consistent field
// layout for the 9 data bytes carried by a TDH word: bytes 0-1 are the 12-bit bunch counter
// (little-endian), byte 2 bit 0 is the internal_trigger flag. The base
// spec leaves the exact TDH bit layout unspecified beyond "bc" and
// "internal_trigger"; this mirrors how rdh.Decode lays out bc_reserved0.
func tdhBc(data [9]byte) uint16 {
	return (uint16(data[0]) | uint16(data[1])<<8) & 0x0FFF
}

func tdhInternalTrigger(data [9]byte) bool {
	return data[2]&0x1 != 0
}

// FSM runs the ITS status-word state machine for a single link across
// possibly many CDPs within an HBF (base spec §4.5). Reset happens
// automatically at the next IHW after a protocol error.
type FSM struct {
	state        State
	fromLayer    uint8
	lanes        map[uint8]*LaneDataFrame
	laneOrder    []uint8
	afterTdt     bool // true once a TDT has been seen; the transitions themselves key off state == Tdt
	Errors       []ProtocolError
	Frames       []ReadoutFrame
	TdhBcs           []uint16 // one entry per TDH seen, in order
	TriggerPeriod    uint16 // 0 disables the check
	haveLastBc       bool
	lastBc           uint16
	lastOrbit        uint32
	PeriodMismatches []PeriodMismatch
}

// PeriodMismatch records one trigger-period check failure (base spec
// §4.5 "Trigger-period check").
type PeriodMismatch struct {
	RelOffset int
	Got       int
	Want      uint16
}

// New creates an FSM for the given ITS layer (used to tag emitted
// ReadoutFrames) and trigger-period expectation (0 disables the check).
func New(layer uint8, triggerPeriod uint16) *FSM {
	return &FSM{fromLayer: layer, TriggerPeriod: triggerPeriod, lanes: map[uint8]*LaneDataFrame{}}
}

// SetLayer updates the layer tag attached to frames emitted from now
// on; callers set this once the owning RDH's FeeID is known.
func (f *FSM) SetLayer(layer uint8) { f.fromLayer = layer }

func (f *FSM) resetLanes() {
	f.lanes = map[uint8]*LaneDataFrame{}
	f.laneOrder = nil
}

func (f *FSM) laneBuf(id uint8) *LaneDataFrame {
	if l, ok := f.lanes[id]; ok {
		return l
	}
	l := &LaneDataFrame{LaneID: id}
	f.lanes[id] = l
	f.laneOrder = append(f.laneOrder, id)
	return l
}

func (f *FSM) fail(relOffset int, format string, args ...any) {
	f.Errors = append(f.Errors, ProtocolError{RelOffset: relOffset, Reason: fmt.Sprintf(format, args...)})
	f.state = Idle
	f.resetLanes()
}

// Feed processes one CDP's payload bytes (already reassembled across
// all pages of the CDP). orbit is the HBF's orbit, used by the
// trigger-period check. RelOffset values recorded in Errors and
// PeriodMismatches are relative to the start of payload; callers that
// report absolute offsets add the CDP's start offset back.
func (f *FSM) Feed(payload []byte, orbit uint32) {
	for i := 0; i+WordSize <= len(payload); i += WordSize {
		var data [9]byte
		copy(data[:], payload[i:i+9])
		marker := payload[i+9]
		f.step(data, marker, i, orbit)
	}
}

func (f *FSM) step(data [9]byte, marker byte, relOffset int, orbit uint32) {
	if laneID, ok := isDataWord(marker); ok {
		if f.state != DataRun {
			f.fail(relOffset, "unexpected data word for lane %d in state %s", laneID, f.state)
			return
		}
		lane := f.laneBuf(laneID)
		lane.Bytes = append(lane.Bytes, data[:]...)
		return
	}

	switch marker {
	case MarkerIHW:
		if f.state != Idle && f.state != Tdt {
			f.fail(relOffset, "unexpected IHW in state %s", f.state)
			return
		}
		f.resetLanes()
		f.state = Ihw

	case MarkerTDH:
		if f.state != Ihw && f.state != Tdt {
			f.fail(relOffset, "unexpected TDH in state %s", f.state)
			return
		}
		continuation := f.state == Tdt
		if !tdhInternalTrigger(data) && !continuation {
			f.fail(relOffset, "TDH with internal_trigger=0 outside continuation")
			return
		}
		f.checkTriggerPeriod(data, relOffset, orbit)
		f.TdhBcs = append(f.TdhBcs, tdhBc(data))
		f.state = DataRun

	case MarkerTDT:
		if f.state != DataRun {
			f.fail(relOffset, "unexpected TDT in state %s", f.state)
			return
		}
		f.emitFrame()
		f.state = Tdt
		f.afterTdt = true

	case MarkerDDW0:
		if f.state != Tdt {
			f.fail(relOffset, "unexpected DDW0 in state %s", f.state)
			return
		}
		f.state = Idle

	case MarkerCDW:
		if f.state != DataRun {
			f.fail(relOffset, "unexpected CDW in state %s", f.state)
			return
		}
		// calibration word carries no lane data; ignored per base spec.

	default:
		f.fail(relOffset, "unrecognized status marker 0x%02x in state %s", marker, f.state)
	}
}

func (f *FSM) checkTriggerPeriod(data [9]byte, relOffset int, orbit uint32) {
	bc := tdhBc(data)
	defer func() {
		f.haveLastBc = true
		f.lastBc = bc
		f.lastOrbit = orbit
	}()
	if f.TriggerPeriod == 0 || !f.haveLastBc || orbit != f.lastOrbit {
		return
	}
	delta := int(bc) - int(f.lastBc)
	mod := ((delta % 3564) + 3564) % 3564
	if mod != int(f.TriggerPeriod) && (3564-mod) != int(f.TriggerPeriod) {
		f.PeriodMismatches = append(f.PeriodMismatches, PeriodMismatch{RelOffset: relOffset, Got: mod, Want: f.TriggerPeriod})
	}
}

func (f *FSM) emitFrame() {
	lanes := make([]LaneDataFrame, 0, len(f.laneOrder))
	for _, id := range f.laneOrder {
		lanes = append(lanes, *f.lanes[id])
	}
	f.Frames = append(f.Frames, ReadoutFrame{FromLayer: f.fromLayer, Lanes: lanes})
	f.resetLanes()
}
