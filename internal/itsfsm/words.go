// Package itsfsm implements the ITS payload status-word state machine
// (base spec C6): IHW -> TDH -> DataRun -> TDT -> (DDW) -> IHW, parsing
// the ITS CDP payload as a stream of 10-byte words (9 payload bytes + 1
// status marker, little-endian).
package itsfsm

const WordSize = 10

// Status word marker bytes (base spec §4.5).
const (
	MarkerIHW  byte = 0xE0
	MarkerTDH  byte = 0xE8
	MarkerTDT  byte = 0xF0
	MarkerDDW0 byte = 0xE4
	MarkerCDW  byte = 0xF8
	// Data words use the low 5 bits as the lane id, high nibble fixed
	// at 0x2 (markers 0x20..0x2F).
	dataWordMask = 0xF0
	dataWordTag  = 0x20
)

func isDataWord(marker byte) (laneID uint8, ok bool) {
	if marker&dataWordMask == dataWordTag {
		return marker & 0x1F, true
	}
	return 0, false
}

// State names the FSM position (base spec §4.5).
type State int

const (
	Idle State = iota
	Ihw
	Tdh
	DataRun
	Tdt
	Ddw
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Ihw:
		return "Ihw"
	case Tdh:
		return "Tdh"
	case DataRun:
		return "DataRun"
	case Tdt:
		return "Tdt"
	case Ddw:
		return "Ddw"
	default:
		return "Unknown"
	}
}

// LaneDataFrame is the payload carved out per lane from one readout
// frame (base spec §3 "Lane data frame").
type LaneDataFrame struct {
	LaneID uint8
	Bytes  []byte
}

// ReadoutFrame groups the lane data frames delimited by one IHW..TDT run
// (base spec §3 "ITS readout frame").
type ReadoutFrame struct {
	FromLayer uint8
	Lanes     []LaneDataFrame
}

// ProtocolError is one FSM transition violation (base spec category
// "Payload-protocol").
type ProtocolError struct {
	RelOffset int // byte offset within the CDP payload
	Reason    string
}
