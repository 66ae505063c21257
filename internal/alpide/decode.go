package alpide

import "fmt"

// ChipRecord accumulates what was seen for one chip id within a lane.
type ChipRecord struct {
	ChipID   uint8
	BC       *uint16 // nil until the first header/empty-frame sets it
	BCValues []uint16
	Empty    bool
}

// LaneResult is the decoded content of one lane's byte stream.
type LaneResult struct {
	LaneID uint8
	Chips  []ChipRecord
	Errors []string
}

// DecodeLane walks b (the raw bytes accumulated for one lane across a
// readout frame) and extracts chip records, enforcing the word grammar
// of base spec §4.6. Malformed/truncated words are reported as errors
// in the result rather than aborting the whole lane, matching the other
// payload-depth checks' accumulate-and-continue behavior.
func DecodeLane(laneID uint8, b []byte) LaneResult {
	res := LaneResult{LaneID: laneID}
	byChip := map[uint8]*ChipRecord{}
	order := []uint8{}
	get := func(id uint8) *ChipRecord {
		if c, ok := byChip[id]; ok {
			return c
		}
		c := &ChipRecord{ChipID: id}
		byChip[id] = c
		order = append(order, id)
		return c
	}

	seenHeader := false
	haveOpen := false

	i := 0
	for i < len(b) {
		kind := classify(b[i], seenHeader)
		switch kind {
		case ChipHeader:
			if i+1 >= len(b) {
				res.Errors = append(res.Errors, fmt.Sprintf("truncated CHIP_HEADER at byte %d", i))
				i = len(b)
				continue
			}
			chip := b[i] & 0x0F
			bc := uint16(b[i+1])
			c := get(chip)
			c.BCValues = append(c.BCValues, bc)
			if c.BC == nil {
				v := bc
				c.BC = &v
			}
			haveOpen = true
			seenHeader = true
			i += 2

		case ChipEmptyFrame:
			if i+1 >= len(b) {
				res.Errors = append(res.Errors, fmt.Sprintf("truncated CHIP_EMPTY_FRAME at byte %d", i))
				i = len(b)
				continue
			}
			chip := b[i] & 0x0F
			bc := uint16(b[i+1])
			c := get(chip)
			c.Empty = true
			c.BCValues = append(c.BCValues, bc)
			if c.BC == nil {
				v := bc
				c.BC = &v
			}
			seenHeader = true
			haveOpen = false
			i += 2

		case ChipTrailer:
			if !haveOpen {
				res.Errors = append(res.Errors, fmt.Sprintf("CHIP_TRAILER with no open chip at byte %d", i))
			}
			haveOpen = false
			i++

		case RegionHeader:
			i++

		case DataShort:
			if i+1 >= len(b) {
				res.Errors = append(res.Errors, fmt.Sprintf("truncated DATA_SHORT at byte %d", i))
				i = len(b)
				continue
			}
			i += 2

		case DataLong:
			if i+2 >= len(b) {
				res.Errors = append(res.Errors, fmt.Sprintf("truncated DATA_LONG at byte %d", i))
				i = len(b)
				continue
			}
			i += 3

		case BusyOn, BusyOff, Padding, Filler:
			i++

		default:
			res.Errors = append(res.Errors, fmt.Sprintf("unrecognized ALPIDE byte 0x%02x at offset %d", b[i], i))
			i++
		}
	}

	res.Chips = make([]ChipRecord, 0, len(order))
	for _, id := range order {
		res.Chips = append(res.Chips, *byChip[id])
	}
	return res
}
