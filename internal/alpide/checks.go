package alpide

import (
	"fmt"
	"sort"
)

// Barrel distinguishes Inner/Outer Barrel chip-per-lane layouts (base
// spec §3 I11).
type Barrel int

const (
	InnerBarrel Barrel = iota
	OuterBarrel
)

// BarrelOf returns InnerBarrel for ITS layers 0-2 and OuterBarrel for
// layers 3-6, the conventional ALICE ITS layer split.
func BarrelOf(layer uint8) Barrel {
	if layer <= 2 {
		return InnerBarrel
	}
	return OuterBarrel
}

// ChipOrders lists the accepted OB chip-id sets (base spec §4.6,
// "configurable via custom chip-orders"). Defaults are {0..6} and
// {8..14}.
type ChipOrders struct {
	SetA [7]uint8
	SetB [7]uint8
}

// DefaultChipOrders returns the base spec's default OB chip-id sets.
func DefaultChipOrders() ChipOrders {
	return ChipOrders{
		SetA: [7]uint8{0, 1, 2, 3, 4, 5, 6},
		SetB: [7]uint8{8, 9, 10, 11, 12, 13, 14},
	}
}

// LaneFinding reports one lane's chip-count/chip-id/bc-intra-chip check
// results (base spec I11 plus the intra-chip bc agreement rule).
type LaneFinding struct {
	LaneID uint8
	BC     *uint16 // the lane's agreed bunch counter, nil if it could not be determined
	Errors []string
}

// CheckLane validates one decoded lane against the chip-count and
// chip-id-set rules for the given barrel/lane number.
func CheckLane(barrel Barrel, laneNumber uint8, res LaneResult, orders ChipOrders) LaneFinding {
	finding := LaneFinding{LaneID: res.LaneID}
	finding.Errors = append(finding.Errors, res.Errors...)

	switch barrel {
	case InnerBarrel:
		if len(res.Chips) != 1 {
			finding.Errors = append(finding.Errors, fmt.Sprintf("IB lane %d: expected 1 chip, got %d", laneNumber, len(res.Chips)))
		} else if res.Chips[0].ChipID != laneNumber {
			finding.Errors = append(finding.Errors, fmt.Sprintf("IB lane %d: chip id %d != lane number", laneNumber, res.Chips[0].ChipID))
		}
	case OuterBarrel:
		if len(res.Chips) != 7 {
			finding.Errors = append(finding.Errors, fmt.Sprintf("OB lane %d: expected 7 chips, got %d", laneNumber, len(res.Chips)))
		} else {
			ids := make([]uint8, len(res.Chips))
			for i, c := range res.Chips {
				ids[i] = c.ChipID
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			if !idsEqual(ids, orders.SetA[:]) && !idsEqual(ids, orders.SetB[:]) {
				finding.Errors = append(finding.Errors, fmt.Sprintf("OB lane %d: chip id set %v not in configured orders", laneNumber, ids))
			}
		}
	}

	var bc *uint16
	for _, c := range res.Chips {
		if len(c.BCValues) == 0 {
			continue
		}
		first := c.BCValues[0]
		for _, v := range c.BCValues[1:] {
			if v != first {
				finding.Errors = append(finding.Errors, fmt.Sprintf("chip %d: conflicting bc values within lane %d", c.ChipID, laneNumber))
				break
			}
		}
		if bc == nil {
			bc = &first
		} else if *bc != first {
			finding.Errors = append(finding.Errors, fmt.Sprintf("chip %d: bc %d disagrees with lane bc %d", c.ChipID, first, *bc))
		}
	}
	finding.BC = bc
	return finding
}

func idsEqual(a, b []uint8) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// BcPartition names the lanes sharing one bunch-counter value, used to
// report a cross-lane mismatch (base spec I10).
type BcPartition struct {
	BC    uint16
	Lanes []uint8
}

// CrossLaneBcMismatch reports the partition of lanes by bc value when
// they disagree (I10), or nil if the frame's lanes agree (or too few
// lanes carried a determinable bc to judge).
func CrossLaneBcMismatch(findings []LaneFinding) []BcPartition {
	byBc := map[uint16][]uint8{}
	var order []uint16
	for _, f := range findings {
		if f.BC == nil {
			continue
		}
		if _, ok := byBc[*f.BC]; !ok {
			order = append(order, *f.BC)
		}
		byBc[*f.BC] = append(byBc[*f.BC], f.LaneID)
	}
	if len(order) <= 1 {
		return nil
	}
	parts := make([]BcPartition, 0, len(order))
	for _, bc := range order {
		lanes := append([]uint8{}, byBc[bc]...)
		sort.Slice(lanes, func(i, j int) bool { return lanes[i] < lanes[j] })
		parts = append(parts, BcPartition{BC: bc, Lanes: lanes})
	}
	return parts
}
