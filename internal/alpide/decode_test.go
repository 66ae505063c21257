package alpide

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLaneIBChip(t *testing.T) {
	// CHIP_HEADER chip=0, bc=5, CHIP_TRAILER
	b := []byte{0xA0, 5, 0xB0}
	res := DecodeLane(0, b)
	require.Empty(t, res.Errors)
	require.Len(t, res.Chips, 1)
	assert.Equal(t, uint8(0), res.Chips[0].ChipID)
	assert.Equal(t, uint16(5), *res.Chips[0].BC)
}

func TestCheckLaneIBWrongChipCount(t *testing.T) {
	res := LaneResult{LaneID: 3, Chips: []ChipRecord{{ChipID: 3}, {ChipID: 4}}}
	finding := CheckLane(InnerBarrel, 3, res, DefaultChipOrders())
	require.Len(t, finding.Errors, 1)
}

func TestCheckLaneOBValidSet(t *testing.T) {
	chips := make([]ChipRecord, 0, 7)
	bc := uint16(1)
	for _, id := range []uint8{0, 1, 2, 3, 4, 5, 6} {
		chips = append(chips, ChipRecord{ChipID: id, BC: &bc, BCValues: []uint16{1}})
	}
	res := LaneResult{LaneID: 0, Chips: chips}
	finding := CheckLane(OuterBarrel, 0, res, DefaultChipOrders())
	assert.Empty(t, finding.Errors)
	require.NotNil(t, finding.BC)
	assert.Equal(t, uint16(1), *finding.BC)
}

func TestCrossLaneBcMismatch(t *testing.T) {
	bc1, bc2 := uint16(1), uint16(2)
	findings := []LaneFinding{
		{LaneID: 0, BC: &bc1},
		{LaneID: 1, BC: &bc2},
	}
	parts := CrossLaneBcMismatch(findings)
	require.Len(t, parts, 2)
}

func TestCrossLaneBcAgreement(t *testing.T) {
	bc1 := uint16(1)
	findings := []LaneFinding{{LaneID: 0, BC: &bc1}, {LaneID: 1, BC: &bc1}}
	assert.Nil(t, CrossLaneBcMismatch(findings))
}

func TestPaddingBeforeFirstHeader(t *testing.T) {
	b := []byte{0x00, 0x00, 0xA0, 7, 0xB0}
	res := DecodeLane(0, b)
	require.Empty(t, res.Errors)
	require.Len(t, res.Chips, 1)
}
