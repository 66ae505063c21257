package rdh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDecodeRejectsWrongLength(t *testing.T) {
	_, err := Decode(make([]byte, 10))
	require.Error(t, err)
}

func TestDecodeRejectsBadHeaderSize(t *testing.T) {
	b := Encode(sampleRDH())
	b[1] = 63
	_, err := Decode(b[:])
	require.Error(t, err)
}

func TestDecodeRejectsBadHeaderID(t *testing.T) {
	b := Encode(sampleRDH())
	b[0] = 5
	_, err := Decode(b[:])
	require.Error(t, err)
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	r := sampleRDH()
	b := Encode(r)
	got, err := Decode(b[:])
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestFeeIDFields(t *testing.T) {
	fee := BuildFeeID(3, 12)
	assert.Equal(t, uint8(3), Layer(fee))
	assert.Equal(t, uint8(12), Stave(fee))
	assert.Equal(t, uint8(0), FiberUplink(fee))
}

// TestDecodeEncodeRoundTripProperty exercises the base spec §8 round-trip
// invariant decode(encode(r)) == r over randomly generated field values.
func TestDecodeEncodeRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := RDH{
			HeaderID:      uint8(rapid.SampledFrom([]int{6, 7}).Draw(t, "header_id")),
			HeaderSize:    Size,
			FeeID:         uint16(rapid.IntRange(0, 0xFFFF).Draw(t, "fee_id")),
			PriorityBit:   uint8(rapid.IntRange(0, 1).Draw(t, "priority_bit")),
			SystemID:      uint8(rapid.IntRange(0, 0xFF).Draw(t, "system_id")),
			OffsetToNext:  uint16(rapid.IntRange(0, 0xFFFF).Draw(t, "offset_to_next")),
			MemorySize:    uint16(rapid.IntRange(0, 0xFFFF).Draw(t, "memory_size")),
			LinkID:        uint8(rapid.IntRange(0, 11).Draw(t, "link_id")),
			PacketCounter: uint8(rapid.IntRange(0, 0xFF).Draw(t, "packet_counter")),
			CruID:         uint16(rapid.IntRange(0, 0x0FFF).Draw(t, "cru_id")),
			Dw:            uint8(rapid.IntRange(0, 0xF).Draw(t, "dw")),
			Dataformat:    uint8(rapid.SampledFrom([]int{0, 2}).Draw(t, "dataformat")),
			Bc:            uint16(rapid.IntRange(0, 0x0FFF).Draw(t, "bc")),
			Orbit:         uint32(rapid.IntRange(0, int(^uint32(0))).Draw(t, "orbit")),
			TriggerType:   uint32(rapid.IntRange(0, int(^uint32(0))).Draw(t, "trigger_type")),
			PagesCounter:  uint16(rapid.IntRange(0, 0xFFFF).Draw(t, "pages_counter")),
			StopBit:       uint8(rapid.IntRange(0, 1).Draw(t, "stop_bit")),
			DetectorField: uint32(rapid.IntRange(0, int(^uint32(0))).Draw(t, "detector_field")),
			ParBit:        uint16(rapid.IntRange(0, 0xFFFF).Draw(t, "par_bit")),
		}
		b := Encode(r)
		got, err := Decode(b[:])
		require.NoError(t, err)
		assert.Equal(t, r, got)
	})
}

func sampleRDH() RDH {
	return RDH{
		HeaderID:      7,
		HeaderSize:    Size,
		FeeID:         BuildFeeID(0, 12),
		PriorityBit:   0,
		SystemID:      SystemITS,
		OffsetToNext:  128,
		MemorySize:    96,
		LinkID:        3,
		PacketCounter: 1,
		CruID:         42,
		Dw:            1,
		Dataformat:    2,
		Bc:            100,
		Orbit:         1000,
		TriggerType:   TriggerORBIT | TriggerHB,
		PagesCounter:  0,
		StopBit:       1,
		DetectorField: 0,
		ParBit:        0,
	}
}
