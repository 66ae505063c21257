package itsfsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func word(marker byte, data ...byte) []byte {
	var d [9]byte
	copy(d[:], data)
	return append(d[:], marker)
}

func buildIHW() []byte  { return word(MarkerIHW) }
func buildTDH(bc uint16, internal bool) []byte {
	var flags byte
	if internal {
		flags = 1
	}
	return word(MarkerTDH, byte(bc), byte(bc>>8), flags)
}
func buildData(lane uint8) []byte { return word(0x20 | lane&0x1F, 1, 2, 3, 4, 5, 6, 7, 8) }
func buildTDT() []byte            { return word(MarkerTDT) }

func TestHappyPathEmitsOneFrame(t *testing.T) {
	var payload []byte
	payload = append(payload, buildIHW()...)
	payload = append(payload, buildTDH(10, true)...)
	payload = append(payload, buildData(0)...)
	payload = append(payload, buildData(1)...)
	payload = append(payload, buildTDT()...)

	f := New(0, 0)
	f.Feed(payload, 1)
	require.Empty(t, f.Errors)
	require.Len(t, f.Frames, 1)
	assert.Len(t, f.Frames[0].Lanes, 2)
}

func TestUnexpectedDataWordOutsideDataRunErrors(t *testing.T) {
	f := New(0, 0)
	f.Feed(buildData(0), 1)
	require.Len(t, f.Errors, 1)
}

func TestTDHWithoutInternalTriggerOutsideContinuationErrors(t *testing.T) {
	var payload []byte
	payload = append(payload, buildIHW()...)
	payload = append(payload, buildTDH(10, false)...)

	f := New(0, 0)
	f.Feed(payload, 1)
	require.Len(t, f.Errors, 1)
}

func TestTriggerPeriodMismatch(t *testing.T) {
	var payload []byte
	payload = append(payload, buildIHW()...)
	payload = append(payload, buildTDH(0, true)...)
	payload = append(payload, buildTDT()...)
	payload = append(payload, buildTDH(5, true)...) // continuation after TDT
	payload = append(payload, buildTDT()...)

	f := New(0, 1)
	f.Feed(payload, 1)
	require.Len(t, f.PeriodMismatches, 1)
	assert.Equal(t, 5, f.PeriodMismatches[0].Got)
}

func TestResetsToIdleAfterError(t *testing.T) {
	f := New(0, 0)
	f.Feed(buildTDT(), 1) // TDT with no preceding TDH -> error, resets to Idle
	require.Len(t, f.Errors, 1)
	assert.Equal(t, Idle, f.state)
}
