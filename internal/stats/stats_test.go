package stats

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() StatsSnapshot {
	return StatsSnapshot{
		RdhsSeen:     10,
		RdhsFiltered: 2,
		PayloadBytes: 4096,
		Hbfs:         3,
		Cdps:         10,
		ErrCount:     1,
		TriggerCounts: TriggerCounts{
			Orbit: 10, Hb: 3, Pht: 1,
		},
		LinksObserved:  []LinkCount{{Link: 0, Count: 5}, {Link: 1, Count: 5}},
		FeeIDsObserved: []uint16{256, 257},
		SystemID:       32,
		RdhVersion:     7,
		PerLayerStaveInventory: []LayerStaveCount{
			{Layer: 0, Stave: 0, Count: 10},
		},
		AlpideStats: AlpideStats{
			ChipsValidated:            9,
			Errors:                    0,
			TriggerPeriodSamples:      4,
			TriggerPeriodJitterMean:   198.5,
			TriggerPeriodJitterStdDev: 1.25,
		},
	}
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	snap := sampleSnapshot()
	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, FormatJSON, snap))
	got, err := DecodeSnapshot(&buf, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestSnapshotTOMLRoundTrip(t *testing.T) {
	snap := sampleSnapshot()
	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, FormatTOML, snap))
	got, err := DecodeSnapshot(&buf, FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatTOML, FormatFromPath("out.toml"))
	assert.Equal(t, FormatJSON, FormatFromPath("out.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("out"))
}

func TestActorAggregatesRdhEvents(t *testing.T) {
	a := NewActor(0, nil)
	go a.Run()
	a.Send(Event{Kind: EvRdhVersion, Version: 7})
	a.Send(Event{Kind: EvRdhSeen, PayloadLen: 512, Link: 0, Fee: 256})
	a.Send(Event{Kind: EvRdhSeen, PayloadLen: 512, Link: 1, Fee: 257})
	a.Send(Event{Kind: EvHbfSeen})
	a.Send(Event{Kind: EvLayerStave, Layer: 0, Stave: 1})
	a.Close()
	snap := a.Wait()

	assert.Equal(t, uint8(7), snap.RdhVersion)
	assert.Equal(t, uint64(2), snap.RdhsSeen)
	assert.Equal(t, uint64(1024), snap.PayloadBytes)
	assert.Equal(t, uint64(1), snap.Hbfs)
	require.Len(t, snap.LinksObserved, 2)
	require.Len(t, snap.FeeIDsObserved, 2)
	require.Len(t, snap.PerLayerStaveInventory, 1)
}

func TestActorTripsStopFlagOnErrorQuota(t *testing.T) {
	a := NewActor(1, nil)
	go a.Run()
	a.Send(Event{Kind: EvError, Category: CategorySanity, Message: "first"})
	a.Send(Event{Kind: EvError, Category: CategorySanity, Message: "second"})
	a.Close()
	a.Wait()

	assert.True(t, a.StopFlag().Load())
}

func TestActorFatalTripsStopFlagImmediately(t *testing.T) {
	a := NewActor(0, nil)
	go a.Run()
	a.Send(Event{Kind: EvFatal, Message: "boom"})
	a.Close()
	a.Wait()

	assert.True(t, a.StopFlag().Load())
}

func TestActorComputesTriggerPeriodJitter(t *testing.T) {
	a := NewActor(0, nil)
	go a.Run()
	for _, bc := range []uint16{198, 200, 199, 201} {
		a.Send(Event{Kind: EvRunTrigger, RunBc: bc})
	}
	a.Close()
	snap := a.Wait()

	assert.Equal(t, uint64(4), snap.AlpideStats.TriggerPeriodSamples)
	assert.InDelta(t, 199.5, snap.AlpideStats.TriggerPeriodJitterMean, 0.01)
}
