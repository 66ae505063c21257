package view

import (
	"bytes"
	"testing"

	"github.com/alice-daq/cruscan/internal/itsfsm"
	"github.com/alice-daq/cruscan/internal/rdh"
	"github.com/stretchr/testify/assert"
)

func TestRDHViewRendersHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	v := NewRDHView(&buf)
	v.Row(rdh.RDH{HeaderID: 7, HeaderSize: 64, FeeID: 1, LinkID: 2}, 128)
	assert.NoError(t, v.Flush())

	out := buf.String()
	assert.Contains(t, out, "offset")
	assert.Contains(t, out, "0x00000080")
}

func TestITSFrameViewPrintsLanes(t *testing.T) {
	var buf bytes.Buffer
	v := NewITSFrameView(&buf)
	v.Frame(rdh.RDH{FeeID: 0, LinkID: 0}, 64, itsfsm.ReadoutFrame{
		FromLayer: 0,
		Lanes:     []itsfsm.LaneDataFrame{{LaneID: 0, Bytes: []byte{0xA0, 5, 0xB0}}},
	})
	out := buf.String()
	assert.Contains(t, out, "IHW")
	assert.Contains(t, out, "TDT")
	assert.Contains(t, out, "lane=0")
}
