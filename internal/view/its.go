package view

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/alice-daq/cruscan/internal/ioscan"
	"github.com/alice-daq/cruscan/internal/itsfsm"
	"github.com/alice-daq/cruscan/internal/rdh"
)

// ITSFrameView prints, per HBF, a labeled RDH -> IHW -> TDH -> data
// words -> TDT -> optional DDW dump (base spec §4.9). ShowBytes selects
// whether raw lane bytes are printed alongside each data word line.
type ITSFrameView struct {
	w         io.Writer
	ShowBytes bool
}

// NewITSFrameView wraps out.
func NewITSFrameView(out io.Writer) *ITSFrameView {
	return &ITSFrameView{w: out}
}

// Frame prints one readout frame under the RDH that carried it.
func (v *ITSFrameView) Frame(r rdh.RDH, offset int64, frame itsfsm.ReadoutFrame) {
	fmt.Fprintf(v.w, "RDH  offset=0x%08x fee=0x%04x link=%d orbit=%d page=%d\n", offset, r.FeeID, r.LinkID, r.Orbit, r.PagesCounter)
	fmt.Fprintln(v.w, "  IHW")
	fmt.Fprintln(v.w, "  TDH")
	for _, lane := range frame.Lanes {
		if v.ShowBytes {
			fmt.Fprintf(v.w, "    data lane=%d bytes=% x\n", lane.LaneID, lane.Bytes)
		} else {
			fmt.Fprintf(v.w, "    data lane=%d len=%d\n", lane.LaneID, len(lane.Bytes))
		}
	}
	fmt.Fprintln(v.w, "  TDT")
}

// DDW prints an optional diagnostic trailer line.
func (v *ITSFrameView) DDW() { fmt.Fprintln(v.w, "  DDW0") }

// RunITSFrameView drives the full scanner -> FSM -> view pipeline over
// the whole RDH stream, keeping one FSM and one CDP buffer per FeeID
// the stream contains (simple single-pass rendering; unlike the
// validating pipeline this view does not fan out across workers).
func RunITSFrameView(src *ioscan.Source, filter ioscan.FilterFunc, stopFlag *atomic.Bool, showBytes bool, out io.Writer) error {
	sc := ioscan.NewScanner(src)
	sc.Filter = filter
	sc.StopFlag = stopFlag
	view := NewITSFrameView(out)
	view.ShowBytes = showBytes

	fsms := map[uint16]*itsfsm.FSM{}
	cdpBufs := map[uint16][]byte{}
	rdhs := map[uint16]rdh.RDH{}
	offsets := map[uint16]int64{}

	for {
		tup, err := sc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		r := tup.RDH
		if r.SystemID != rdh.SystemITS {
			continue
		}
		fee := r.FeeID
		fsm, ok := fsms[fee]
		if !ok {
			fsm = itsfsm.New(rdh.Layer(fee), 0)
			fsms[fee] = fsm
		}
		if r.PagesCounter == 0 {
			cdpBufs[fee] = cdpBufs[fee][:0]
			rdhs[fee] = r
			offsets[fee] = tup.Offset
		}
		cdpBufs[fee] = append(cdpBufs[fee], tup.Payload...)
		if r.StopBit != 1 {
			continue
		}
		fsm.Feed(cdpBufs[fee], r.Orbit)
		frames := fsm.Frames
		fsm.Frames = nil
		for _, frame := range frames {
			view.Frame(rdhs[fee], offsets[fee], frame)
		}
	}
	return nil
}
