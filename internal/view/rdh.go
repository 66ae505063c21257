// Package view renders the two human-readable views named in base spec
// C8: a tabular RDH dump and a labeled ITS readout-frame dump. Both
// consume the same scanner output and never mutate pipeline state,
// writing only to the given io.Writer.
package view

import (
	"fmt"
	"io"
	"sync/atomic"
	"text/tabwriter"

	"github.com/alice-daq/cruscan/internal/ioscan"
	"github.com/alice-daq/cruscan/internal/rdh"
)

// RDHView renders one header row plus one line per RDH in fixed-width
// columns (base spec §4.9), with the original_source-derived running
// row counter (SPEC_FULL.md §C.2) as the first column.
type RDHView struct {
	w     *tabwriter.Writer
	count uint64
}

// NewRDHView wraps out in a tabwriter with the column padding used
// throughout this view.
func NewRDHView(out io.Writer) *RDHView {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	v := &RDHView{w: tw}
	fmt.Fprintln(tw, "#\toffset\tver\thdrsz\tfee_id\tprio\tsys\toffset_next\tmemsize\tlink\tpage\tstop\ttrig\tfmt")
	return v
}

// Row appends one RDH's fields at the given stream offset.
func (v *RDHView) Row(r rdh.RDH, offset int64) {
	v.count++
	fmt.Fprintf(v.w, "%d\t0x%08x\t%d\t%d\t0x%04x\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t0x%03x\t%d\n",
		v.count, offset, r.HeaderID, r.HeaderSize, r.FeeID, r.PriorityBit, r.SystemID,
		r.OffsetToNext, r.MemorySize, r.LinkID, r.PagesCounter, r.StopBit, r.TriggerType, r.Dataformat)
}

// Flush writes the buffered table to the underlying writer.
func (v *RDHView) Flush() error { return v.w.Flush() }

// RunRDHView drives an RDHView across every tuple the scanner yields,
// honoring an optional filter and stop flag. Payload bytes are never
// read (this view only needs header fields).
func RunRDHView(src *ioscan.Source, filter ioscan.FilterFunc, stopFlag *atomic.Bool, out io.Writer) error {
	sc := ioscan.NewScanner(src)
	sc.Filter = filter
	sc.SkipPayload = true
	sc.StopFlag = stopFlag
	v := NewRDHView(out)
	for {
		tup, err := sc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			v.Flush()
			return err
		}
		v.Row(tup.RDH, tup.Offset)
	}
	return v.Flush()
}
